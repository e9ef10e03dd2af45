package diagnostics

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func payloads(entries []Entry) []string {
	res := make([]string, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.Payload)
	}
	return res
}

func TestRing(t *testing.T) {
	r := NewRing(3)
	assert.Empty(t, r.Recent())

	r.Record(Entry{Payload: "1"})
	r.Record(Entry{Payload: "2"})
	assert.Equal(t, []string{"2", "1"}, payloads(r.Recent()))

	r.Record(Entry{Payload: "3"})
	r.Record(Entry{Payload: "4"})
	r.Record(Entry{Payload: "5"})
	assert.Equal(t, []string{"5", "4", "3"}, payloads(r.Recent()))
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := NewRing(0)
	r.Record(Entry{Payload: "a"})
	r.Record(Entry{Payload: "b"})
	assert.Equal(t, []string{"b"}, payloads(r.Recent()))
}

func TestRing_Concurrent(t *testing.T) {
	r := NewRing(20)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record(Entry{Payload: strconv.Itoa(i)})
			_ = r.Recent()
		}()
	}
	wg.Wait()
	assert.Len(t, r.Recent(), 20)
}
