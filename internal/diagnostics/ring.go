// Package diagnostics хранит последние входящие вебхуки для отладки.
package diagnostics

import (
	"sync"
	"time"
)

// Entry запись о полученном вебхуке.
type Entry struct {
	ReceivedAt time.Time `json:"received_at"`
	Source     string    `json:"source"`
	Event      string    `json:"event,omitempty"`
	Payload    string    `json:"payload"`
}

// Ring кольцевой буфер фиксированной ёмкости.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewRing создаёт буфер. Ёмкость меньше единицы заменяется на 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{entries: make([]Entry, capacity)}
}

// Record добавляет запись, вытесняя самую старую.
func (r *Ring) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Recent возвращает записи от новых к старым.
func (r *Ring) Recent() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.next
	if r.full {
		n = len(r.entries)
	}
	res := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		res = append(res, r.entries[(r.next-i+len(r.entries))%len(r.entries)])
	}
	return res
}
