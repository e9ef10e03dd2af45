package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

func TestSameMonth(t *testing.T) {
	tests := []struct {
		name string
		a    time.Time
		b    time.Time
		want bool
	}{
		{
			name: "one month",
			a:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "adjacent months",
			a:    time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC),
			b:    time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "same month another year",
			a:    time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "compared in UTC",
			a:    time.Date(2024, 4, 1, 1, 0, 0, 0, time.FixedZone("AST", 3*3600)),
			b:    time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameMonth(tt.a, tt.b))
		})
	}
}

func TestSameDayAndOnDay(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	morning := time.Date(2024, 5, 10, 0, 5, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)

	assert.True(t, SameDay(now, morning))
	assert.False(t, SameDay(now, yesterday))
	assert.True(t, OnDay(&morning, now))
	assert.False(t, OnDay(&yesterday, now))
	assert.False(t, OnDay(nil, now))
}

func TestBillingEnd(t *testing.T) {
	from := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC), BillingEnd(models.PlanBasic, from))
	assert.Equal(t, time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC), BillingEnd(models.PlanPro, from))
	assert.Equal(t, from.Add(7*24*time.Hour), BillingEnd(models.PlanFree, from))
}

func TestMonthName(t *testing.T) {
	assert.Equal(t, "يناير", MonthName(time.January))
	assert.Equal(t, "ديسمبر", MonthName(time.December))
}
