package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalendarStartOfDay(t *testing.T) {
	in := time.Date(2024, 8, 1, 23, 59, 0, 0, time.FixedZone("BRT", -3*3600))
	assert.Equal(t, time.Date(2024, 8, 2, 0, 0, 0, 0, time.UTC), UTC.StartOfDay(in))
}

func TestDatesBetween(t *testing.T) {
	start := mustDay(t, "2024-02-27")
	end := mustDay(t, "2024-03-01")

	days := UTC.DatesBetween(start, end)
	assert.Len(t, days, 4)
	assert.Equal(t, "2024-02-29", FormatDay(days[2]))

	assert.Equal(t, days, UTC.DatesBetween(end, start))
	assert.Len(t, UTC.DatesBetween(start, start), 1)
}

func TestUniqueDays(t *testing.T) {
	d := mustDay(t, "2024-08-01")
	got := UTC.UniqueDays([]time.Time{d.Add(time.Hour), d.AddDate(0, 0, 1), d})
	assert.Equal(t, []time.Time{d, d.AddDate(0, 0, 1)}, got)
}
