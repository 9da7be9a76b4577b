package domain

import "time"

// DayLayout is the wire format for day keys.
const DayLayout = "2006-01-02"

// Calendar performs day arithmetic in a fixed location.
type Calendar struct {
	Location *time.Location
}

// UTC is the calendar used for every day key in the store.
var UTC = Calendar{Location: time.UTC}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// StartOfDay truncates t to midnight in the calendar's location.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	t = t.In(c.loc())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc())
}

// AddDays moves a day boundary by n calendar days.
func (c Calendar) AddDays(t time.Time, n int) time.Time {
	t = t.In(c.loc())
	return time.Date(t.Year(), t.Month(), t.Day()+n, 0, 0, 0, 0, c.loc())
}

// DatesBetween returns every day from start to end inclusive. The bounds are
// swapped when end precedes start.
func (c Calendar) DatesBetween(start, end time.Time) []time.Time {
	start, end = c.StartOfDay(start), c.StartOfDay(end)
	if end.Before(start) {
		start, end = end, start
	}
	var days []time.Time
	for d := start; !d.After(end); d = c.AddDays(d, 1) {
		days = append(days, d)
	}
	return days
}

// UniqueDays normalizes dates to day keys, dropping duplicates and keeping
// first-seen order.
func (c Calendar) UniqueDays(dates []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		key := c.StartOfDay(d)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// FormatDay renders a day key as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

// ParseDay parses YYYY-MM-DD as a UTC day key.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, s, time.UTC)
}
