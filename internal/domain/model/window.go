package model

import "time"

// DayLayout is the calendar-day format used for record keys and API parameters.
const DayLayout = "2006-01-02"

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the window covering the calendar day containing t in loc.
func DayWindow(t time.Time, loc *time.Location) TimeWindow {
	start := StartOfDay(t, loc)
	return TimeWindow{Start: start, End: start.AddDate(0, 0, 1)}
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Duration returns the length of the window.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// IsValid reports whether the window is non-empty.
func (w TimeWindow) IsValid() bool {
	return !w.Start.IsZero() && w.End.After(w.Start)
}
