package availability

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Interval is a half-open [Start, End) span of time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether i and o share any instant. Back-to-back intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a booking of
// length duration would not overlap any of the busy intervals. Candidates are taken every step
// from windowStart; the last one is the latest start that still ends by windowEnd.
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if !OverlapsAny(Interval{Start: t, End: t.Add(duration)}, busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

func OverlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

const (
	DefaultTimezone      = "America/Sao_Paulo"
	DefaultOpeningMinute = 9 * 60
	DefaultClosingMinute = 18 * 60
	DefaultStep          = 15 * time.Minute
)

// BusinessHours is the fixed daily opening window and slot grid.
type BusinessHours struct {
	Location      *time.Location
	OpeningMinute int
	ClosingMinute int
	Step          time.Duration
}

// DefaultBusinessHours is 09:00-18:00 in São Paulo on a 15 minute grid.
func DefaultBusinessHours() (BusinessHours, error) {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return BusinessHours{}, fmt.Errorf("load %s: %w", DefaultTimezone, err)
	}
	return BusinessHours{
		Location:      loc,
		OpeningMinute: DefaultOpeningMinute,
		ClosingMinute: DefaultClosingMinute,
		Step:          DefaultStep,
	}, nil
}

// ParseDate reads a YYYY-MM-DD calendar date as midnight in the business location.
func (h BusinessHours) ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, h.Location)
}

// Window returns the opening interval for the calendar day of date.
func (h BusinessHours) Window(date time.Time) Interval {
	y, m, d := date.In(h.Location).Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, h.Location)
	return Interval{
		Start: midnight.Add(time.Duration(h.OpeningMinute) * time.Minute),
		End:   midnight.Add(time.Duration(h.ClosingMinute) * time.Minute),
	}
}

// DaySlots computes the bookable starts on date for a service of the given duration.
// Past dates are not filtered.
func (h BusinessHours) DaySlots(date time.Time, duration time.Duration, busy []Interval) []time.Time {
	win := h.Window(date)
	return AvailableSlots(win.Start, win.End, duration, h.Step, busy)
}

// FormatSlots renders slots as HH:MM in the business location.
func (h BusinessHours) FormatSlots(slots []time.Time) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.In(h.Location).Format("15:04"))
	}
	return out
}

// ParseStartTime accepts RFC 3339 timestamps. A timestamp without an offset is read as business
// local time.
func (h BusinessHours) ParseStartTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, h.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid start time %q", s)
}
