package availability

import (
	"testing"
	"time"
)

func TestAvailableSlots_Basic(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, loc)
	windowStart := time.Date(2026, 1, 28, 9, 0, 0, 0, loc)
	windowEnd := time.Date(2026, 1, 28, 10, 0, 0, 0, loc)

	busy := []Interval{
		{Start: day.Add(9*time.Hour + 15*time.Minute), End: day.Add(9*time.Hour + 45*time.Minute)},
	}

	slots := AvailableSlots(windowStart, windowEnd, 15*time.Minute, 15*time.Minute, busy)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Equal(day.Add(9 * time.Hour)) {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].Format(time.RFC3339))
	}
	if !slots[1].Equal(day.Add(9*time.Hour + 45*time.Minute)) {
		t.Fatalf("expected second slot 09:45, got %s", slots[1].Format(time.RFC3339))
	}
}

func TestOverlaps(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 1, 28, h, m, 0, 0, time.UTC) }
	base := Interval{Start: at(10, 0), End: at(10, 30)}
	cases := []struct {
		name string
		iv   Interval
		want bool
	}{
		{"ends at start", Interval{Start: at(9, 30), End: at(10, 0)}, false},
		{"starts at end", Interval{Start: at(10, 30), End: at(11, 0)}, false},
		{"overlaps start", Interval{Start: at(9, 45), End: at(10, 15)}, true},
		{"inside", Interval{Start: at(10, 10), End: at(10, 20)}, true},
		{"covers", Interval{Start: at(9, 0), End: at(11, 0)}, true},
		{"identical", base, true},
	}
	for _, tc := range cases {
		if got := base.Overlaps(tc.iv); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
		if got := tc.iv.Overlaps(base); got != tc.want {
			t.Fatalf("%s (reversed): got %v want %v", tc.name, got, tc.want)
		}
	}
}

func mustHours(t *testing.T) BusinessHours {
	t.Helper()
	h, err := DefaultBusinessHours()
	if err != nil {
		t.Fatalf("DefaultBusinessHours: %v", err)
	}
	return h
}

func TestDaySlots_ExcludesOverlapWithExistingAppointment(t *testing.T) {
	h := mustHours(t)
	date, err := h.ParseDate("2026-03-10")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	busy := []Interval{{
		Start: time.Date(2026, 3, 10, 10, 0, 0, 0, h.Location),
		End:   time.Date(2026, 3, 10, 10, 30, 0, 0, h.Location),
	}}

	got := map[string]bool{}
	for _, s := range h.FormatSlots(h.DaySlots(date, 30*time.Minute, busy)) {
		got[s] = true
	}
	for _, want := range []string{"09:00", "09:15", "09:30", "10:30", "10:45", "17:30"} {
		if !got[want] {
			t.Fatalf("expected %s to be available, got %v", want, got)
		}
	}
	for _, excluded := range []string{"09:45", "10:00", "10:15", "17:45"} {
		if got[excluded] {
			t.Fatalf("expected %s to be excluded", excluded)
		}
	}
}

func TestDaySlots_GridAlignmentAndOrder(t *testing.T) {
	h := mustHours(t)
	date, _ := h.ParseDate("2026-03-11")
	slots := h.DaySlots(date, 45*time.Minute, nil)
	if len(slots) == 0 {
		t.Fatal("expected slots on an empty day")
	}
	open := h.Window(date).Start
	for i, s := range slots {
		if s.Sub(open)%(15*time.Minute) != 0 {
			t.Fatalf("slot %s is off the 15 minute grid", s)
		}
		if i > 0 && !s.After(slots[i-1]) {
			t.Fatalf("slots not ascending at %d", i)
		}
	}
	last := slots[len(slots)-1].In(h.Location).Format("15:04")
	if last != "17:15" {
		t.Fatalf("expected last slot 17:15 for a 45 minute service, got %s", last)
	}
	// 09:00 to 17:15 inclusive every 15 minutes.
	if len(slots) != 34 {
		t.Fatalf("expected 34 slots, got %d", len(slots))
	}
}

func TestDaySlots_DurationExceedsWindow(t *testing.T) {
	h := mustHours(t)
	date, _ := h.ParseDate("2026-03-12")
	if slots := h.DaySlots(date, 541*time.Minute, nil); len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
	if slots := h.DaySlots(date, 540*time.Minute, nil); len(slots) != 1 {
		t.Fatalf("expected exactly the 09:00 slot for a full-day service, got %d", len(slots))
	}
}

func TestDaySlots_AdjacentBookingsLeaveGapOpen(t *testing.T) {
	h := mustHours(t)
	date, _ := h.ParseDate("2026-03-13")
	at := func(hh, mm int) time.Time { return time.Date(2026, 3, 13, hh, mm, 0, 0, h.Location) }
	busy := []Interval{
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(10, 30), End: at(18, 0)},
	}
	got := h.FormatSlots(h.DaySlots(date, 30*time.Minute, busy))
	if len(got) != 1 || got[0] != "10:00" {
		t.Fatalf("expected only 10:00, got %v", got)
	}
}

func TestParseStartTime(t *testing.T) {
	h := mustHours(t)
	utc, err := h.ParseStartTime("2026-03-10T13:00:00Z")
	if err != nil {
		t.Fatalf("ParseStartTime: %v", err)
	}
	local, err := h.ParseStartTime("2026-03-10T10:00")
	if err != nil {
		t.Fatalf("ParseStartTime local: %v", err)
	}
	// São Paulo is UTC-3.
	if !utc.Equal(local) {
		t.Fatalf("expected %s to equal %s", utc, local)
	}
	if _, err := h.ParseStartTime("tomorrow"); err == nil {
		t.Fatal("expected error for garbage input")
	}
}
