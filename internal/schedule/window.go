// Package schedule decides whether a sending profile allows dispatch at
// a given moment. The check runs once per batch; a batch that starts
// inside the window finishes even if pacing carries it past the close.
package schedule

import (
	"fmt"
	"time"
)

// Window is a weekly recurring send window in a profile's local timezone.
type Window struct {
	Enabled  bool
	Days     []int // ISO weekdays, 1=Monday..7=Sunday
	From     string // "HH:MM" inclusive
	To       string // "HH:MM" exclusive
	Timezone string
}

// Allows reports whether now falls inside the window, with a human
// readable reason when it does not. A disabled window always allows.
func (w Window) Allows(now time.Time) (bool, string) {
	if !w.Enabled {
		return true, ""
	}

	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)

	day := int(local.Weekday())
	if day == 0 {
		day = 7
	}
	if !containsDay(w.Days, day) {
		return false, fmt.Sprintf("outside send days (%s)", local.Weekday())
	}

	from, err := parseClock(w.From)
	if err != nil {
		return false, fmt.Sprintf("invalid window start %q", w.From)
	}
	to, err := parseClock(w.To)
	if err != nil {
		return false, fmt.Sprintf("invalid window end %q", w.To)
	}

	minute := local.Hour()*60 + local.Minute()
	if from <= to {
		if minute >= from && minute < to {
			return true, ""
		}
	} else {
		// Overnight window, e.g. 22:00 to 06:00
		if minute >= from || minute < to {
			return true, ""
		}
	}
	return false, fmt.Sprintf("outside window %s-%s %s", w.From, w.To, w.Timezone)
}

func containsDay(days []int, day int) bool {
	if len(days) == 0 {
		return false
	}
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock out of range: %s", s)
	}
	return h*60 + m, nil
}
