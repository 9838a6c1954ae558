package schedule

import (
	"fmt"
	"sort"
	"time"
)

// Schedule describes how often a task wants to be done and when its
// reminders may fire.
//
// Weekday indexing follows time.Weekday: 0 = Sunday .. 6 = Saturday.
// RemindAtHours are local wall-clock hours (0..23). TZOffsetHours is the
// signed number of hours to add to a reference-frame instant to obtain the
// user's local clock reading; fractional offsets (e.g. +5.5) are valid.
type Schedule struct {
	Weekdays      [7]bool `json:"weekdays"`
	TimesPerDay   int     `json:"timesPerDay"`
	RemindAtHours []int   `json:"remindAtHours"`
	TZOffsetHours float64 `json:"tzOffsetHours"`
}

// ValidationError reports a malformed schedule field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid schedule: %s: %s", e.Field, e.Reason)
}

// Validate checks structural invariants. RemindAtHours may be empty only
// when the owning task does not want reminders.
func (s Schedule) Validate(remindersOn bool) error {
	if s.TimesPerDay < 1 {
		return &ValidationError{Field: "timesPerDay", Reason: "must be >= 1"}
	}
	if remindersOn && len(s.RemindAtHours) == 0 {
		return &ValidationError{Field: "remindAtHours", Reason: "required when reminders are on"}
	}
	seen := map[int]bool{}
	for _, h := range s.RemindAtHours {
		if h < 0 || h > 23 {
			return &ValidationError{Field: "remindAtHours", Reason: fmt.Sprintf("hour %d out of range", h)}
		}
		if seen[h] {
			return &ValidationError{Field: "remindAtHours", Reason: fmt.Sprintf("hour %d repeated", h)}
		}
		seen[h] = true
	}
	if s.TZOffsetHours < -14 || s.TZOffsetHours > 14 {
		return &ValidationError{Field: "tzOffsetHours", Reason: "offset out of range"}
	}
	return nil
}

// HasWeekday reports whether at least one weekday is enabled.
func (s Schedule) HasWeekday() bool {
	for _, on := range s.Weekdays {
		if on {
			return true
		}
	}
	return false
}

func (s Schedule) offset() time.Duration {
	return time.Duration(s.TZOffsetHours * float64(time.Hour))
}

// localTime shifts a reference instant into the user's wall-clock frame.
// The result carries the UTC location so calendar math ignores the host tz.
func (s Schedule) localTime(t time.Time) time.Time {
	return t.UTC().Add(s.offset())
}

// fromLocal converts a wall-clock instant back to the reference frame.
func (s Schedule) fromLocal(t time.Time) time.Time {
	return t.Add(-s.offset())
}

func sortedHours(hours []int) []int {
	if sort.IntsAreSorted(hours) {
		return hours
	}
	cp := append([]int(nil), hours...)
	sort.Ints(cp)
	return cp
}
