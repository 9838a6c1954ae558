package schedule

import (
	"fmt"
	"time"
)

// DecisionKind tags the outcome of an eligibility check.
type DecisionKind string

const (
	DecisionOK            DecisionKind = "ok"
	DecisionOffSchedule   DecisionKind = "off_schedule"
	DecisionQuotaExceeded DecisionKind = "quota_exceeded"
)

// Decision is the evaluator's answer: whether a progress mark is allowed
// right now, plus the user-facing message that goes with it. Denials here
// are soft: the caller may retry with force=true.
type Decision struct {
	Allowed bool
	Kind    DecisionKind
	Message string
}

// Evaluate decides whether marking progress at `now` is allowed given the
// schedule and the instants of recent marks. Pure: identical inputs always
// yield the identical decision.
//
// The quota window is the local calendar day as a half-open interval
// [dayStart, dayStart+24h), not a rolling 24-hour lookback, so early-hour
// marks never bleed in from the previous day.
func Evaluate(s Schedule, now time.Time, marks []time.Time, force bool) Decision {
	if force {
		return Decision{Allowed: true, Kind: DecisionOK, Message: "Good job!"}
	}

	local := s.localTime(now)
	if !s.Weekdays[int(local.Weekday())] {
		return Decision{
			Allowed: false,
			Kind:    DecisionOffSchedule,
			Message: "Today was off the schedule. Do you want to mark your progress anyway?",
		}
	}

	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	count := 0
	for _, m := range marks {
		lm := s.localTime(m)
		if !lm.Before(dayStart) && lm.Before(dayEnd) {
			count++
		}
	}

	if count >= s.TimesPerDay {
		return Decision{
			Allowed: false,
			Kind:    DecisionQuotaExceeded,
			Message: "You're done for today. Do you want to mark an extra progress?",
		}
	}

	left := s.TimesPerDay - count - 1
	msg := "Good job! You're done for the day."
	if left > 0 {
		msg = fmt.Sprintf("Nice! %d more to go.", left)
	}
	return Decision{Allowed: true, Kind: DecisionOK, Message: msg}
}
