package schedule

import "time"

// NextOccurrence returns the next instant, strictly after now, at which a
// reminder for this schedule may fire. The second return is false when the
// schedule can never fire (no weekday enabled, or no reminder hours).
//
// The scan walks forward from the local day of `now`: on the current day
// only hours strictly in the future qualify; once the day moves forward,
// every configured hour qualifies and the earliest wins. When all of
// today's hours have already passed, the search continues at the next
// enabled weekday, wrapping through the full week if necessary, so a
// single-weekday schedule still finds its slot seven days out.
func NextOccurrence(s Schedule, now time.Time) (time.Time, bool) {
	if !s.HasWeekday() || len(s.RemindAtHours) == 0 {
		return time.Time{}, false
	}

	local := s.localTime(now)
	today := int(local.Weekday())

	dayOffset := 0
	for !s.Weekdays[(today+dayOffset)%7] {
		dayOffset++
	}

	if dayOffset == 0 {
		if at, ok := firstHourOn(s, local, 0, local); ok {
			return s.fromLocal(at), true
		}
		// Today's slots are exhausted; move to the next enabled weekday
		// strictly after today.
		dayOffset = 1
		for !s.Weekdays[(today+dayOffset)%7] {
			dayOffset++
		}
	}

	at, ok := firstHourOn(s, local, dayOffset, time.Time{})
	if !ok {
		return time.Time{}, false
	}
	return s.fromLocal(at), true
}

// firstHourOn returns the earliest configured hour on local's day plus
// dayOffset days that is strictly after the `after` cutoff. A zero cutoff
// accepts the first hour unconditionally.
func firstHourOn(s Schedule, local time.Time, dayOffset int, after time.Time) (time.Time, bool) {
	day := local.AddDate(0, 0, dayOffset)
	for _, h := range sortedHours(s.RemindAtHours) {
		at := time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, time.UTC)
		if after.IsZero() || at.After(after) {
			return at, true
		}
	}
	return time.Time{}, false
}
