package schedule

import (
	"testing"
	"time"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()
	s := Schedule{Weekdays: days(time.Monday), TimesPerDay: 3, RemindAtHours: []int{9}}
	now := monday(10)

	tests := []struct {
		name    string
		s       Schedule
		marks   []time.Time
		force   bool
		allowed bool
		kind    DecisionKind
		message string
	}{
		{
			name:    "force always wins",
			s:       Schedule{TimesPerDay: 3}, // even off-schedule
			force:   true,
			allowed: true,
			kind:    DecisionOK,
			message: "Good job!",
		},
		{
			name:    "off-schedule day is a soft deny",
			s:       Schedule{Weekdays: days(time.Tuesday), TimesPerDay: 3},
			allowed: false,
			kind:    DecisionOffSchedule,
			message: "Today was off the schedule. Do you want to mark your progress anyway?",
		},
		{
			name:    "first mark of the day",
			s:       s,
			allowed: true,
			kind:    DecisionOK,
			message: "Nice! 2 more to go.",
		},
		{
			name:    "one mark recorded",
			s:       s,
			marks:   []time.Time{monday(8)},
			allowed: true,
			kind:    DecisionOK,
			message: "Nice! 1 more to go.",
		},
		{
			name:    "last mark of the day",
			s:       s,
			marks:   []time.Time{monday(7), monday(8)},
			allowed: true,
			kind:    DecisionOK,
			message: "Good job! You're done for the day.",
		},
		{
			name:    "quota reached is a soft deny",
			s:       s,
			marks:   []time.Time{monday(7), monday(8), monday(9)},
			allowed: false,
			kind:    DecisionQuotaExceeded,
			message: "You're done for today. Do you want to mark an extra progress?",
		},
		{
			name: "yesterday's marks do not count",
			s:    s,
			marks: []time.Time{
				monday(8).AddDate(0, 0, -1),
				monday(23).AddDate(0, 0, -1),
				monday(8),
			},
			allowed: true,
			kind:    DecisionOK,
			message: "Nice! 1 more to go.",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.s, now, tt.marks, tt.force)
			if got.Allowed != tt.allowed {
				t.Fatalf("Allowed = %v, want %v", got.Allowed, tt.allowed)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %s, want %s", got.Kind, tt.kind)
			}
			if got.Message != tt.message {
				t.Fatalf("Message = %q, want %q", got.Message, tt.message)
			}

			// Pure: a second call with identical inputs must agree.
			again := Evaluate(tt.s, now, tt.marks, tt.force)
			if again != got {
				t.Fatalf("Evaluate not deterministic: %+v vs %+v", got, again)
			}
		})
	}
}

func TestEvaluateDayWindowBoundaries(t *testing.T) {
	t.Parallel()
	s := Schedule{Weekdays: days(time.Monday), TimesPerDay: 1, RemindAtHours: []int{9}}
	now := monday(10)

	// A mark at exactly local midnight belongs to today.
	d := Evaluate(s, now, []time.Time{monday(0)}, false)
	if d.Allowed {
		t.Fatal("midnight mark should count toward today's quota")
	}

	// One nanosecond earlier belongs to yesterday.
	d = Evaluate(s, now, []time.Time{monday(0).Add(-time.Nanosecond)}, false)
	if !d.Allowed {
		t.Fatal("pre-midnight mark must not count toward today")
	}
}

func TestEvaluateUsesLocalDay(t *testing.T) {
	t.Parallel()
	// Local = reference - 6h. Reference Monday 04:00 is still local Sunday
	// 22:00, so a Sunday-only schedule must treat it as on-schedule.
	s := Schedule{Weekdays: days(time.Sunday), TimesPerDay: 2, RemindAtHours: []int{9}, TZOffsetHours: -6}
	now := monday(4)

	// A mark from reference Sunday 20:00 (local Sunday 14:00) counts.
	mark := time.Date(2023, 12, 31, 20, 0, 0, 0, time.UTC)
	d := Evaluate(s, now, []time.Time{mark}, false)
	if !d.Allowed {
		t.Fatalf("expected allowed, got %+v", d)
	}
	if d.Message != "Good job! You're done for the day." {
		t.Fatalf("unexpected message %q", d.Message)
	}
}
