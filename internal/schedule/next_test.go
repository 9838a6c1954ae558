package schedule

import (
	"testing"
	"time"
)

// 2024-01-01 is a Monday.
func monday(hour int) time.Time {
	return time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC)
}

func days(idx ...time.Weekday) [7]bool {
	var w [7]bool
	for _, d := range idx {
		w[d] = true
	}
	return w
}

func TestNextOccurrence(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		s    Schedule
		now  time.Time
		want time.Time
		none bool
	}{
		{
			name: "later hour same day",
			s:    Schedule{Weekdays: days(time.Monday, time.Wednesday, time.Friday), TimesPerDay: 1, RemindAtHours: []int{9, 14}},
			now:  monday(10),
			want: monday(14),
		},
		{
			name: "skip to enabled weekday",
			s:    Schedule{Weekdays: days(time.Monday, time.Wednesday), TimesPerDay: 1, RemindAtHours: []int{9}},
			now:  time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), // Tuesday
			want: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), // Wednesday
		},
		{
			name: "wrap a full week when today is spent",
			s:    Schedule{Weekdays: days(time.Friday), TimesPerDay: 1, RemindAtHours: []int{9}},
			now:  time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "exact hour is not eligible",
			s:    Schedule{Weekdays: days(time.Monday), TimesPerDay: 1, RemindAtHours: []int{9, 14}},
			now:  monday(9),
			want: monday(14),
		},
		{
			name: "today spent falls to next enabled day",
			s:    Schedule{Weekdays: days(time.Monday, time.Thursday), TimesPerDay: 1, RemindAtHours: []int{8, 9}},
			now:  monday(12),
			want: time.Date(2024, 1, 4, 8, 0, 0, 0, time.UTC), // Thursday
		},
		{
			name: "no weekday enabled",
			s:    Schedule{TimesPerDay: 1, RemindAtHours: []int{9}},
			now:  monday(10),
			none: true,
		},
		{
			name: "no reminder hours",
			s:    Schedule{Weekdays: days(time.Monday), TimesPerDay: 1},
			now:  monday(10),
			none: true,
		},
		{
			name: "negative offset shifts result in reference frame",
			// Local clock is 5h behind reference: local Monday 05:00.
			// Next local slot Monday 09:00 = reference Monday 14:00.
			s:    Schedule{Weekdays: days(time.Monday), TimesPerDay: 1, RemindAtHours: []int{9}, TZOffsetHours: -5},
			now:  monday(10),
			want: monday(14),
		},
		{
			name: "fractional offset crosses local midnight",
			// Local = reference + 5.5h, so Monday 20:00 reference is already
			// Tuesday 01:30 local; the Monday-only schedule wraps a week.
			s:    Schedule{Weekdays: days(time.Monday), TimesPerDay: 1, RemindAtHours: []int{7}, TZOffsetHours: 5.5},
			now:  monday(20),
			want: time.Date(2024, 1, 8, 1, 30, 0, 0, time.UTC),
		},
		{
			name: "unsorted hours still pick the earliest",
			s:    Schedule{Weekdays: days(time.Monday), TimesPerDay: 1, RemindAtHours: []int{14, 9}},
			now:  monday(8),
			want: monday(9),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextOccurrence(tt.s, tt.now)
			if tt.none {
				if ok {
					t.Fatalf("expected no occurrence, got %v", got)
				}
				return
			}
			if !ok {
				t.Fatal("expected an occurrence, got none")
			}
			if !got.Equal(tt.want) {
				t.Fatalf("NextOccurrence = %v, want %v", got, tt.want)
			}
			if !got.After(tt.now) {
				t.Fatalf("occurrence %v is not strictly after now %v", got, tt.now)
			}
		})
	}
}

func TestNextOccurrenceAlwaysFuture(t *testing.T) {
	t.Parallel()
	s := Schedule{Weekdays: days(time.Tuesday), TimesPerDay: 1, RemindAtHours: []int{0, 12, 23}, TZOffsetHours: -8}

	// Walk a week hour by hour; every answer must be strictly in the future.
	now := monday(0)
	for i := 0; i < 7*24; i++ {
		at, ok := NextOccurrence(s, now)
		if !ok {
			t.Fatalf("no occurrence at %v", now)
		}
		if !at.After(now) {
			t.Fatalf("occurrence %v not after %v", at, now)
		}
		now = now.Add(time.Hour)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := Schedule{Weekdays: days(time.Monday), TimesPerDay: 1, RemindAtHours: []int{9}}

	if err := base.Validate(true); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}

	bad := base
	bad.TimesPerDay = 0
	if err := bad.Validate(false); err == nil {
		t.Fatal("expected error for timesPerDay = 0")
	}

	bad = base
	bad.RemindAtHours = []int{24}
	if err := bad.Validate(true); err == nil {
		t.Fatal("expected error for out-of-range hour")
	}

	bad = base
	bad.RemindAtHours = []int{9, 9}
	if err := bad.Validate(true); err == nil {
		t.Fatal("expected error for repeated hour")
	}

	bad = base
	bad.RemindAtHours = nil
	if err := bad.Validate(true); err == nil {
		t.Fatal("expected error for empty hours with reminders on")
	}
	if err := bad.Validate(false); err != nil {
		t.Fatalf("empty hours with reminders off should be fine: %v", err)
	}
}
