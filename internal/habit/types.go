package habit

import (
	"time"

	"github.com/Suraj-Gov/guri/internal/schedule"
)

// User is the reminder recipient. Authentication is out of scope for this
// service; the acting user is conveyed per request by the caller.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalArchived  GoalStatus = "archived"
)

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalArchived:
		return true
	}
	return false
}

type Goal struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	Title       string     `json:"title"`
	Status      GoalStatus `json:"status"`
	AchieveTill time.Time  `json:"achieveTill"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Task is a recurring action under a goal.
//
// Reminder invariant: EnqueuedDispatchID is non-empty iff ShouldRemind is
// true and NextReminderAt is set. The pair is only ever written together
// (see storage.SetReminder / storage.ClearReminder).
type Task struct {
	ID                 int64             `json:"id"`
	GoalID             int64             `json:"goalId"`
	Title              string            `json:"title"`
	ProgressCount      int               `json:"progressCount"`
	TargetCount        int               `json:"targetCount"`
	Schedule           schedule.Schedule `json:"schedule"`
	ShouldRemind       bool              `json:"shouldRemind"`
	NextReminderAt     *time.Time        `json:"nextReminderAt,omitempty"`
	EnqueuedDispatchID string            `json:"-"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// Done reports whether the task reached its target. Further marks are
// frozen unless forced.
func (t Task) Done() bool { return t.ProgressCount >= t.TargetCount }

// ProgressLogEntry is one append-only record of a progress mark.
type ProgressLogEntry struct {
	ID               int64     `json:"id"`
	TaskID           int64     `json:"taskId"`
	RecordedAt       time.Time `json:"recordedAt"`
	CountAfterAction int       `json:"countAfterAction"`
}
