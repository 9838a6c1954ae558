package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Suraj-Gov/guri/internal/dispatch"
	"github.com/Suraj-Gov/guri/internal/habit"
	logx "github.com/Suraj-Gov/guri/pkg/logx"
)

// Store is the persistence API used by the handlers and the reminder
// coordinator. All atomic multi-step sequences (progress increment + log
// append, reminder state writes) live behind single methods so callers
// never compose partial writes.
type Store interface {
	// users
	CreateUser(ctx context.Context, name, email string) (habit.User, error)
	GetUser(ctx context.Context, id int64) (habit.User, error)

	// goals
	CreateGoal(ctx context.Context, g habit.Goal) (habit.Goal, error)
	GetGoal(ctx context.Context, id int64) (habit.Goal, error)
	ListGoals(ctx context.Context, userID int64, status habit.GoalStatus) ([]habit.Goal, error)
	UpdateGoal(ctx context.Context, g habit.Goal) (habit.Goal, error)

	// tasks
	CreateTask(ctx context.Context, t habit.Task) (habit.Task, error)
	GetTask(ctx context.Context, id int64) (habit.Task, error)
	ListTasks(ctx context.Context, userID, goalID int64) ([]habit.Task, error)
	UpdateTask(ctx context.Context, t habit.Task) (habit.Task, error)

	// reminder state; the (nextReminderAt, enqueuedDispatchID) pair is
	// always written together to preserve the task invariant
	SetReminder(ctx context.Context, taskID int64, at time.Time, token string) error
	ClearReminder(ctx context.Context, taskID int64) error

	// progress
	IncrementProgress(ctx context.Context, taskID int64, at time.Time) (habit.Task, error)
	RecentProgressLogs(ctx context.Context, taskID int64, limit int) ([]habit.ProgressLogEntry, error)

	// ReminderContext loads everything a fired reminder needs in one read.
	ReminderContext(ctx context.Context, taskID int64) (habit.Task, habit.Goal, habit.User, error)

	// local dispatch queue durability
	dispatch.Journal

	Close() error
}

// ErrGoalLimit is returned by CreateGoal when the user already has the
// maximum number of active goals.
var ErrGoalLimit = errors.New("active goal limit reached")

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
