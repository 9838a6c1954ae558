// Package reminder keeps each task's delayed-dispatch chain alive: at most
// one outstanding dispatch per task, each delivered reminder scheduling its
// successor. There is no scheduler loop anywhere; delivery timing belongs
// to the dispatch queue.
package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Suraj-Gov/guri/internal/dispatch"
	"github.com/Suraj-Gov/guri/internal/habit"
	"github.com/Suraj-Gov/guri/internal/notifier"
	"github.com/Suraj-Gov/guri/internal/schedule"
	logx "github.com/Suraj-Gov/guri/pkg/logx"
)

// Store is the slice of persistence the coordinator needs.
type Store interface {
	GetTask(ctx context.Context, id int64) (habit.Task, error)
	SetReminder(ctx context.Context, taskID int64, at time.Time, token string) error
	ClearReminder(ctx context.Context, taskID int64) error
	ReminderContext(ctx context.Context, taskID int64) (habit.Task, habit.Goal, habit.User, error)
}

type Config struct {
	// CallbackURL is where the queue delivers fired dispatches
	// (the notify endpoint).
	CallbackURL string

	// RearmTolerance treats an existing dispatch within this window of the
	// new candidate as still valid, so rapid successive edits don't spawn
	// duplicate chains. Default 1h.
	RearmTolerance time.Duration
}

// NotifyPayload is the dispatch payload carried through the queue and back
// into the notify endpoint.
type NotifyPayload struct {
	ID int64 `json:"id"`
}

type Coordinator struct {
	cfg    Config
	store  Store
	queue  dispatch.Queue
	notify notifier.Notifier
	log    logx.Logger

	// now is swappable for tests.
	now func() time.Time

	locks *habit.KeyedMutex
}

func New(cfg Config, store Store, queue dispatch.Queue, notify notifier.Notifier, log logx.Logger) *Coordinator {
	if cfg.RearmTolerance <= 0 {
		cfg.RearmTolerance = time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Coordinator{
		cfg:    cfg,
		store:  store,
		queue:  queue,
		notify: notify,
		log:    log.With(logx.String("comp", "reminder")),
		now:    time.Now,
		locks:  &habit.KeyedMutex{},
	}
}

// Arm makes the task's stored reminder state match its schedule: computes
// the next occurrence, skips when a live dispatch already covers it, and
// otherwise enqueues a fresh dispatch and persists the (time, token) pair.
//
// Queue unavailability is a soft failure: it is logged and the previous
// state is kept, so the chain resumes on the next edit. Only store faults
// propagate.
func (c *Coordinator) Arm(ctx context.Context, task habit.Task) error {
	unlock := c.locks.Lock(task.ID)
	defer unlock()

	// Re-read inside the lock so a racing arm/delivery can't act on a
	// stale reminder pair.
	task, err := c.store.GetTask(ctx, task.ID)
	if err != nil {
		return err
	}
	return c.armLocked(ctx, task)
}

func (c *Coordinator) armLocked(ctx context.Context, task habit.Task) error {
	candidate, ok := schedule.NextOccurrence(task.Schedule, c.now())
	if !ok {
		if task.EnqueuedDispatchID != "" || task.NextReminderAt != nil {
			c.log.Debug("schedule yields no occurrence; clearing reminder", logx.Int64("task", task.ID))
			return c.store.ClearReminder(ctx, task.ID)
		}
		return nil
	}

	if task.EnqueuedDispatchID != "" && task.NextReminderAt != nil {
		diff := candidate.Sub(*task.NextReminderAt)
		if diff < 0 {
			diff = -diff
		}
		if diff < c.cfg.RearmTolerance {
			c.log.Debug("existing dispatch still valid",
				logx.Int64("task", task.ID),
				logx.Time("next", *task.NextReminderAt),
			)
			return nil
		}
	}

	payload, err := json.Marshal(NotifyPayload{ID: task.ID})
	if err != nil {
		return err
	}
	token, err := c.queue.Enqueue(ctx, payload, candidate, c.cfg.CallbackURL)
	if err != nil {
		// Soft: the chain simply doesn't advance until the next edit.
		ext := &habit.ExternalError{Op: "enqueue dispatch", Err: err}
		c.log.Warn("could not enqueue reminder", logx.Int64("task", task.ID), logx.Err(ext))
		return nil
	}

	if err := c.store.SetReminder(ctx, task.ID, candidate, token); err != nil {
		return fmt.Errorf("persist reminder state: %w", err)
	}
	c.log.Info("reminder armed",
		logx.Int64("task", task.ID),
		logx.Time("fire_at", candidate),
	)
	return nil
}

// Disarm drops the task's reminder state. The in-flight dispatch, if any,
// is not cancelled; its eventual delivery fails the staleness check in
// OnFired and lands as a no-op.
func (c *Coordinator) Disarm(ctx context.Context, task habit.Task) error {
	unlock := c.locks.Lock(task.ID)
	defer unlock()

	if err := c.store.ClearReminder(ctx, task.ID); err != nil {
		return err
	}
	c.log.Info("reminder disarmed", logx.Int64("task", task.ID))
	return nil
}

// OnFired handles one queue delivery: notify the user, then arm the next
// link of the chain from the current time.
//
// deliveryToken is the dispatch token the delivery corresponds to. When it
// doesn't match the task's current token the delivery is late or duplicate
// and must be dropped silently; that staleness check is the only
// cancellation mechanism there is. An empty token (a queue that can't echo
// tokens) skips the check; the worst case is a duplicate reminder, which
// at-least-once delivery already permits.
func (c *Coordinator) OnFired(ctx context.Context, taskID int64, deliveryToken string) error {
	unlock := c.locks.Lock(taskID)
	defer unlock()

	task, goal, user, err := c.store.ReminderContext(ctx, taskID)
	if err != nil {
		if errors.Is(err, habit.ErrNotFound) {
			return err
		}
		return fmt.Errorf("load reminder context: %w", err)
	}

	if !task.ShouldRemind {
		c.log.Debug("reminders off; chain ends", logx.Int64("task", taskID))
		return nil
	}
	if deliveryToken != "" && task.EnqueuedDispatchID != deliveryToken {
		c.log.Debug("stale dispatch dropped",
			logx.Int64("task", taskID),
			logx.String("token", deliveryToken),
		)
		return nil
	}

	msg := notifier.Message{
		To:      user.Email,
		Subject: "Reminder!",
		Body:    reminderBody(task, goal, user),
	}
	if err := c.notify.Send(ctx, msg); err != nil {
		// Logged by the notifier; the chain must advance regardless.
		c.log.Warn("reminder notification failed", logx.Int64("task", taskID), logx.Err(err))
	}

	// The delivered dispatch is consumed: drop the stored pair from the
	// in-memory copy so armLocked enqueues the successor unconditionally
	// (the hour tolerance must not swallow the next link).
	task.EnqueuedDispatchID = ""
	task.NextReminderAt = nil
	return c.armLocked(ctx, task)
}

func reminderBody(t habit.Task, g habit.Goal, u habit.User) string {
	pct := 0
	if t.TargetCount > 0 {
		pct = int(float64(t.ProgressCount) / float64(t.TargetCount) * 100)
	}
	return fmt.Sprintf(`
<h1>Hey, %s</h1>
<p>Reminding you for a task: %s</p>
<p>This will inch you closer to your goal: %s (%d%% complete)</p>
<p>Good luck!</p>`, u.Name, t.Title, g.Title, pct)
}
