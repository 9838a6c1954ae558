package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Suraj-Gov/guri/internal/dispatch"
	"github.com/Suraj-Gov/guri/internal/habit"
	"github.com/Suraj-Gov/guri/internal/schedule"
	logx "github.com/Suraj-Gov/guri/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "guri.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedUserGoal(t *testing.T, st Store) (habit.User, habit.Goal) {
	t.Helper()
	ctx := context.Background()
	u, err := st.CreateUser(ctx, "Asha", "asha@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	g, err := st.CreateGoal(ctx, habit.Goal{
		UserID:      u.ID,
		Title:       "run a marathon",
		AchieveTill: time.Now().AddDate(0, 6, 0),
	})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	return u, g
}

func testSchedule() schedule.Schedule {
	return schedule.Schedule{
		Weekdays:      [7]bool{false, true, false, true, false, true, false},
		TimesPerDay:   2,
		RemindAtHours: []int{9, 14},
		TZOffsetHours: 5.5,
	}
}

func TestUserRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	u, g := seedUserGoal(t, st)
	got, err := st.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Name != "Asha" || got.Email != "asha@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("createdAt not persisted")
	}
	if _, err := st.GetUser(ctx, u.ID+100); !errors.Is(err, habit.ErrNotFound) {
		t.Fatalf("missing user: got %v, want ErrNotFound", err)
	}
	if g.Status != habit.GoalActive {
		t.Fatalf("new goal status = %q, want active", g.Status)
	}
}

func TestActiveGoalLimit(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	u, _ := seedUserGoal(t, st)

	if _, err := st.CreateGoal(ctx, habit.Goal{UserID: u.ID, Title: "second", AchieveTill: time.Now()}); err != nil {
		t.Fatalf("second goal: %v", err)
	}
	if _, err := st.CreateGoal(ctx, habit.Goal{UserID: u.ID, Title: "third", AchieveTill: time.Now()}); !errors.Is(err, ErrGoalLimit) {
		t.Fatalf("third goal: got %v, want ErrGoalLimit", err)
	}

	// Archiving one frees a slot.
	goals, err := st.ListGoals(ctx, u.ID, habit.GoalActive)
	if err != nil || len(goals) != 2 {
		t.Fatalf("list active goals: %v (n=%d)", err, len(goals))
	}
	g := goals[0]
	g.Status = habit.GoalArchived
	if _, err := st.UpdateGoal(ctx, g); err != nil {
		t.Fatalf("archive goal: %v", err)
	}
	if _, err := st.CreateGoal(ctx, habit.Goal{UserID: u.ID, Title: "third", AchieveTill: time.Now()}); err != nil {
		t.Fatalf("goal after archiving: %v", err)
	}
}

func TestTaskScheduleRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	_, g := seedUserGoal(t, st)

	created, err := st.CreateTask(ctx, habit.Task{
		GoalID:       g.ID,
		Title:        "morning run",
		TargetCount:  30,
		Schedule:     testSchedule(),
		ShouldRemind: true,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	got, err := st.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Schedule.TimesPerDay != 2 || got.Schedule.TZOffsetHours != 5.5 {
		t.Fatalf("schedule fields lost: %+v", got.Schedule)
	}
	if !got.Schedule.Weekdays[time.Monday] || got.Schedule.Weekdays[time.Sunday] {
		t.Fatalf("weekdays lost: %v", got.Schedule.Weekdays)
	}
	if got.NextReminderAt != nil || got.EnqueuedDispatchID != "" {
		t.Fatalf("fresh task has reminder state: %+v", got)
	}

	got.Title = "evening run"
	got.TargetCount = 40
	updated, err := st.UpdateTask(ctx, got)
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if updated.Title != "evening run" || updated.TargetCount != 40 {
		t.Fatalf("update lost fields: %+v", updated)
	}
}

func TestReminderStatePair(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	_, g := seedUserGoal(t, st)
	task, err := st.CreateTask(ctx, habit.Task{GoalID: g.ID, Title: "t", TargetCount: 1, Schedule: testSchedule()})
	if err != nil {
		t.Fatal(err)
	}

	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	if err := st.SetReminder(ctx, task.ID, at, "tok-1"); err != nil {
		t.Fatalf("set reminder: %v", err)
	}
	got, _ := st.GetTask(ctx, task.ID)
	if got.NextReminderAt == nil || !got.NextReminderAt.Equal(at) || got.EnqueuedDispatchID != "tok-1" {
		t.Fatalf("reminder pair not persisted: %+v", got)
	}

	if err := st.ClearReminder(ctx, task.ID); err != nil {
		t.Fatalf("clear reminder: %v", err)
	}
	got, _ = st.GetTask(ctx, task.ID)
	if got.NextReminderAt != nil || got.EnqueuedDispatchID != "" {
		t.Fatalf("reminder pair not cleared: %+v", got)
	}

	if err := st.SetReminder(ctx, task.ID+100, at, "tok-2"); !errors.Is(err, habit.ErrNotFound) {
		t.Fatalf("set reminder on missing task: got %v", err)
	}
}

func TestIncrementProgress(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	_, g := seedUserGoal(t, st)
	task, err := st.CreateTask(ctx, habit.Task{GoalID: g.ID, Title: "t", TargetCount: 5, Schedule: testSchedule()})
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		got, err := st.IncrementProgress(ctx, task.ID, base.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if got.ProgressCount != i+1 {
			t.Fatalf("progressCount = %d, want %d", got.ProgressCount, i+1)
		}
	}

	logs, err := st.RecentProgressLogs(ctx, task.ID, 2)
	if err != nil {
		t.Fatalf("recent logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}
	// Newest first, count matching the state after each mark.
	if logs[0].CountAfterAction != 3 || logs[1].CountAfterAction != 2 {
		t.Fatalf("log order wrong: %+v", logs)
	}
	if !logs[0].RecordedAt.After(logs[1].RecordedAt) {
		t.Fatalf("log timestamps out of order: %v then %v", logs[0].RecordedAt, logs[1].RecordedAt)
	}

	if _, err := st.IncrementProgress(ctx, task.ID+100, base); !errors.Is(err, habit.ErrNotFound) {
		t.Fatalf("increment missing task: got %v", err)
	}
}

func TestReminderContext(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	u, g := seedUserGoal(t, st)
	task, err := st.CreateTask(ctx, habit.Task{GoalID: g.ID, Title: "t", TargetCount: 1, Schedule: testSchedule()})
	if err != nil {
		t.Fatal(err)
	}

	gotT, gotG, gotU, err := st.ReminderContext(ctx, task.ID)
	if err != nil {
		t.Fatalf("reminder context: %v", err)
	}
	if gotT.ID != task.ID || gotG.ID != g.ID || gotU.ID != u.ID {
		t.Fatalf("context ids wrong: task=%d goal=%d user=%d", gotT.ID, gotG.ID, gotU.ID)
	}

	if _, _, _, err := st.ReminderContext(ctx, task.ID+100); !errors.Is(err, habit.ErrNotFound) {
		t.Fatalf("missing task: got %v", err)
	}
}

func TestDispatchJournal(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	save := func(token string, fireAt time.Time) {
		t.Helper()
		err := st.SaveDispatch(ctx, dispatch.Dispatch{
			Token:       token,
			Payload:     []byte(`{"id":1}`),
			FireAt:      fireAt,
			CallbackURL: "http://localhost/api/tasks/notify",
		})
		if err != nil {
			t.Fatalf("save %s: %v", token, err)
		}
	}
	save("tok-due", now.Add(-time.Minute))
	save("tok-later", now.Add(time.Hour))

	pending, err := st.PendingDispatches(ctx)
	if err != nil || len(pending) != 2 {
		t.Fatalf("pending: %v (n=%d)", err, len(pending))
	}
	if pending[0].Token != "tok-due" {
		t.Fatalf("pending not ordered by fire_at: %+v", pending)
	}
	if !pending[0].FireAt.Equal(now.Add(-time.Minute)) {
		t.Fatalf("fireAt lost precision: %v", pending[0].FireAt)
	}

	due, err := st.DueDispatches(ctx, now, 0)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].Token != "tok-due" {
		t.Fatalf("due = %+v, want only tok-due", due)
	}

	for want := 1; want <= 2; want++ {
		n, err := st.BumpDispatchAttempt(ctx, "tok-due")
		if err != nil || n != want {
			t.Fatalf("bump: n=%d err=%v, want %d", n, err, want)
		}
	}
	if _, err := st.BumpDispatchAttempt(ctx, "tok-gone"); !errors.Is(err, habit.ErrNotFound) {
		t.Fatalf("bump missing: got %v", err)
	}

	if err := st.DeleteDispatch(ctx, "tok-due"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	pending, _ = st.PendingDispatches(ctx)
	if len(pending) != 1 || pending[0].Token != "tok-later" {
		t.Fatalf("after delete: %+v", pending)
	}
}
