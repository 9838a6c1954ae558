package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Suraj-Gov/guri/internal/dispatch"
	"github.com/Suraj-Gov/guri/internal/habit"
	"github.com/Suraj-Gov/guri/internal/schedule"
	logx "github.com/Suraj-Gov/guri/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// activeGoalLimit caps how many active goals a user may hold at once.
const activeGoalLimit = 2

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers. A single
	// connection also serializes the read-decide-write sequences that must
	// not interleave per task.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- users ----

func (s *sqliteStore) CreateUser(ctx context.Context, name, email string) (habit.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(name, email, created_at) VALUES(?,?,?)`,
		name, email, fmtTime(now),
	)
	if err != nil {
		return habit.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return habit.User{}, err
	}
	return habit.User{ID: id, Name: name, Email: email, CreatedAt: now}, nil
}

func (s *sqliteStore) GetUser(ctx context.Context, id int64) (habit.User, error) {
	var (
		u  habit.User
		at string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return habit.User{}, habit.ErrNotFound
	}
	if err != nil {
		return habit.User{}, err
	}
	u.CreatedAt = parseTime(at)
	return u, nil
}

// ---- goals ----

func (s *sqliteStore) CreateGoal(ctx context.Context, g habit.Goal) (habit.Goal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return habit.Goal{}, err
	}
	defer tx.Rollback()

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM goals WHERE user_id = ? AND status = ?`,
		g.UserID, habit.GoalActive,
	).Scan(&active)
	if err != nil {
		return habit.Goal{}, err
	}
	if active >= activeGoalLimit {
		return habit.Goal{}, ErrGoalLimit
	}

	now := time.Now().UTC()
	g.Status = habit.GoalActive
	g.CreatedAt = now
	g.UpdatedAt = now
	res, err := tx.ExecContext(ctx,
		`INSERT INTO goals(user_id, title, status, achieve_till, created_at, updated_at)
		 VALUES(?,?,?,?,?,?)`,
		g.UserID, g.Title, g.Status, fmtTime(g.AchieveTill), fmtTime(now), fmtTime(now),
	)
	if err != nil {
		return habit.Goal{}, err
	}
	g.ID, err = res.LastInsertId()
	if err != nil {
		return habit.Goal{}, err
	}
	if err := tx.Commit(); err != nil {
		return habit.Goal{}, err
	}
	return g, nil
}

const goalCols = `id, user_id, title, status, achieve_till, created_at, updated_at`

func scanGoal(row interface{ Scan(...any) error }) (habit.Goal, error) {
	var (
		g                habit.Goal
		till, crAt, upAt string
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Title, &g.Status, &till, &crAt, &upAt)
	if errors.Is(err, sql.ErrNoRows) {
		return habit.Goal{}, habit.ErrNotFound
	}
	if err != nil {
		return habit.Goal{}, err
	}
	g.AchieveTill = parseTime(till)
	g.CreatedAt = parseTime(crAt)
	g.UpdatedAt = parseTime(upAt)
	return g, nil
}

func (s *sqliteStore) GetGoal(ctx context.Context, id int64) (habit.Goal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+goalCols+` FROM goals WHERE id = ?`, id)
	return scanGoal(row)
}

func (s *sqliteStore) ListGoals(ctx context.Context, userID int64, status habit.GoalStatus) ([]habit.Goal, error) {
	q := `SELECT ` + goalCols + ` FROM goals WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []habit.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *sqliteStore) UpdateGoal(ctx context.Context, g habit.Goal) (habit.Goal, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE goals SET title = ?, status = ?, achieve_till = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		g.Title, g.Status, fmtTime(g.AchieveTill), fmtTime(now), g.ID, g.UserID,
	)
	if err != nil {
		return habit.Goal{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return habit.Goal{}, err
	}
	if n == 0 {
		return habit.Goal{}, habit.ErrNotFound
	}
	return s.GetGoal(ctx, g.ID)
}

// ---- tasks ----

const taskCols = `id, goal_id, title, progress_count, target_count, schedule, should_remind, next_reminder_at, enqueued_dispatch_id, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (habit.Task, error) {
	var (
		t            habit.Task
		schedJSON    string
		nextAt, disp sql.NullString
		crAt, upAt   string
	)
	err := row.Scan(&t.ID, &t.GoalID, &t.Title, &t.ProgressCount, &t.TargetCount,
		&schedJSON, &t.ShouldRemind, &nextAt, &disp, &crAt, &upAt)
	if errors.Is(err, sql.ErrNoRows) {
		return habit.Task{}, habit.ErrNotFound
	}
	if err != nil {
		return habit.Task{}, err
	}
	if err := json.Unmarshal([]byte(schedJSON), &t.Schedule); err != nil {
		return habit.Task{}, fmt.Errorf("decode schedule for task %d: %w", t.ID, err)
	}
	if nextAt.Valid {
		at := parseTime(nextAt.String)
		t.NextReminderAt = &at
	}
	if disp.Valid {
		t.EnqueuedDispatchID = disp.String
	}
	t.CreatedAt = parseTime(crAt)
	t.UpdatedAt = parseTime(upAt)
	return t, nil
}

func marshalSchedule(sc schedule.Schedule) (string, error) {
	b, err := json.Marshal(sc)
	if err != nil {
		return "", fmt.Errorf("encode schedule: %w", err)
	}
	return string(b), nil
}

func (s *sqliteStore) CreateTask(ctx context.Context, t habit.Task) (habit.Task, error) {
	schedJSON, err := marshalSchedule(t.Schedule)
	if err != nil {
		return habit.Task{}, err
	}
	now := time.Now().UTC()
	t.ProgressCount = 0
	t.CreatedAt = now
	t.UpdatedAt = now
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(goal_id, title, progress_count, target_count, schedule,
		   should_remind, created_at, updated_at)
		 VALUES(?,?,0,?,?,?,?,?)`,
		t.GoalID, t.Title, t.TargetCount, schedJSON, t.ShouldRemind,
		fmtTime(now), fmtTime(now),
	)
	if err != nil {
		return habit.Task{}, err
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return habit.Task{}, err
	}
	return t, nil
}

func (s *sqliteStore) GetTask(ctx context.Context, id int64) (habit.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func (s *sqliteStore) ListTasks(ctx context.Context, userID, goalID int64) ([]habit.Task, error) {
	cols := "tasks." + strings.ReplaceAll(taskCols, ", ", ", tasks.")
	q := `SELECT ` + cols + `
		FROM tasks INNER JOIN goals ON tasks.goal_id = goals.id
		WHERE goals.user_id = ?`
	args := []any{userID}
	if goalID != 0 {
		q += ` AND tasks.goal_id = ?`
		args = append(args, goalID)
	}
	q += ` ORDER BY tasks.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []habit.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) UpdateTask(ctx context.Context, t habit.Task) (habit.Task, error) {
	schedJSON, err := marshalSchedule(t.Schedule)
	if err != nil {
		return habit.Task{}, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, target_count = ?, schedule = ?, should_remind = ?, updated_at = ?
		 WHERE id = ?`,
		t.Title, t.TargetCount, schedJSON, t.ShouldRemind, fmtTime(now), t.ID,
	)
	if err != nil {
		return habit.Task{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return habit.Task{}, err
	}
	if n == 0 {
		return habit.Task{}, habit.ErrNotFound
	}
	return s.GetTask(ctx, t.ID)
}

func (s *sqliteStore) SetReminder(ctx context.Context, taskID int64, at time.Time, token string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET next_reminder_at = ?, enqueued_dispatch_id = ?, updated_at = ?
		 WHERE id = ?`,
		fmtTime(at), token, fmtTime(time.Now().UTC()), taskID,
	)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *sqliteStore) ClearReminder(ctx context.Context, taskID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET next_reminder_at = NULL, enqueued_dispatch_id = NULL, updated_at = ?
		 WHERE id = ?`,
		fmtTime(time.Now().UTC()), taskID,
	)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// ---- progress ----

// IncrementProgress bumps the counter and appends the log entry in one
// transaction so a crash can never record one without the other.
func (s *sqliteStore) IncrementProgress(ctx context.Context, taskID int64, at time.Time) (habit.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return habit.Task{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET progress_count = progress_count + 1, updated_at = ? WHERE id = ?`,
		fmtTime(at), taskID,
	)
	if err != nil {
		return habit.Task{}, err
	}
	if err := mustAffect(res); err != nil {
		return habit.Task{}, err
	}

	row := tx.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, taskID)
	t, err := scanTask(row)
	if err != nil {
		return habit.Task{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO task_logs(task_id, recorded_at, count_after_action) VALUES(?,?,?)`,
		taskID, fmtTime(at), t.ProgressCount,
	)
	if err != nil {
		return habit.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return habit.Task{}, err
	}
	return t, nil
}

func (s *sqliteStore) RecentProgressLogs(ctx context.Context, taskID int64, limit int) ([]habit.ProgressLogEntry, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, recorded_at, count_after_action FROM task_logs
		 WHERE task_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		taskID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []habit.ProgressLogEntry
	for rows.Next() {
		var (
			e  habit.ProgressLogEntry
			at string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &at, &e.CountAfterAction); err != nil {
			return nil, err
		}
		e.RecordedAt = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) ReminderContext(ctx context.Context, taskID int64) (habit.Task, habit.Goal, habit.User, error) {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return habit.Task{}, habit.Goal{}, habit.User{}, err
	}
	g, err := s.GetGoal(ctx, t.GoalID)
	if err != nil {
		return habit.Task{}, habit.Goal{}, habit.User{}, err
	}
	u, err := s.GetUser(ctx, g.UserID)
	if err != nil {
		return habit.Task{}, habit.Goal{}, habit.User{}, err
	}
	return t, g, u, nil
}

// ---- dispatch journal ----

func (s *sqliteStore) SaveDispatch(ctx context.Context, d dispatch.Dispatch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches(token, payload, fire_at, callback_url, attempts, created_at)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(token) DO UPDATE SET fire_at=excluded.fire_at, attempts=excluded.attempts`,
		d.Token, d.Payload, d.FireAt.UnixMilli(), d.CallbackURL, d.Attempts,
		fmtTime(time.Now().UTC()),
	)
	return err
}

func (s *sqliteStore) DeleteDispatch(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dispatches WHERE token = ?`, token)
	return err
}

func (s *sqliteStore) BumpDispatchAttempt(ctx context.Context, token string) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx,
		`UPDATE dispatches SET attempts = attempts + 1 WHERE token = ? RETURNING attempts`,
		token,
	).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, habit.ErrNotFound
	}
	return attempts, err
}

func scanDispatches(rows *sql.Rows) ([]dispatch.Dispatch, error) {
	defer rows.Close()
	var out []dispatch.Dispatch
	for rows.Next() {
		var (
			d  dispatch.Dispatch
			ms int64
		)
		if err := rows.Scan(&d.Token, &d.Payload, &ms, &d.CallbackURL, &d.Attempts); err != nil {
			return nil, err
		}
		d.FireAt = time.UnixMilli(ms)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PendingDispatches(ctx context.Context) ([]dispatch.Dispatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT token, payload, fire_at, callback_url, attempts FROM dispatches ORDER BY fire_at`)
	if err != nil {
		return nil, err
	}
	return scanDispatches(rows)
}

func (s *sqliteStore) DueDispatches(ctx context.Context, now time.Time, limit int) ([]dispatch.Dispatch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT token, payload, fire_at, callback_url, attempts FROM dispatches
		 WHERE fire_at <= ? ORDER BY fire_at LIMIT ?`,
		now.UnixMilli(), limit,
	)
	if err != nil {
		return nil, err
	}
	return scanDispatches(rows)
}

// ---- helpers ----

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return habit.ErrNotFound
	}
	return nil
}
