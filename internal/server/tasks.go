package server

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Suraj-Gov/guri/internal/dispatch"
	"github.com/Suraj-Gov/guri/internal/habit"
	"github.com/Suraj-Gov/guri/internal/reminder"
	"github.com/Suraj-Gov/guri/internal/schedule"
	logx "github.com/Suraj-Gov/guri/pkg/logx"
)

type createTaskRequest struct {
	GoalID       int64             `json:"goalId"`
	Title        string            `json:"title"`
	TargetCount  int               `json:"targetCount"`
	Schedule     schedule.Schedule `json:"schedule"`
	ShouldRemind bool              `json:"shouldRemind"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, _, err := s.ownGoal(r, req.GoalID); err != nil {
		s.writeDomainErr(w, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeErr(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.TargetCount < 1 {
		writeErr(w, http.StatusBadRequest, "targetCount must be >= 1")
		return
	}
	if err := req.Schedule.Validate(req.ShouldRemind); err != nil {
		s.writeDomainErr(w, err)
		return
	}

	t, err := s.store.CreateTask(r.Context(), habit.Task{
		GoalID:       req.GoalID,
		Title:        req.Title,
		TargetCount:  req.TargetCount,
		Schedule:     req.Schedule,
		ShouldRemind: req.ShouldRemind,
	})
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}

	if t.ShouldRemind {
		t = s.armAndReload(r, t)
	}
	writeJSON(w, http.StatusCreated, t)
}

// armAndReload arms the task's reminder and re-reads it so the response
// carries the fresh nextReminderAt. Arm failures don't fail task writes;
// the task is returned as created and the chain resumes on the next edit.
func (s *Server) armAndReload(r *http.Request, t habit.Task) habit.Task {
	if err := s.coord.Arm(r.Context(), t); err != nil {
		s.log.Warn("could not arm reminder", logx.Int64("task", t.ID), logx.Err(err))
		return t
	}
	if fresh, err := s.store.GetTask(r.Context(), t.ID); err == nil {
		return fresh
	}
	return t
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}

	if id := queryID(r, "id"); id > 0 {
		t, err := s.ownTask(r, id)
		if err != nil {
			s.writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
		return
	}

	goalID := queryID(r, "goalId")
	if goalID > 0 {
		if _, _, err := s.ownGoal(r, goalID); err != nil {
			s.writeDomainErr(w, err)
			return
		}
	}
	tasks, err := s.store.ListTasks(r.Context(), uid, goalID)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type updateTaskRequest struct {
	Title        *string            `json:"title"`
	TargetCount  *int               `json:"targetCount"`
	Schedule     *schedule.Schedule `json:"schedule"`
	ShouldRemind *bool              `json:"shouldRemind"`
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	t, err := s.ownTask(r, id)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}

	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeErr(w, http.StatusBadRequest, "title cannot be empty")
			return
		}
		t.Title = title
	}
	if req.TargetCount != nil {
		if *req.TargetCount < 1 {
			writeErr(w, http.StatusBadRequest, "targetCount must be >= 1")
			return
		}
		t.TargetCount = *req.TargetCount
	}
	if req.Schedule != nil {
		t.Schedule = *req.Schedule
	}
	if req.ShouldRemind != nil {
		t.ShouldRemind = *req.ShouldRemind
	}
	if err := t.Schedule.Validate(t.ShouldRemind); err != nil {
		s.writeDomainErr(w, err)
		return
	}

	t, err = s.store.UpdateTask(r.Context(), t)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}

	// Schedule or remind edits move the chain: re-arm (the hour tolerance
	// keeps a still-valid dispatch alive) or disarm when reminders were
	// switched off.
	if t.ShouldRemind {
		t = s.armAndReload(r, t)
	} else if err := s.coord.Disarm(r.Context(), t); err != nil {
		s.log.Warn("could not disarm reminder", logx.Int64("task", t.ID), logx.Err(err))
	} else {
		t.NextReminderAt = nil
		t.EnqueuedDispatchID = ""
	}
	writeJSON(w, http.StatusOK, t)
}

type markProgressRequest struct {
	Force bool `json:"force"`
}

type markProgressResponse struct {
	Task    habit.Task `json:"task"`
	Message string     `json:"message"`
}

func (s *Server) markProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	if _, err := s.ownTask(r, id); err != nil {
		s.writeDomainErr(w, err)
		return
	}

	var req markProgressRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Serialize read-evaluate-increment per task: two concurrent marks must
	// not both pass the quota check.
	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	if t.Done() && !req.Force {
		s.writeDomainErr(w, &habit.Denial{
			Kind:    schedule.DecisionQuotaExceeded,
			Message: "This task already hit its target. Do you want to mark an extra progress?",
		})
		return
	}

	logs, err := s.store.RecentProgressLogs(r.Context(), id, 0)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	marks := make([]time.Time, 0, len(logs))
	for _, l := range logs {
		marks = append(marks, l.RecordedAt)
	}

	dec := schedule.Evaluate(t.Schedule, s.now(), marks, req.Force)
	if !dec.Allowed {
		s.writeDomainErr(w, &habit.Denial{Kind: dec.Kind, Message: dec.Message})
		return
	}

	t, err = s.store.IncrementProgress(r.Context(), id, s.now())
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, markProgressResponse{Task: t, Message: dec.Message})
}

// notify is the dispatch queue's callback. It is authenticated by the
// shared secret rather than the user header; the queue is the caller here,
// not a person.
func (s *Server) notify(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get(dispatch.SecretHeader)
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.Secret)) != 1 {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var payload reminder.NotifyPayload
	if err := decodeJSON(r, &payload); err != nil || payload.ID <= 0 {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token := r.Header.Get(dispatch.TokenHeader)
	if err := s.coord.OnFired(r.Context(), payload.ID, token); err != nil {
		// A 404 tells the queue the task is gone for good: drop, don't
		// retry.
		s.writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
