package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Suraj-Gov/guri/internal/habit"
	"github.com/Suraj-Gov/guri/internal/schedule"
	"github.com/Suraj-Gov/guri/internal/storage"
	logx "github.com/Suraj-Gov/guri/pkg/logx"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(out)
}

// writeDomainErr maps the error taxonomy onto HTTP statuses. Soft denials
// carry their kind alongside the message so clients know a force retry is
// available.
func (s *Server) writeDomainErr(w http.ResponseWriter, err error) {
	var (
		ve *schedule.ValidationError
		de *habit.Denial
	)
	switch {
	case errors.As(err, &de):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": de.Message,
			"kind":  de.Kind,
		})
	case errors.As(err, &ve):
		writeErr(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, storage.ErrGoalLimit):
		writeErr(w, http.StatusBadRequest, "You already have 2 active goals.")
	case errors.Is(err, habit.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not found")
	case errors.Is(err, habit.ErrUnauthorized):
		writeErr(w, http.StatusUnauthorized, "unauthorized")
	default:
		s.log.Error("request failed", logx.Err(err))
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

// userID extracts the acting user from the request header.
func userID(r *http.Request) (int64, error) {
	raw := r.Header.Get(UserHeader)
	if raw == "" {
		return 0, habit.ErrUnauthorized
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, habit.ErrUnauthorized
	}
	return id, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, habit.ErrNotFound
	}
	return id, nil
}

func queryID(r *http.Request, key string) int64 {
	id, _ := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return id
}

// ownGoal verifies the goal belongs to the acting user.
func (s *Server) ownGoal(r *http.Request, goalID int64) (int64, habit.Goal, error) {
	uid, err := userID(r)
	if err != nil {
		return 0, habit.Goal{}, err
	}
	g, err := s.store.GetGoal(r.Context(), goalID)
	if err != nil {
		return 0, habit.Goal{}, err
	}
	if g.UserID != uid {
		return 0, habit.Goal{}, habit.ErrUnauthorized
	}
	return uid, g, nil
}

// ownTask verifies the task's owning goal belongs to the acting user.
func (s *Server) ownTask(r *http.Request, taskID int64) (habit.Task, error) {
	t, err := s.store.GetTask(r.Context(), taskID)
	if err != nil {
		return habit.Task{}, err
	}
	if _, _, err := s.ownGoal(r, t.GoalID); err != nil {
		return habit.Task{}, err
	}
	return t, nil
}
