package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/Suraj-Gov/guri/internal/habit"
)

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		writeErr(w, http.StatusBadRequest, "name and email are required")
		return
	}

	u, err := s.store.CreateUser(r.Context(), req.Name, req.Email)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type createGoalRequest struct {
	Title       string    `json:"title"`
	AchieveTill time.Time `json:"achieveTill"`
}

func (s *Server) createGoal(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}

	var req createGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeErr(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.AchieveTill.IsZero() {
		writeErr(w, http.StatusBadRequest, "achieveTill is required")
		return
	}

	// Goals always start out active; the limit check inside CreateGoal
	// counts the user's current active goals.
	g, err := s.store.CreateGoal(r.Context(), habit.Goal{
		UserID:      uid,
		Title:       req.Title,
		AchieveTill: req.AchieveTill,
	})
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) listGoals(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}

	if id := queryID(r, "id"); id > 0 {
		_, g, err := s.ownGoal(r, id)
		if err != nil {
			s.writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
		return
	}

	status := habit.GoalStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeErr(w, http.StatusBadRequest, "unknown goal status")
		return
	}
	goals, err := s.store.ListGoals(r.Context(), uid, status)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

type updateGoalRequest struct {
	Title       *string           `json:"title"`
	Status      *habit.GoalStatus `json:"status"`
	AchieveTill *time.Time        `json:"achieveTill"`
}

func (s *Server) updateGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	_, g, err := s.ownGoal(r, id)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}

	var req updateGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			writeErr(w, http.StatusBadRequest, "title cannot be empty")
			return
		}
		g.Title = t
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			writeErr(w, http.StatusBadRequest, "unknown goal status")
			return
		}
		g.Status = *req.Status
	}
	if req.AchieveTill != nil {
		g.AchieveTill = *req.AchieveTill
	}

	g, err = s.store.UpdateGoal(r.Context(), g)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
