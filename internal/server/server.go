// Package server exposes guri's JSON API: users, goals, tasks, progress
// marking, and the notify webhook the dispatch queue calls back into.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Suraj-Gov/guri/internal/habit"
	"github.com/Suraj-Gov/guri/internal/reminder"
	"github.com/Suraj-Gov/guri/internal/storage"
	logx "github.com/Suraj-Gov/guri/pkg/logx"
)

// UserHeader conveys the acting user's id. Authentication proper is
// handled in front of this service; an absent or malformed header is
// treated as unauthorized.
const UserHeader = "X-Guri-User"

type Config struct {
	Addr         string
	Secret       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Server struct {
	cfg   Config
	store storage.Store
	coord *reminder.Coordinator
	log   logx.Logger

	// locks serializes the read-evaluate-increment sequence per task so
	// concurrent marks cannot both pass the quota check.
	locks *habit.KeyedMutex

	// now is swappable for tests.
	now func() time.Time

	srv *http.Server
}

func New(cfg Config, store storage.Store, coord *reminder.Coordinator, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{
		cfg:   cfg,
		store: store,
		coord: coord,
		log:   log.With(logx.String("comp", "http")),
		locks: &habit.KeyedMutex{},
		now:   time.Now,
	}
}

// Handler builds the route table. Split out from Start so tests can drive
// the mux through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/users", s.createUser)

	mux.HandleFunc("POST /api/goals", s.createGoal)
	mux.HandleFunc("GET /api/goals", s.listGoals)
	mux.HandleFunc("PATCH /api/goals/{id}", s.updateGoal)

	mux.HandleFunc("POST /api/tasks", s.createTask)
	mux.HandleFunc("GET /api/tasks", s.listTasks)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.updateTask)
	mux.HandleFunc("POST /api/tasks/{id}/progress", s.markProgress)

	mux.HandleFunc("POST /api/tasks/notify", s.notify)

	return mux
}

func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	go func() {
		s.log.Info("http server listening", logx.String("addr", s.cfg.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server failed", logx.Err(err))
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	if s.srv == nil {
		return
	}
	_ = s.srv.Shutdown(ctx)
}
