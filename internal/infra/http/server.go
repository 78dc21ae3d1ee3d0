package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"slack-digest-bot/internal/domain"
)

// ErrBusy возвращает RunTrigger, когда запуск уже идёт.
var ErrBusy = errors.New("run in progress")

// StateReporter отдаёт состояние оркестратора.
type StateReporter interface {
	State() domain.RunState
}

// RunTrigger запускает дайджест вручную.
type RunTrigger interface {
	TriggerAsync(cause domain.RunCause) error
	Running() bool
	Next() time.Time
}

// Server оборачивает chi.Router с базовыми middlewares.
type Server struct {
	Router chi.Router
	log    zerolog.Logger

	mu  sync.Mutex
	srv *http.Server
}

// NewServer создаёт HTTP сервер с /metrics.
func NewServer(logger zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Handle("/metrics", promhttp.Handler())
	return &Server{Router: r, log: logger.With().Str("component", "http").Logger()}
}

// RegisterDigestRoutes добавляет /healthz и POST /runs.
// isBusy сообщает, что ошибка триггера означает уже идущий запуск.
func (s *Server) RegisterDigestRoutes(state StateReporter, trigger RunTrigger, isBusy func(error) bool) {
	s.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:  "ok",
			State:   string(state.State()),
			Running: trigger.Running(),
		}
		if next := trigger.Next(); !next.IsZero() {
			resp.NextRun = next.UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusOK, resp)
	})
	s.Router.Post("/runs", func(w http.ResponseWriter, r *http.Request) {
		err := trigger.TriggerAsync(domain.RunCauseManual)
		switch {
		case err == nil:
			s.log.Info().Str("request_id", middleware.GetReqID(r.Context())).Msg("http: manual run accepted")
			writeJSON(w, http.StatusAccepted, statusResponse{Status: "accepted"})
		case isBusy != nil && isBusy(err):
			writeJSON(w, http.StatusConflict, statusResponse{Status: "busy", Error: ErrBusy.Error()})
		default:
			s.log.Error().Err(err).Msg("http: manual run rejected")
			writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Error: err.Error()})
		}
	})
}

type healthResponse struct {
	Status  string `json:"status"`
	State   string `json:"state"`
	Running bool   `json:"running"`
	NextRun string `json:"next_run,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Start запускает http.Server и блокируется до остановки.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()
	s.log.Info().Str("addr", addr).Msg("HTTP сервер запущен")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown корректно завершает работу сервера.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
