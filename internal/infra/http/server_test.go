package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"slack-digest-bot/internal/domain"
)

type fakeState struct{ state domain.RunState }

func (f fakeState) State() domain.RunState { return f.state }

var errInProgress = errors.New("in progress")

type fakeTrigger struct {
	err     error
	running bool
	calls   int
}

func (f *fakeTrigger) TriggerAsync(cause domain.RunCause) error {
	f.calls++
	return f.err
}
func (f *fakeTrigger) Running() bool   { return f.running }
func (f *fakeTrigger) Next() time.Time { return time.Date(2024, 4, 9, 9, 0, 0, 0, time.UTC) }

func newTestServer(trigger *fakeTrigger) *Server {
	s := NewServer(zerolog.Nop())
	s.RegisterDigestRoutes(fakeState{state: domain.RunStateProcessing}, trigger, func(err error) bool {
		return errors.Is(err, errInProgress)
	})
	return s
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&fakeTrigger{running: true})
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("ответ не JSON: %v", err)
	}
	if body.State != "processing" || !body.Running || body.NextRun != "2024-04-09T09:00:00Z" {
		t.Fatalf("неожиданный ответ: %+v", body)
	}
}

func TestPostRuns(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "accepted", code: http.StatusAccepted},
		{name: "busy", err: errInProgress, code: http.StatusConflict},
		{name: "error", err: errors.New("boom"), code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &fakeTrigger{err: tt.err}
			rec := httptest.NewRecorder()
			newTestServer(trigger).Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", nil))
			if rec.Code != tt.code {
				t.Fatalf("ожидали %d, получили %d", tt.code, rec.Code)
			}
			if trigger.calls != 1 {
				t.Fatalf("ожидали один вызов триггера")
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(zerolog.Nop()).Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200 для /metrics, получили %d", rec.Code)
	}
}
