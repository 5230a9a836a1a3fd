package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/questwalk/internal/handler"
	"github.com/dukerupert/questwalk/internal/mission"
	"github.com/dukerupert/questwalk/internal/missionapi"
	"github.com/dukerupert/questwalk/internal/navigation"
	"github.com/dukerupert/questwalk/internal/progress"
	"github.com/dukerupert/questwalk/internal/visit"
	ws "github.com/dukerupert/questwalk/internal/websocket"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(remote.Close)

	api, err := missionapi.NewClient(missionapi.Config{BaseURL: remote.URL}, logger)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	mailbox := navigation.NewMailbox()
	controller := mission.NewController(progress.NewMemoryStore(), api, mailbox, logger, mission.Options{})
	h := handler.NewMissionHandler(controller, api, visit.NewService(api, mailbox, logger), mailbox, logger)
	return New(h, ws.NewHub(logger), logger)
}

func TestHealth(t *testing.T) {
	s := setupServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestMissionWithoutCheckIn(t *testing.T) {
	s := setupServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/mission", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var v mission.View
	json.NewDecoder(rec.Body).Decode(&v)
	if v.State != mission.StateNotStarted {
		t.Errorf("state = %s", v.State)
	}
}

func TestVisitRateLimited(t *testing.T) {
	s := setupServer(t)
	router := s.Router()

	var last int
	for range visitLimit + 1 {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/tasks/t1/visit", nil))
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", last, http.StatusTooManyRequests)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := setupServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/mission", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
