package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/questwalk/internal/handler"
	"github.com/dukerupert/questwalk/internal/middleware"
	ws "github.com/dukerupert/questwalk/internal/websocket"
)

const (
	visitLimit  = 10
	visitWindow = time.Minute
)

type Server struct {
	hub         *ws.Hub
	missionH    *handler.MissionHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(missionH *handler.MissionHandler, hub *ws.Hub, logger *slog.Logger) *Server {
	return &Server{
		hub:         hub,
		missionH:    missionH,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RunCleanup drops expired rate-limit windows until ctx is done.
func (s *Server) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.rateLimiter.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	mux.HandleFunc("POST /api/checkin", s.missionH.CheckIn)
	mux.HandleFunc("GET /api/mission", s.missionH.Get)
	mux.HandleFunc("GET /api/missions", s.missionH.List)
	mux.HandleFunc("POST /api/missions/select", s.missionH.Select)
	mux.HandleFunc("POST /api/missions/swap", s.missionH.Swap)
	mux.HandleFunc("POST /api/tasks/{id}/visit", s.rateLimitedHandler(s.missionH.Visit))
	mux.HandleFunc("GET /api/locations/{id}", s.missionH.Location)
	mux.HandleFunc("GET /api/achievements", s.missionH.Achievements)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, visitLimit, visitWindow)
	return rl(h).ServeHTTP
}
