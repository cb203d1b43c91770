// Package api declares HTTP contracts and route registration helpers for the
// host-side operational surface. Gameplay itself never touches HTTP; these
// routes exist for the host operator and for monitoring.
package api

import (
	"context"
	"net/http"

	"github.com/Goosie/NostrQuizAndVote/internal/app"
	"github.com/Goosie/NostrQuizAndVote/internal/domain/scoring"
	"github.com/Goosie/NostrQuizAndVote/pkg/metrics"
)

// Dependencies is the slice of the application service the handlers need.
// Using an interface bundle keeps the handler layer loosely coupled to
// implementations in other packages.
type Dependencies interface {
	Session(ctx context.Context, sessionID string) (app.SessionView, error)
	Leaderboard(ctx context.Context, sessionID string) ([]scoring.PlayerScore, error)
	Results(ctx context.Context, sessionID string) (scoring.GameResults, error)

	StartGame(ctx context.Context, sessionID string) error
	ContinueGame(ctx context.Context, sessionID string) error
	EndGame(ctx context.Context, sessionID string) error

	GetStats(ctx context.Context) app.Stats
}

// Server wires HTTP routes for the operational API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		sessionsHandler: NewSessionsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/sessions/", MetricsMiddleware(s.sessionsHandler.HandleSessions, "sessions"))
	mux.Handle("/metrics", metrics.Handler())
}
