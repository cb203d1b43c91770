package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Goosie/NostrQuizAndVote/internal/adapters/registry"
	"github.com/Goosie/NostrQuizAndVote/internal/app"
	"github.com/Goosie/NostrQuizAndVote/internal/domain/session"
)

// SessionsHandler handles everything under /sessions/.
type SessionsHandler struct {
	deps Dependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// HandleSessions routes /sessions/{id} and its subresources:
//
//	GET  /sessions/{id}              session snapshot
//	GET  /sessions/{id}/leaderboard  current standings
//	GET  /sessions/{id}/results      final results of a finished game
//	POST /sessions/{id}/start        begin the first question
//	POST /sessions/{id}/continue     advance past a reveal
//	POST /sessions/{id}/end          finish the game immediately
func (h *SessionsHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	sessionID := parts[0]
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case r.Method == http.MethodGet && action == "":
		h.getSession(w, r, sessionID)
	case r.Method == http.MethodGet && action == "leaderboard":
		h.getLeaderboard(w, r, sessionID)
	case r.Method == http.MethodGet && action == "results":
		h.getResults(w, r, sessionID)
	case r.Method == http.MethodPost && action == "start":
		h.command(w, r, sessionID, h.deps.StartGame)
	case r.Method == http.MethodPost && action == "continue":
		h.command(w, r, sessionID, h.deps.ContinueGame)
	case r.Method == http.MethodPost && action == "end":
		h.command(w, r, sessionID, h.deps.EndGame)
	default:
		http.NotFound(w, r)
	}
}

func (h *SessionsHandler) getSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	view, err := h.deps.Session(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *SessionsHandler) getLeaderboard(w http.ResponseWriter, r *http.Request, sessionID string) {
	board, err := h.deps.Leaderboard(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *SessionsHandler) getResults(w http.ResponseWriter, r *http.Request, sessionID string) {
	results, err := h.deps.Results(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *SessionsHandler) command(w http.ResponseWriter, r *http.Request, sessionID string, run func(ctx context.Context, sessionID string) error) {
	if err := run(r.Context(), sessionID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "ok"})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, app.ErrSessionActive),
		errors.Is(err, app.ErrSessionClosed),
		errors.Is(err, session.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, app.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
