package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blrlabs/codelab/internal/curriculum"
	"github.com/blrlabs/codelab/internal/domain"
	"github.com/blrlabs/codelab/internal/engine"
	"github.com/blrlabs/codelab/internal/events"
	"github.com/blrlabs/codelab/internal/identity"
	"github.com/blrlabs/codelab/internal/status"
)

// SessionHandler exposes the progression engine over HTTP. Session state
// travels in the request/response bodies: the handler owns no conversation
// state of its own.
type SessionHandler struct {
	engine     *engine.Engine
	summarizer *status.Summarizer
	catalog    *curriculum.Catalog
	hub        *events.Hub
	runEnabled bool
}

// NewSessionHandler creates the handler.
func NewSessionHandler(eng *engine.Engine, summarizer *status.Summarizer, catalog *curriculum.Catalog, hub *events.Hub, runEnabled bool) *SessionHandler {
	return &SessionHandler{
		engine:     eng,
		summarizer: summarizer,
		catalog:    catalog,
		hub:        hub,
		runEnabled: runEnabled,
	}
}

// RegisterRoutes registers all session and progress routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.Me)
		r.Get("/curriculum", h.Curriculum)
		r.Get("/progress", h.Progress)
		r.Post("/session/start", h.Start)
		r.Post("/session/resume", h.Resume)
		r.Post("/session/turn", h.Turn)
		r.Post("/session/run", h.Run)
		r.Post("/session/reset", h.Reset)
	})
}

// Me echoes the request identity.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	username := identity.UsernameFromContext(r.Context())
	JSON(w, http.StatusOK, map[string]interface{}{
		"username":      username,
		"authenticated": username != "",
	})
}

// Curriculum returns the goals and their ordered module sequences.
func (h *SessionHandler) Curriculum(w http.ResponseWriter, r *http.Request) {
	goals := make([]curriculum.Goal, 0, len(h.catalog.Goals()))
	for _, name := range h.catalog.Goals() {
		modules, err := h.catalog.ModulesFor(name)
		if err != nil {
			Error(w, http.StatusInternalServerError, "catalog inconsistent")
			return
		}
		goals = append(goals, curriculum.Goal{Name: name, Modules: modules})
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"goals":       goals,
		"run_enabled": h.runEnabled,
	})
}

// Progress returns the display summary for the request identity.
func (h *SessionHandler) Progress(w http.ResponseWriter, r *http.Request) {
	username := identity.UsernameFromContext(r.Context())
	summary, err := h.summarizer.Summarize(r.Context(), username)
	if err != nil {
		slog.Error("Failed to summarize progress", "username", username, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load progress")
		return
	}
	JSON(w, http.StatusOK, summary)
}

type startRequest struct {
	Goal string `json:"goal"`
}

// Start begins a course at the goal's first module.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Goal == "" {
		Error(w, http.StatusBadRequest, "goal is required")
		return
	}

	username := identity.UsernameFromContext(r.Context())
	sess, err := h.engine.StartCourse(r.Context(), username, req.Goal)
	if err != nil {
		slog.Warn("Failed to start course", "goal", req.Goal, "username", username, "error", err)
		Error(w, statusFor(err), "failed to start course")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"session": sess})
}

// Resume rebuilds a session from the stored progress record.
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	username := identity.UsernameFromContext(r.Context())
	if username == "" {
		Error(w, http.StatusUnauthorized, "resume requires an authenticated user")
		return
	}

	sess, ok, err := h.engine.Resume(r.Context(), username)
	if err != nil {
		slog.Error("Failed to resume session", "username", username, "error", err)
		Error(w, http.StatusInternalServerError, "failed to resume session")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"resumed": ok,
		"session": sess,
	})
}

type resetRequest struct {
	Session domain.Session `json:"session"`
}

// Reset returns the session to goal selection, discarding the transcript.
// Stored progress is untouched; a later resume picks up where the learner
// left off.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"session": req.Session.Reset()})
}

type turnRequest struct {
	Session domain.Session `json:"session"`
	Input   string         `json:"input"`
}

// Turn runs one conversational turn.
func (h *SessionHandler) Turn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.validSession(req.Session) {
		Error(w, http.StatusBadRequest, "session module does not belong to goal")
		return
	}

	username := identity.UsernameFromContext(r.Context())
	result, err := h.engine.AdvanceTurn(r.Context(), username, req.Session, req.Input)
	h.respondTurn(w, r, result, err)
}

type runRequest struct {
	Session domain.Session `json:"session"`
	Code    string         `json:"code"`
}

// Run executes a snippet in the sandbox and feeds the output into the turn.
func (h *SessionHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.runEnabled {
		Error(w, http.StatusServiceUnavailable, "code execution is disabled")
		return
	}

	var req runRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.validSession(req.Session) {
		Error(w, http.StatusBadRequest, "session module does not belong to goal")
		return
	}

	username := identity.UsernameFromContext(r.Context())
	result, err := h.engine.RunCode(r.Context(), username, req.Session, req.Code)
	h.respondTurn(w, r, result, err)
}

// validSession enforces the session invariant: module belongs to goal, or
// both are unset.
func (h *SessionHandler) validSession(sess domain.Session) bool {
	if sess.Selecting() {
		return false // turns require an active goal
	}
	return h.catalog.Contains(sess.Goal, sess.Module)
}

// respondTurn renders a turn result or failure. On collaborator failure the
// partial session is returned so the learner's message is not lost. Events
// are published only when the client identified its session, so one
// learner's replies never reach another's stream.
func (h *SessionHandler) respondTurn(w http.ResponseWriter, r *http.Request, result engine.TurnResult, err error) {
	username := identity.UsernameFromContext(r.Context())
	if err != nil {
		slog.Warn("Turn failed", "username", username, "error", err)
		JSON(w, statusFor(err), map[string]interface{}{
			"error":   "the tutor is unavailable right now, please try again",
			"session": result.Session,
		})
		return
	}

	sessionKey := identity.SessionKeyFromContext(r.Context())
	if key := events.Key(username, sessionKey); key != "" && !result.NoOp {
		h.hub.Publish(key, events.NewTurnEvent(
			username,
			sessionKey,
			result.Session.Goal,
			result.Session.Module,
			result.Reply,
			result.Output,
			result.CourseComplete,
		))
	}

	JSON(w, http.StatusOK, result)
}
