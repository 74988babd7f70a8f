package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/soyeahso/switchboard/internal/coordinator"
	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/version"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// writeDomainError maps coordinator errors onto HTTP statuses. Unmatched
// errors surface as 500 without leaking internals into the body.
func writeDomainError(w http.ResponseWriter, err error) {
	var unknown *domain.UnknownAgentError
	var active *domain.AlreadyActiveError
	var denied *coordinator.AuthFailedError
	switch {
	case errors.As(err, &unknown):
		writeError(w, http.StatusNotFound, "unknown_agent", unknown.Error())
	case errors.As(err, &active):
		writeJSON(w, http.StatusConflict, struct {
			errorBody
			ExistingSession domain.Session `json:"existingSession"`
		}{
			errorBody:       errorBody{Error: "already_active", Message: active.Error()},
			ExistingSession: active.Existing,
		})
	case errors.As(err, &denied):
		writeError(w, http.StatusForbidden, "auth_failed", denied.Error())
	case errors.Is(err, domain.ErrNoActiveSession):
		writeError(w, http.StatusConflict, "no_active_session", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "unknown route: "+r.URL.Path)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       version.Version,
		"uptimeSeconds": int(time.Since(s.startedAt).Seconds()),
	})
}

type loginRequest struct {
	AgentID string `json:"agentId"`
	Secret  string `json:"secret,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "agentId is required")
		return
	}

	sess, err := s.coord.Login(r.Context(), req.AgentID, req.Secret)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type logoutRequest struct {
	AgentID string `json:"agentId"`
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "agentId is required")
		return
	}

	sess, err := s.coord.Logout(r.Context(), req.AgentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleForceLogout(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	adminID := r.Header.Get("X-Admin-ID")
	if adminID == "" {
		adminID = "unknown"
	}

	sess, err := s.coord.ForceLogout(r.Context(), agentID, adminID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.coord.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	viewer := r.URL.Query().Get("viewer")
	if viewer == "" {
		writeError(w, http.StatusBadRequest, "invalid_query", "viewer is required")
		return
	}

	view, err := s.coord.Presence(r.Context(), viewer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
