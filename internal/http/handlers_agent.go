package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"boreal/internal/agent/models"
	id "boreal/pkg/domain"
	dErrors "boreal/pkg/domain-errors"
	"boreal/pkg/platform/httputil"
	"boreal/pkg/platform/middleware/metadata"
)

func sessionIDParam(r *http.Request) (id.SessionID, error) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		return id.SessionID{}, dErrors.New(dErrors.CodeValidation, "invalid session id")
	}
	return sessionID, nil
}

type startSessionRequest struct {
	AgentName      string            `json:"agent_name"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Context        map[string]string `json:"context,omitempty"`
	AutoRun        bool              `json:"auto_run,omitempty"`
}

func (h *Handler) handleStartAgentSession(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if _, err := h.cases.GetCase(r.Context(), caseID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	// Client metadata travels with the session so agent runs can be traced
	// back to their origin.
	if req.Context == nil {
		req.Context = make(map[string]string)
	}
	if ip := metadata.GetClientIP(r.Context()); ip != "" {
		req.Context["client_ip"] = ip
	}
	if ua := metadata.GetUserAgent(r.Context()); ua != "" {
		req.Context["user_agent"] = ua
	}
	session, err := h.agent.StartSession(r.Context(), caseID, req.AgentName,
		req.IdempotencyKey, req.Context, req.AutoRun)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleListAgentSessions(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sessions, err := h.agent.ListSessions(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type recordActionRequest struct {
	ActionType string         `json:"action_type"`
	Payload    map[string]any `json:"payload,omitempty"`
	Status     string         `json:"status"`
	AutoMode   bool           `json:"auto_mode,omitempty"`
}

func (h *Handler) handleRecordAgentAction(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req recordActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	status := models.ActionStatus(req.Status)
	if status == "" {
		status = models.ActionSuggested
	}
	action, err := h.agent.RecordAction(r.Context(), sessionID, req.ActionType,
		req.Payload, status, req.AutoMode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, action)
}

func (h *Handler) handleListAgentActions(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actions, err := h.agent.ListActions(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

type endSessionRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleEndAgentSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req endSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	session, err := h.agent.EndSession(r.Context(), sessionID, models.SessionStatus(req.Status))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}
