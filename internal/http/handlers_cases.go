package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"boreal/internal/casefile/models"
	"boreal/internal/profile"
	id "boreal/pkg/domain"
	dErrors "boreal/pkg/domain-errors"
	"boreal/pkg/platform/httputil"
)

func caseIDParam(r *http.Request) (id.CaseID, error) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		return id.CaseID{}, dErrors.New(dErrors.CodeValidation, "invalid case id")
	}
	return caseID, nil
}

type createCaseRequest struct {
	Source  string          `json:"source"`
	Profile profile.Profile `json:"profile"`
}

func (h *Handler) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	c, err := h.cases.CreateCase(r.Context(), req.Source, req.Profile)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.metrics.IncrementCasesCreated()
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.cases.ListCases(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"cases": cases})
}

func (h *Handler) handleGetCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.cases.GetCase(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleDeleteCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.lifecycle.Delete(r.Context(), caseID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	c, err := h.cases.UpdateProfile(r.Context(), caseID, p)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

type transitionRequest struct {
	To string `json:"to"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	target, err := models.ParseCaseStatus(req.To)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown case status"))
		return
	}
	c, err := h.lifecycle.Transition(r.Context(), caseID, target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.lifecycle.History(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snapshots, err := h.lifecycle.Snapshots(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots})
}

type addDocumentRequest struct {
	DocumentType string `json:"document_type"`
	Category     string `json:"category"`
	Filename     string `json:"filename"`
}

func (h *Handler) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req addDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	doc, err := h.cases.AddDocument(r.Context(), caseID, req.DocumentType, req.Category, req.Filename)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	docs, err := h.cases.ListDocuments(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
}
