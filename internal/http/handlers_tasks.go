package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"boreal/internal/tasks/models"
	id "boreal/pkg/domain"
	dErrors "boreal/pkg/domain-errors"
	"boreal/pkg/platform/httputil"
)

func taskIDParam(r *http.Request) (id.TaskID, error) {
	taskID, err := id.ParseTaskID(chi.URLParam(r, "taskID"))
	if err != nil {
		return id.TaskID{}, dErrors.New(dErrors.CodeValidation, "invalid task id")
	}
	return taskID, nil
}

type createTaskRequest struct {
	Title      string     `json:"title"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	ReminderAt *time.Time `json:"reminder_at,omitempty"`
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if _, err := h.cases.GetCase(r.Context(), caseID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	task, err := h.tasks.CreateTask(r.Context(), caseID, req.Title, req.DueAt, req.ReminderAt)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, task)
}

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	caseID, err := caseIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tasks, err := h.tasks.ListByCase(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

type taskTransitionRequest struct {
	To string `json:"to"`
}

func (h *Handler) handleTaskTransition(w http.ResponseWriter, r *http.Request) {
	taskID, err := taskIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req taskTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	status, err := models.ParseTaskStatus(req.To)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown task status"))
		return
	}
	task, err := h.tasks.Transition(r.Context(), taskID, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, task)
}

type taskDependencyRequest struct {
	DependsOn string `json:"depends_on"`
}

func (h *Handler) handleTaskDependency(w http.ResponseWriter, r *http.Request) {
	taskID, err := taskIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req taskDependencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	dependsOn, err := id.ParseTaskID(req.DependsOn)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid dependency task id"))
		return
	}
	if err := h.tasks.AddDependency(r.Context(), taskID, dependsOn); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
