// Package tasks manages per-case workflow tasks. Dependencies form a DAG;
// edges are validated with a bounded DFS at insert time, and a task cannot
// start or finish while any dependency is unfinished.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"boreal/internal/tasks/models"
	"boreal/internal/tasks/store"
	id "boreal/pkg/domain"
	dErrors "boreal/pkg/domain-errors"
	"boreal/pkg/platform/sentinel"
	"boreal/pkg/requestcontext"
)

var transitions = map[models.TaskStatus][]models.TaskStatus{
	models.StatusReady:      {models.StatusInProgress, models.StatusBlocked, models.StatusCancelled},
	models.StatusInProgress: {models.StatusDone, models.StatusBlocked, models.StatusReady, models.StatusCancelled},
	models.StatusBlocked:    {models.StatusReady, models.StatusInProgress, models.StatusCancelled},
	models.StatusDone:       {},
	models.StatusCancelled:  {},
}

// CanTransition reports whether from -> to is an allowed status hop.
func CanTransition(from, to models.TaskStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Service owns task state and dependency edges.
type Service struct {
	tasks  store.TaskStore
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(tasks store.TaskStore, opts ...Option) *Service {
	s := &Service{tasks: tasks, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask opens a new task in ready state.
func (s *Service) CreateTask(ctx context.Context, caseID id.CaseID, title string, dueAt, reminderAt *time.Time) (*models.Task, error) {
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "task title is required")
	}
	now := requestcontext.Now(ctx)
	task := &models.Task{
		ID:         id.NewTaskID(),
		TenantID:   requestcontext.TenantID(ctx),
		CaseID:     caseID,
		Title:      title,
		Status:     models.StatusReady,
		Assignee:   requestcontext.UserID(ctx),
		DueAt:      dueAt,
		ReminderAt: reminderAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create task")
	}
	return task, nil
}

// Get loads a task within the caller's tenant.
func (s *Service) Get(ctx context.Context, taskID id.TaskID) (*models.Task, error) {
	task, err := s.tasks.Get(ctx, requestcontext.TenantID(ctx), taskID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "task not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load task")
	}
	return task, nil
}

// ListByCase lists a case's tasks in creation order.
func (s *Service) ListByCase(ctx context.Context, caseID id.CaseID) ([]*models.Task, error) {
	return s.tasks.ListByCase(ctx, requestcontext.TenantID(ctx), caseID)
}

// AddDependency inserts a depends-on edge. The edge is rejected when it would
// close a cycle: a forward DFS from the candidate dependency must not reach
// the dependent task. The walk is bounded by the case's task count.
func (s *Service) AddDependency(ctx context.Context, taskID, dependsOn id.TaskID) error {
	if taskID == dependsOn {
		return dErrors.New(dErrors.CodeInvariantViolation, "task cannot depend on itself")
	}
	tenantID := requestcontext.TenantID(ctx)

	task, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}
	dep, err := s.Get(ctx, dependsOn)
	if err != nil {
		return err
	}
	if dep.CaseID != task.CaseID {
		return dErrors.New(dErrors.CodeInvalidInput, "dependency must belong to the same case")
	}

	siblings, err := s.tasks.ListByCase(ctx, tenantID, task.CaseID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load case tasks")
	}
	if reaches(siblings, dependsOn, taskID) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"dependency %s -> %s would create a cycle", taskID, dependsOn)
	}

	if err := s.tasks.AddDependency(ctx, tenantID, taskID, dependsOn); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "dependency already exists")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "add dependency")
	}
	return nil
}

// reaches walks depends-on edges from start and reports whether target is
// reachable.
func reaches(tasks []*models.Task, start, target id.TaskID) bool {
	edges := make(map[id.TaskID][]id.TaskID, len(tasks))
	for _, t := range tasks {
		edges[t.ID] = t.DependsOn
	}
	seen := make(map[id.TaskID]bool, len(tasks))
	stack := []id.TaskID{start}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == target {
			return true
		}
		if seen[current] {
			continue
		}
		seen[current] = true
		stack = append(stack, edges[current]...)
	}
	return false
}

// Transition moves a task to a new status. Starting or finishing a task
// requires every dependency to be done.
func (s *Service) Transition(ctx context.Context, taskID id.TaskID, to models.TaskStatus) (*models.Task, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(task.Status, to) {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"task transition %s -> %s is not allowed", task.Status, to)
	}

	if to == models.StatusInProgress || to == models.StatusDone {
		unfinished, err := s.unfinishedDependencies(ctx, task)
		if err != nil {
			return nil, err
		}
		if len(unfinished) > 0 {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
				"task has %d unfinished dependencies", len(unfinished))
		}
	}

	task.Status = to
	task.UpdatedAt = requestcontext.Now(ctx)
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update task")
	}
	s.logger.InfoContext(ctx, "task transitioned",
		slog.String("task_id", taskID.String()), slog.String("status", string(to)))
	return task, nil
}

func (s *Service) unfinishedDependencies(ctx context.Context, task *models.Task) ([]id.TaskID, error) {
	tenantID := requestcontext.TenantID(ctx)
	var unfinished []id.TaskID
	for _, depID := range task.DependsOn {
		dep, err := s.tasks.Get(ctx, tenantID, depID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load dependency")
		}
		if dep.Status != models.StatusDone {
			unfinished = append(unfinished, depID)
		}
	}
	return unfinished, nil
}
