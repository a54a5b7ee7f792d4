// Package memory provides an in-memory task store for tests and local
// development.
package memory

import (
	"context"
	"sort"
	"sync"

	"boreal/internal/tasks/models"
	id "boreal/pkg/domain"
	"boreal/pkg/platform/sentinel"
)

type taskKey struct {
	tenant id.TenantID
	task   id.TaskID
}

// TaskStore is an in-memory store.TaskStore.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[taskKey]*models.Task
	seq   map[taskKey]int
	next  int
}

func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[taskKey]*models.Task),
		seq:   make(map[taskKey]int),
	}
}

func copyTask(t *models.Task) *models.Task {
	cp := *t
	cp.DependsOn = append([]id.TaskID(nil), t.DependsOn...)
	return &cp
}

func (s *TaskStore) Create(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := taskKey{task.TenantID, task.ID}
	if _, ok := s.tasks[key]; ok {
		return sentinel.ErrConflict
	}
	s.tasks[key] = copyTask(task)
	s.seq[key] = s.next
	s.next++
	return nil
}

func (s *TaskStore) Get(_ context.Context, tenantID id.TenantID, taskID id.TaskID) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskKey{tenantID, taskID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyTask(task), nil
}

func (s *TaskStore) Update(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := taskKey{task.TenantID, task.ID}
	if _, ok := s.tasks[key]; !ok {
		return sentinel.ErrNotFound
	}
	s.tasks[key] = copyTask(task)
	return nil
}

func (s *TaskStore) ListByCase(_ context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Task
	for key, task := range s.tasks {
		if key.tenant == tenantID && task.CaseID == caseID {
			out = append(out, copyTask(task))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[taskKey{tenantID, out[i].ID}] < s.seq[taskKey{tenantID, out[j].ID}]
	})
	return out, nil
}

func (s *TaskStore) AddDependency(_ context.Context, tenantID id.TenantID, taskID, dependsOn id.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskKey{tenantID, taskID}]
	if !ok {
		return sentinel.ErrNotFound
	}
	for _, dep := range task.DependsOn {
		if dep == dependsOn {
			return sentinel.ErrConflict
		}
	}
	task.DependsOn = append(task.DependsOn, dependsOn)
	return nil
}
