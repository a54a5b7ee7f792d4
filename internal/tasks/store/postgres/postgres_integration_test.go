//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"boreal/internal/tasks/models"
	id "boreal/pkg/domain"
	"boreal/pkg/platform/sentinel"
	"boreal/pkg/testutil/containers"
)

type TaskStoreSuite struct {
	suite.Suite

	pg    *containers.PostgresContainer
	store *TaskStore
	ctx   context.Context
}

func TestTaskStoreSuite(t *testing.T) {
	suite.Run(t, new(TaskStoreSuite))
}

func (s *TaskStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewTaskStore(s.pg.DB)
	s.ctx = context.Background()
}

func (s *TaskStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "case_tasks", "case_task_deps"))
}

func (s *TaskStoreSuite) newTask(tenantID id.TenantID, caseID id.CaseID, title string) *models.Task {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Task{
		ID:        id.NewTaskID(),
		TenantID:  tenantID,
		CaseID:    caseID,
		Title:     title,
		Status:    models.StatusReady,
		Assignee:  id.NewUserID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *TaskStoreSuite) TestTaskRoundTrip() {
	tenantID, caseID := id.NewTenantID(), id.NewCaseID()
	due := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Microsecond)

	task := s.newTask(tenantID, caseID, "collect passport")
	task.DueAt = &due
	s.Require().NoError(s.store.Create(s.ctx, task))

	got, err := s.store.Get(s.ctx, tenantID, task.ID)
	s.Require().NoError(err)
	s.Equal("collect passport", got.Title)
	s.Equal(models.StatusReady, got.Status)
	s.Equal(task.Assignee, got.Assignee)
	s.Require().NotNil(got.DueAt)
	s.True(got.DueAt.Equal(due))
	s.Empty(got.DependsOn)

	s.Run("duplicate insert conflicts", func() {
		s.ErrorIs(s.store.Create(s.ctx, task), sentinel.ErrConflict)
	})

	s.Run("update", func() {
		got.Status = models.StatusInProgress
		got.UpdatedAt = time.Now().UTC()
		s.Require().NoError(s.store.Update(s.ctx, got))
		again, err := s.store.Get(s.ctx, tenantID, task.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusInProgress, again.Status)
	})

	s.Run("update of missing task is not found", func() {
		missing := s.newTask(tenantID, caseID, "ghost")
		s.ErrorIs(s.store.Update(s.ctx, missing), sentinel.ErrNotFound)
	})
}

func (s *TaskStoreSuite) TestDependencies() {
	tenantID, caseID := id.NewTenantID(), id.NewCaseID()
	first := s.newTask(tenantID, caseID, "gather documents")
	second := s.newTask(tenantID, caseID, "submit application")
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))

	s.Require().NoError(s.store.AddDependency(s.ctx, tenantID, second.ID, first.ID))

	got, err := s.store.Get(s.ctx, tenantID, second.ID)
	s.Require().NoError(err)
	s.Equal([]id.TaskID{first.ID}, got.DependsOn)

	s.Run("duplicate edge conflicts", func() {
		s.ErrorIs(s.store.AddDependency(s.ctx, tenantID, second.ID, first.ID), sentinel.ErrConflict)
	})

	s.Run("list hydrates edges", func() {
		tasks, err := s.store.ListByCase(s.ctx, tenantID, caseID)
		s.Require().NoError(err)
		s.Require().Len(tasks, 2)
		s.Equal("gather documents", tasks[0].Title)
		s.Equal([]id.TaskID{first.ID}, tasks[1].DependsOn)
	})
}

func (s *TaskStoreSuite) TestTenantIsolation() {
	tenantA, tenantB := id.NewTenantID(), id.NewTenantID()
	caseID := id.NewCaseID()
	task := s.newTask(tenantA, caseID, "book biometrics")
	s.Require().NoError(s.store.Create(s.ctx, task))

	_, err := s.store.Get(s.ctx, tenantB, task.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	tasks, err := s.store.ListByCase(s.ctx, tenantB, caseID)
	s.Require().NoError(err)
	s.Empty(tasks)
}
