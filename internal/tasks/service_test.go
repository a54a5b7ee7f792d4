package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"boreal/internal/tasks/models"
	"boreal/internal/tasks/store/memory"
	id "boreal/pkg/domain"
	dErrors "boreal/pkg/domain-errors"
	"boreal/pkg/requestcontext"
)

type TasksSuite struct {
	suite.Suite

	service  *Service
	tenantID id.TenantID
	caseID   id.CaseID
	ctx      context.Context
}

func TestTasksSuite(t *testing.T) {
	suite.Run(t, new(TasksSuite))
}

func (s *TasksSuite) SetupTest() {
	s.service = NewService(memory.NewTaskStore())
	s.tenantID = id.NewTenantID()
	s.caseID = id.NewCaseID()

	ctx := requestcontext.WithTenantID(context.Background(), s.tenantID)
	ctx = requestcontext.WithUserID(ctx, id.NewUserID())
	s.ctx = requestcontext.WithTime(ctx, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
}

func (s *TasksSuite) create(title string) *models.Task {
	task, err := s.service.CreateTask(s.ctx, s.caseID, title, nil, nil)
	s.Require().NoError(err)
	return task
}

func (s *TasksSuite) TestCreateTask() {
	task := s.create("collect language results")
	s.Equal(models.StatusReady, task.Status)
	s.Equal(s.caseID, task.CaseID)

	s.Run("empty title rejected", func() {
		_, err := s.service.CreateTask(s.ctx, s.caseID, "", nil, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *TasksSuite) TestDependencyCycleRejected() {
	a := s.create("a")
	b := s.create("b")
	c := s.create("c")

	s.Require().NoError(s.service.AddDependency(s.ctx, b.ID, a.ID))
	s.Require().NoError(s.service.AddDependency(s.ctx, c.ID, b.ID))

	s.Run("direct cycle", func() {
		err := s.service.AddDependency(s.ctx, a.ID, b.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("transitive cycle", func() {
		err := s.service.AddDependency(s.ctx, a.ID, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("self dependency", func() {
		err := s.service.AddDependency(s.ctx, a.ID, a.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("duplicate edge", func() {
		err := s.service.AddDependency(s.ctx, b.ID, a.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("diamond is not a cycle", func() {
		d := s.create("d")
		s.NoError(s.service.AddDependency(s.ctx, d.ID, a.ID))
		s.NoError(s.service.AddDependency(s.ctx, d.ID, c.ID))
	})
}

func (s *TasksSuite) TestCrossCaseDependencyRejected() {
	a := s.create("a")
	other, err := s.service.CreateTask(s.ctx, id.NewCaseID(), "other", nil, nil)
	s.Require().NoError(err)

	err = s.service.AddDependency(s.ctx, a.ID, other.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *TasksSuite) TestDependenciesGateProgress() {
	dep := s.create("upload passport")
	task := s.create("review identity documents")
	s.Require().NoError(s.service.AddDependency(s.ctx, task.ID, dep.ID))

	_, err := s.service.Transition(s.ctx, task.ID, models.StatusInProgress)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	s.Run("blocked is still reachable", func() {
		blocked, err := s.service.Transition(s.ctx, task.ID, models.StatusBlocked)
		s.Require().NoError(err)
		s.Equal(models.StatusBlocked, blocked.Status)
		_, err = s.service.Transition(s.ctx, task.ID, models.StatusReady)
		s.Require().NoError(err)
	})

	s.Run("done dependency unlocks the task", func() {
		_, err := s.service.Transition(s.ctx, dep.ID, models.StatusInProgress)
		s.Require().NoError(err)
		_, err = s.service.Transition(s.ctx, dep.ID, models.StatusDone)
		s.Require().NoError(err)

		started, err := s.service.Transition(s.ctx, task.ID, models.StatusInProgress)
		s.Require().NoError(err)
		s.Equal(models.StatusInProgress, started.Status)
		finished, err := s.service.Transition(s.ctx, task.ID, models.StatusDone)
		s.Require().NoError(err)
		s.Equal(models.StatusDone, finished.Status)
	})
}

func (s *TasksSuite) TestTerminalStates() {
	task := s.create("a")
	_, err := s.service.Transition(s.ctx, task.ID, models.StatusCancelled)
	s.Require().NoError(err)

	_, err = s.service.Transition(s.ctx, task.ID, models.StatusReady)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *TasksSuite) TestInvalidHops() {
	task := s.create("a")

	// ready -> done skips in_progress
	_, err := s.service.Transition(s.ctx, task.ID, models.StatusDone)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *TasksSuite) TestListByCase() {
	s.create("first")
	s.create("second")

	tasks, err := s.service.ListByCase(s.ctx, s.caseID)
	s.Require().NoError(err)
	s.Require().Len(tasks, 2)
	s.Equal("first", tasks[0].Title)
	s.Equal("second", tasks[1].Title)
}

func (s *TasksSuite) TestTenantIsolation() {
	task := s.create("a")

	other := requestcontext.WithTenantID(context.Background(), id.NewTenantID())
	_, err := s.service.Get(other, task.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
