// Package store defines the persistence port for workflow tasks.
package store

import (
	"context"

	"boreal/internal/tasks/models"
	id "boreal/pkg/domain"
)

//go:generate mockgen -source=store.go -destination=mocks/store_mock.go -package=mocks

// TaskStore persists tasks and their dependency edges, scoped by tenant.
// Implementations return sentinel errors; services translate them.
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, tenantID id.TenantID, taskID id.TaskID) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	ListByCase(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.Task, error)
	AddDependency(ctx context.Context, tenantID id.TenantID, taskID, dependsOn id.TaskID) error
}
