// Package store defines the persistence ports for the case domain. Every
// read takes a tenant id; a row from another tenant is indistinguishable
// from a missing row.
package store

import (
	"context"

	"boreal/internal/casefile/models"
	id "boreal/pkg/domain"
)

// CaseStore persists case aggregates. Soft-deleted cases are invisible to
// Get and List but their rows remain for audit.
type CaseStore interface {
	Create(ctx context.Context, c *models.Case) error
	Get(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) (*models.Case, error)
	Update(ctx context.Context, c *models.Case) error
	List(ctx context.Context, tenantID id.TenantID) ([]*models.Case, error)
	SoftDelete(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) error
	CountActive(ctx context.Context, tenantID id.TenantID) (int, error)
}

// SnapshotStore persists versioned case snapshots. NextVersion must be
// monotonic per case; callers running inside a transaction get a version
// that is safe against concurrent transitions.
type SnapshotStore interface {
	Append(ctx context.Context, s *models.Snapshot) error
	NextVersion(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) (int, error)
	List(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.Snapshot, error)
}

// EventStore persists the append-only per-case event log.
type EventStore interface {
	Append(ctx context.Context, e *models.CaseEvent) error
	List(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.CaseEvent, error)
}

// DocumentStore persists uploaded document metadata.
type DocumentStore interface {
	Add(ctx context.Context, d *models.Document) error
	List(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.Document, error)
}

// TenantStore persists tenants.
type TenantStore interface {
	Create(ctx context.Context, t *models.Tenant) error
	Get(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	Update(ctx context.Context, t *models.Tenant) error
}
