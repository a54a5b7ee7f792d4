// Package store defines persistence ports for agent records.
package store

import (
	"context"
	"time"

	"boreal/internal/agent/models"
	id "boreal/pkg/domain"
)

// SessionStore persists agent sessions, scoped by tenant. Create returns
// sentinel.ErrConflict when the idempotency key is already taken.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, tenantID id.TenantID, sessionID id.SessionID) (*models.Session, error)
	FindByIdempotencyKey(ctx context.Context, tenantID id.TenantID, key string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	ListByCase(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.Session, error)
}

// ActionStore persists recorded actions. Append returns sentinel.ErrConflict
// when the idempotency key is already taken.
type ActionStore interface {
	Append(ctx context.Context, action *models.Action) error
	FindByIdempotencyKey(ctx context.Context, tenantID id.TenantID, key string) (*models.Action, error)
	ListBySession(ctx context.Context, tenantID id.TenantID, sessionID id.SessionID) ([]*models.Action, error)
}

// ThrottleStore tracks the last agent run per (case, agent). The zero time
// with ok=false means the agent never ran.
type ThrottleStore interface {
	LastRun(ctx context.Context, tenantID id.TenantID, caseID id.CaseID, agentName string) (time.Time, bool, error)
	MarkRun(ctx context.Context, tenantID id.TenantID, caseID id.CaseID, agentName string, at time.Time) error
}
