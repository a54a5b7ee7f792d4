// Package service implements case CRUD and document intake. Lifecycle
// transitions live in the lifecycle package; evaluation in the evaluation
// package.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"boreal/internal/billing"
	"boreal/internal/casefile/models"
	"boreal/internal/casefile/store"
	"boreal/internal/profile"
	id "boreal/pkg/domain"
	dErrors "boreal/pkg/domain-errors"
	audit "boreal/pkg/platform/audit"
	"boreal/pkg/platform/audit/publisher"
	"boreal/pkg/platform/sentinel"
	txcontext "boreal/pkg/platform/tx"
	"boreal/pkg/requestcontext"
)

// Service owns case aggregates for a tenant.
type Service struct {
	cases     store.CaseStore
	snapshots store.SnapshotStore
	events    store.EventStore
	documents store.DocumentStore
	tenants   store.TenantStore
	billing   *billing.Service
	audit     *publisher.Publisher
	db        *sql.DB
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithAudit wires the audit publisher.
func WithAudit(p *publisher.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

// WithDB enables transactional commits. Without it, stores are updated
// sequentially; use only with the in-memory stores.
func WithDB(db *sql.DB) Option {
	return func(s *Service) { s.db = db }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(cases store.CaseStore, snapshots store.SnapshotStore, events store.EventStore, documents store.DocumentStore, tenants store.TenantStore, billingSvc *billing.Service, opts ...Option) *Service {
	s := &Service{
		cases:     cases,
		snapshots: snapshots,
		events:    events,
		documents: documents,
		tenants:   tenants,
		billing:   billingSvc,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCase opens a new draft case, subject to the tenant's plan quota.
// The case row, its version-1 snapshot and the CASE_CREATED event commit
// together or not at all.
func (s *Service) CreateCase(ctx context.Context, source string, p profile.Profile) (*models.Case, error) {
	tenantID := requestcontext.TenantID(ctx)
	actorID := requestcontext.UserID(ctx)

	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	active, err := s.cases.CountActive(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count cases")
	}
	if err := s.billing.CheckCaseQuota(ctx, tenantID, tenant.Plan, active); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	c := &models.Case{
		ID:        id.NewCaseID(),
		TenantID:  tenantID,
		Status:    models.StatusDraft,
		Source:    source,
		CreatedBy: actorID,
		Profile:   p,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.cases.Create(ctx, c); err != nil {
			return fmt.Errorf("create case: %w", err)
		}

		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal snapshot payload: %w", err)
		}
		if err := s.snapshots.Append(ctx, &models.Snapshot{
			ID:        id.NewSnapshotID(),
			TenantID:  tenantID,
			CaseID:    c.ID,
			Version:   1,
			Payload:   payload,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("append creation snapshot: %w", err)
		}

		return s.events.Append(ctx, &models.CaseEvent{
			ID:        id.NewEventID(),
			TenantID:  tenantID,
			CaseID:    c.ID,
			EventType: models.EventCaseCreated,
			ActorID:   actorID,
			Metadata:  map[string]string{"to": string(models.StatusDraft)},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create case")
	}

	if err := s.billing.RecordUsage(ctx, tenantID, billing.UsageCaseCreated); err != nil {
		s.logger.ErrorContext(ctx, "record case usage failed", slog.String("error", err.Error()))
	}
	s.emitAudit(ctx, tenantID, c.ID, "case_created")
	return c, nil
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.db == nil {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// GetCase loads a case within the caller's tenant.
func (s *Service) GetCase(ctx context.Context, caseID id.CaseID) (*models.Case, error) {
	c, err := s.cases.Get(ctx, requestcontext.TenantID(ctx), caseID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "case not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load case")
	}
	return c, nil
}

// ListCases lists the tenant's active cases.
func (s *Service) ListCases(ctx context.Context) ([]*models.Case, error) {
	return s.cases.List(ctx, requestcontext.TenantID(ctx))
}

// UpdateProfile replaces the canonical profile. Only draft cases accept
// profile changes; later states are evidence for decisions already taken.
func (s *Service) UpdateProfile(ctx context.Context, caseID id.CaseID, p profile.Profile) (*models.Case, error) {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusDraft {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"profile of a %s case is immutable", c.Status)
	}
	c.Profile = p
	c.UpdatedAt = requestcontext.Now(ctx)
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update case")
	}
	return c, nil
}

// AddDocument records an uploaded document against a case.
func (s *Service) AddDocument(ctx context.Context, caseID id.CaseID, documentType, category, filename string) (*models.Document, error) {
	if documentType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "document type is required")
	}
	if _, err := s.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	doc := &models.Document{
		ID:           id.NewDocumentID(),
		TenantID:     requestcontext.TenantID(ctx),
		CaseID:       caseID,
		DocumentType: documentType,
		Category:     category,
		Filename:     filename,
		Status:       "uploaded",
		UploadedAt:   requestcontext.Now(ctx),
	}
	if err := s.documents.Add(ctx, doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store document")
	}
	return doc, nil
}

// ListDocuments lists the documents attached to a case.
func (s *Service) ListDocuments(ctx context.Context, caseID id.CaseID) ([]*models.Document, error) {
	if _, err := s.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.documents.List(ctx, requestcontext.TenantID(ctx), caseID)
}

// Tenant loads the caller's tenant.
func (s *Service) Tenant(ctx context.Context) (*models.Tenant, error) {
	return s.tenant(ctx, requestcontext.TenantID(ctx))
}

func (s *Service) tenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	tenant, err := s.tenants.Get(ctx, tenantID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "tenant not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load tenant")
	}
	return tenant, nil
}

func (s *Service) emitAudit(ctx context.Context, tenantID id.TenantID, caseID id.CaseID, action string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		TenantID:  tenantID,
		CaseID:    caseID,
		ActorID:   requestcontext.UserID(ctx),
		Subject:   caseID.String(),
		Action:    action,
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", slog.String("error", err.Error()))
	}
}
