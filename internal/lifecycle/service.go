// Package lifecycle drives the case state machine. Every transition is
// validated against a closed table, gated by role, and committed atomically
// with its snapshot and event log entry.
package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"boreal/internal/casefile/models"
	"boreal/internal/casefile/store"
	id "boreal/pkg/domain"
	dErrors "boreal/pkg/domain-errors"
	audit "boreal/pkg/platform/audit"
	"boreal/pkg/platform/audit/publisher"
	"boreal/pkg/platform/sentinel"
	txcontext "boreal/pkg/platform/tx"
	"boreal/pkg/requestcontext"
)

// transitions is the closed state machine. Absent target means forbidden;
// archived is terminal.
var transitions = map[models.CaseStatus][]models.CaseStatus{
	models.StatusDraft:     {models.StatusSubmitted, models.StatusArchived},
	models.StatusSubmitted: {models.StatusInReview, models.StatusArchived},
	models.StatusInReview:  {models.StatusComplete, models.StatusArchived},
	models.StatusComplete:  {models.StatusArchived},
	models.StatusArchived:  {},
}

// auditActions maps a reached status to its audit trail action.
var auditActions = map[models.CaseStatus]string{
	models.StatusSubmitted: "case_submitted",
	models.StatusInReview:  "case_review_started",
	models.StatusComplete:  "case_completed",
	models.StatusArchived:  "case_archived",
}

// eventTypes maps a reached status to its case history event type.
var eventTypes = map[models.CaseStatus]string{
	models.StatusSubmitted: models.EventCaseSubmitted,
	models.StatusInReview:  models.EventCaseReviewStarted,
	models.StatusComplete:  models.EventCaseCompleted,
	models.StatusArchived:  models.EventCaseArchived,
}

// CanTransition reports whether the move is allowed by the table.
func CanTransition(from, to models.CaseStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Service executes lifecycle transitions.
type Service struct {
	cases     store.CaseStore
	snapshots store.SnapshotStore
	events    store.EventStore
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

func NewService(cases store.CaseStore, snapshots store.SnapshotStore, events store.EventStore, opts ...Option) *Service {
	s := &Service{
		cases:     cases,
		snapshots: snapshots,
		events:    events,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transition moves a case to the target status. The status update, the
// snapshot and the event log entry commit together or not at all.
func (s *Service) Transition(ctx context.Context, caseID id.CaseID, target models.CaseStatus) (*models.Case, error) {
	tenantID := requestcontext.TenantID(ctx)
	actorID := requestcontext.UserID(ctx)

	if !requestcontext.Role(ctx).CanDriveLifecycle() {
		return nil, dErrors.New(dErrors.CodeForbidden, "role may not drive the case lifecycle")
	}

	c, err := s.cases.Get(ctx, tenantID, caseID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "case not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load case")
	}

	from := c.Status
	if !CanTransition(from, target) {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"transition %s -> %s is not allowed", from, target)
	}

	now := requestcontext.Now(ctx)

	err = s.inTx(ctx, func(ctx context.Context) error {
		// Re-read inside the transaction; a concurrent transition may have
		// moved the case since the first load.
		cur, err := s.cases.Get(ctx, tenantID, caseID)
		if err != nil {
			return fmt.Errorf("reload case: %w", err)
		}
		from = cur.Status
		if !CanTransition(from, target) {
			return dErrors.Newf(dErrors.CodeInvariantViolation,
				"transition %s -> %s is not allowed", from, target)
		}
		cur.Status = target
		cur.UpdatedAt = now

		if err := s.cases.Update(ctx, cur); err != nil {
			return fmt.Errorf("update case status: %w", err)
		}

		version, err := s.snapshots.NextVersion(ctx, tenantID, caseID)
		if err != nil {
			return fmt.Errorf("next snapshot version: %w", err)
		}
		payload, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("marshal snapshot payload: %w", err)
		}
		if err := s.snapshots.Append(ctx, &models.Snapshot{
			ID:        id.NewSnapshotID(),
			TenantID:  tenantID,
			CaseID:    caseID,
			Version:   version,
			Payload:   payload,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("append snapshot: %w", err)
		}

		if err := s.events.Append(ctx, &models.CaseEvent{
			ID:        id.NewEventID(),
			TenantID:  tenantID,
			CaseID:    caseID,
			EventType: eventTypes[target],
			ActorID:   actorID,
			Metadata:  map[string]string{"from": string(from), "to": string(target)},
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		c = cur
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			// The snapshot version unique constraint tripped: another
			// transition committed between our reload and our append.
			return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "concurrent transition")
		case dErrors.CodeOf(err) != dErrors.CodeInternal:
			return nil, err
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "commit transition")
		}
	}

	s.emitAudit(ctx, tenantID, caseID, actorID, auditActions[target], string(from), string(target))
	s.logger.InfoContext(ctx, "case transitioned",
		slog.String("case_id", caseID.String()),
		slog.String("from", string(from)),
		slog.String("to", string(target)))
	return c, nil
}

// Delete soft-deletes a case. Admin roles only; the row survives for audit.
func (s *Service) Delete(ctx context.Context, caseID id.CaseID) error {
	tenantID := requestcontext.TenantID(ctx)
	actorID := requestcontext.UserID(ctx)

	if !requestcontext.Role(ctx).IsAdmin() {
		return dErrors.New(dErrors.CodeForbidden, "only admins may delete cases")
	}

	if err := s.cases.SoftDelete(ctx, tenantID, caseID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "case not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete case")
	}

	s.emitAudit(ctx, tenantID, caseID, actorID, "case_deleted", "", "")
	return nil
}

// History returns the event log for a case.
func (s *Service) History(ctx context.Context, caseID id.CaseID) ([]*models.CaseEvent, error) {
	return s.events.List(ctx, requestcontext.TenantID(ctx), caseID)
}

// Snapshots returns the versioned snapshots for a case.
func (s *Service) Snapshots(ctx context.Context, caseID id.CaseID) ([]*models.Snapshot, error) {
	return s.snapshots.List(ctx, requestcontext.TenantID(ctx), caseID)
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

func (s *Service) emitAudit(ctx context.Context, tenantID id.TenantID, caseID id.CaseID, actorID id.UserID, action, from, to string) {
	if s.audit == nil {
		return
	}
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		TenantID:  tenantID,
		CaseID:    caseID,
		ActorID:   actorID,
		Subject:   caseID.String(),
		Action:    action,
		RequestID: requestcontext.RequestID(ctx),
	}
	if from != "" {
		event.Reason = fmt.Sprintf("%s -> %s", from, to)
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			slog.String("action", action), slog.String("error", err.Error()))
	}
}
