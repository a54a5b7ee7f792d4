// Package agent records agent sessions and suggested actions. The
// orchestrator is strictly suggestion-only: nothing here mutates case
// status, documents or readiness results. Side effects live in action
// payloads for a human to act on.
package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"boreal/internal/agent/models"
	"boreal/internal/agent/store"
	"boreal/internal/billing"
	casestore "boreal/internal/casefile/store"
	id "boreal/pkg/domain"
	dErrors "boreal/pkg/domain-errors"
	audit "boreal/pkg/platform/audit"
	"boreal/pkg/platform/audit/publisher"
	"boreal/pkg/platform/sentinel"
	"boreal/pkg/requestcontext"
)

// protectedActionTypes are actions that would touch case state. Recording
// them as executed is refused regardless of role.
var protectedActionTypes = map[string]bool{
	"case_transition":    true,
	"case_delete":        true,
	"document_update":    true,
	"readiness_override": true,
}

// Service orchestrates agent sessions.
type Service struct {
	sessions store.SessionStore
	actions  store.ActionStore
	throttle store.ThrottleStore
	tenants  casestore.TenantStore
	billing  *billing.Service
	audit    *publisher.Publisher
	logger   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithAudit wires the audit publisher.
func WithAudit(p *publisher.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(sessions store.SessionStore, actions store.ActionStore, throttle store.ThrottleStore, tenants casestore.TenantStore, billingSvc *billing.Service, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		actions:  actions,
		throttle: throttle,
		tenants:  tenants,
		billing:  billingSvc,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession opens an agent session against a case. Sessions are gated on
// the tenant's plan, throttled per (case, agent) and deduplicated by
// idempotency key. Auto-run requires an admin role.
func (s *Service) StartSession(ctx context.Context, caseID id.CaseID, agentName, idempotencyKey string, sessionContext map[string]string, autoRun bool) (*models.Session, error) {
	if agentName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "agent name is required")
	}
	if autoRun && !requestcontext.Role(ctx).IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "auto-run requires an admin role")
	}
	tenantID := requestcontext.TenantID(ctx)

	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "tenant not found")
	}
	limits := s.billing.Limits(tenant.Plan)
	if !limits.AgentEnabled {
		return nil, dErrors.New(dErrors.CodeForbidden, "agent_disabled")
	}

	if idempotencyKey != "" {
		existing, err := s.sessions.FindByIdempotencyKey(ctx, tenantID, idempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup session")
		}
	}

	now := requestcontext.Now(ctx)
	if limits.MinDaysBetweenAgentRuns > 0 {
		last, ran, err := s.throttle.LastRun(ctx, tenantID, caseID, agentName)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read throttle")
		}
		window := time.Duration(limits.MinDaysBetweenAgentRuns) * 24 * time.Hour
		if ran && now.Sub(last) < window {
			return nil, dErrors.Newf(dErrors.CodePlanLimit,
				"agent %s ran on this case within the last %d days", agentName, limits.MinDaysBetweenAgentRuns)
		}
	}

	session := &models.Session{
		ID:             id.NewSessionID(),
		TenantID:       tenantID,
		CaseID:         caseID,
		AgentName:      agentName,
		Status:         models.SessionActive,
		StartedBy:      requestcontext.UserID(ctx),
		IdempotencyKey: idempotencyKey,
		Context:        sessionContext,
		StartedAt:      now,
	}
	err = s.sessions.Create(ctx, session)
	if errors.Is(err, sentinel.ErrConflict) && idempotencyKey != "" {
		// Lost the race; the winner's session is the canonical one.
		return s.sessions.FindByIdempotencyKey(ctx, tenantID, idempotencyKey)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create session")
	}

	if err := s.throttle.MarkRun(ctx, tenantID, caseID, agentName, now); err != nil {
		s.logger.ErrorContext(ctx, "mark agent run failed", slog.String("error", err.Error()))
	}
	s.emitAudit(ctx, tenantID, caseID, "agent_session_started", agentName)
	return session, nil
}

// RecordAction records a suggestion within an active session. Repeated
// identical recordings return the original action.
func (s *Service) RecordAction(ctx context.Context, sessionID id.SessionID, actionType string, payload map[string]any, status models.ActionStatus, autoMode bool) (*models.Action, error) {
	if actionType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "action type is required")
	}
	if status == models.ActionExecuted && protectedActionTypes[actionType] {
		return nil, dErrors.Newf(dErrors.CodeForbidden,
			"action type %s cannot be recorded as executed", actionType)
	}
	tenantID := requestcontext.TenantID(ctx)

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"session is %s, not active", session.Status)
	}

	key, err := actionKey(sessionID, actionType, payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "encode payload")
	}
	if existing, err := s.actions.FindByIdempotencyKey(ctx, tenantID, key); err == nil {
		return existing, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup action")
	}

	action := &models.Action{
		ID:             id.NewActionID(),
		TenantID:       tenantID,
		SessionID:      sessionID,
		ActionType:     actionType,
		Status:         status,
		AutoMode:       autoMode,
		IdempotencyKey: key,
		Payload:        payload,
		CreatedAt:      requestcontext.Now(ctx),
	}
	err = s.actions.Append(ctx, action)
	if errors.Is(err, sentinel.ErrConflict) {
		return s.actions.FindByIdempotencyKey(ctx, tenantID, key)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "record action")
	}

	s.emitAudit(ctx, tenantID, session.CaseID, "agent_action_recorded", actionType)
	return action, nil
}

// EndSession closes a session with a final status.
func (s *Service) EndSession(ctx context.Context, sessionID id.SessionID, status models.SessionStatus) (*models.Session, error) {
	if status != models.SessionCompleted && status != models.SessionError {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid final status %s", status)
	}
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"session is already %s", session.Status)
	}
	now := requestcontext.Now(ctx)
	session.Status = status
	session.EndedAt = &now
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update session")
	}
	return session, nil
}

// GetSession loads a session within the caller's tenant.
func (s *Service) GetSession(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	session, err := s.sessions.Get(ctx, requestcontext.TenantID(ctx), sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "session not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load session")
	}
	return session, nil
}

// ListSessions lists a case's sessions in start order.
func (s *Service) ListSessions(ctx context.Context, caseID id.CaseID) ([]*models.Session, error) {
	return s.sessions.ListByCase(ctx, requestcontext.TenantID(ctx), caseID)
}

// ListActions lists a session's recorded actions.
func (s *Service) ListActions(ctx context.Context, sessionID id.SessionID) ([]*models.Action, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.actions.ListBySession(ctx, requestcontext.TenantID(ctx), sessionID)
}

// actionKey derives the idempotency key for an action from its session,
// type and payload.
func actionKey(sessionID id.SessionID, actionType string, payload map[string]any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s", sessionID, actionType, raw))
	return hex.EncodeToString(sum[:]), nil
}

func (s *Service) emitAudit(ctx context.Context, tenantID id.TenantID, caseID id.CaseID, action, subject string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		TenantID:  tenantID,
		CaseID:    caseID,
		ActorID:   requestcontext.UserID(ctx),
		Subject:   subject,
		Action:    action,
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", slog.String("error", err.Error()))
	}
}
