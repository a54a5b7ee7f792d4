// Package billing enforces plan quotas and meters usage. Limits come from
// plans.yaml via the config bundle; a zero limit means unlimited.
package billing

import (
	"context"
	"log/slog"

	"boreal/internal/configbundle"
	id "boreal/pkg/domain"
	dErrors "boreal/pkg/domain-errors"
	audit "boreal/pkg/platform/audit"
	"boreal/pkg/platform/audit/publisher"
	"boreal/pkg/requestcontext"
)

// Metered usage events.
const (
	UsageCaseCreated = "case_created"
	UsageEvaluation  = "evaluation"
	UsageDraft       = "assisted_draft"
)

// UsageStore persists monthly usage counters.
type UsageStore interface {
	Increment(ctx context.Context, tenantID id.TenantID, event, month string) error
	Count(ctx context.Context, tenantID id.TenantID, event, month string) (int64, error)
}

// Service checks quotas and records usage.
type Service struct {
	usage  UsageStore
	bundle func() *configbundle.Bundle
	audit  *publisher.Publisher
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithAudit wires the audit publisher for quota and usage events.
func WithAudit(p *publisher.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService builds the billing service. bundle is called per check so a
// config reload takes effect without restarting.
func NewService(usage UsageStore, bundle func() *configbundle.Bundle, opts ...Option) *Service {
	s := &Service{usage: usage, bundle: bundle, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the plan limits for a plan name.
func (s *Service) Limits(plan string) configbundle.PlanLimits {
	return s.bundle().PlanLimitsFor(plan)
}

// CheckCaseQuota rejects case creation once the plan's active-case cap is
// reached.
func (s *Service) CheckCaseQuota(ctx context.Context, tenantID id.TenantID, plan string, activeCases int) error {
	limits := s.Limits(plan)
	if limits.MaxCases > 0 && activeCases >= limits.MaxCases {
		s.emitLimit(ctx, tenantID, UsageCaseCreated)
		return dErrors.Newf(dErrors.CodePlanLimit,
			"plan %s allows %d active cases", plan, limits.MaxCases)
	}
	return nil
}

// CheckEvaluationQuota rejects an evaluation once this month's counter hits
// the plan cap.
func (s *Service) CheckEvaluationQuota(ctx context.Context, tenantID id.TenantID, plan string) error {
	limits := s.Limits(plan)
	if limits.MaxEvaluationsPerMonth <= 0 {
		return nil
	}
	month := s.month(ctx)
	used, err := s.usage.Count(ctx, tenantID, UsageEvaluation, month)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "read usage counter")
	}
	if used >= int64(limits.MaxEvaluationsPerMonth) {
		s.emitLimit(ctx, tenantID, UsageEvaluation)
		return dErrors.Newf(dErrors.CodePlanLimit,
			"plan %s allows %d evaluations per month", plan, limits.MaxEvaluationsPerMonth)
	}
	return nil
}

// RecordUsage increments this month's counter for an event.
func (s *Service) RecordUsage(ctx context.Context, tenantID id.TenantID, event string) error {
	if err := s.usage.Increment(ctx, tenantID, event, s.month(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "increment usage counter")
	}
	if s.audit != nil {
		_ = s.audit.Emit(ctx, audit.Event{
			Timestamp: requestcontext.Now(ctx),
			TenantID:  tenantID,
			Action:    "usage_recorded",
			Subject:   event,
			RequestID: requestcontext.RequestID(ctx),
		})
	}
	return nil
}

// UsageThisMonth reads this month's counter for an event.
func (s *Service) UsageThisMonth(ctx context.Context, tenantID id.TenantID, event string) (int64, error) {
	return s.usage.Count(ctx, tenantID, event, s.month(ctx))
}

func (s *Service) month(ctx context.Context) string {
	return requestcontext.Now(ctx).UTC().Format("2006-01")
}

func (s *Service) emitLimit(ctx context.Context, tenantID id.TenantID, event string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		TenantID:  tenantID,
		Action:    "plan_limit_exceeded",
		Subject:   event,
		Decision:  "deny",
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", slog.String("error", err.Error()))
	}
}
