// Package evaluation orchestrates a full deterministic evaluation of a
// case: eligibility, CRS scoring and the resulting document requirements.
// Results are persisted on the case so decisions replay without re-running
// the engines.
package evaluation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"boreal/internal/billing"
	"boreal/internal/casefile/store"
	"boreal/internal/configbundle"
	"boreal/internal/matrix"
	"boreal/internal/rules"
	id "boreal/pkg/domain"
	dErrors "boreal/pkg/domain-errors"
	audit "boreal/pkg/platform/audit"
	"boreal/pkg/platform/audit/publisher"
	"boreal/pkg/platform/sentinel"
	"boreal/pkg/requestcontext"
)

// DocumentsAndForms is the submission surface resolved for the selected
// program: the form codes from the active form bundle and the document
// checklist with its provenance.
type DocumentsAndForms struct {
	Forms     []string               `json:"forms"`
	Documents []matrix.ChecklistItem `json:"documents"`
}

// CaseEvaluation is the combined evaluation result. ConfigVersion pins the
// exact config the evaluation ran under, one digest per bundle file.
type CaseEvaluation struct {
	CaseID              id.CaseID               `json:"case_id"`
	CRS                 rules.CRSBreakdown      `json:"crs"`
	Eligibility         rules.EligibilityResult `json:"eligibility"`
	DocumentsAndForms   DocumentsAndForms       `json:"documents_and_forms"`
	Narratives          []string                `json:"narratives,omitempty"`
	ConfigVersion       map[string]string       `json:"config_version"`
	ConfigHash          string                  `json:"config_hash"`
	SourceBundleVersion string                  `json:"source_bundle_version"`
	EvaluatedAt         time.Time               `json:"evaluated_at"`
}

// Service runs evaluations.
type Service struct {
	cases   store.CaseStore
	tenants store.TenantStore
	billing *billing.Service
	bundle  func() *configbundle.Bundle
	explain *rules.ExplanationGenerator
	audit   *publisher.Publisher
	logger  *slog.Logger
	tracer  trace.Tracer
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

func NewService(cases store.CaseStore, tenants store.TenantStore, billingSvc *billing.Service, bundle func() *configbundle.Bundle, opts ...Option) *Service {
	s := &Service{
		cases:   cases,
		tenants: tenants,
		billing: billingSvc,
		bundle:  bundle,
		explain: rules.NewExplanationGenerator(),
		logger:  slog.Default(),
		tracer:  otel.Tracer("boreal/evaluation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateCase evaluates a case against the current config bundle. The
// bundle is captured once at the top so a reload mid-request cannot mix rule
// versions within one evaluation.
func (s *Service) EvaluateCase(ctx context.Context, caseID id.CaseID) (*CaseEvaluation, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.EvaluateCase",
		trace.WithAttributes(attribute.String("case_id", caseID.String())))
	defer span.End()

	tenantID := requestcontext.TenantID(ctx)

	c, err := s.cases.Get(ctx, tenantID, caseID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "case not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load case")
	}

	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "tenant not found")
	}
	if err := s.billing.CheckEvaluationQuota(ctx, tenantID, tenant.Plan); err != nil {
		return nil, err
	}

	bundle := s.bundle()
	engine := rules.NewEngine(bundle)
	now := requestcontext.Now(ctx)

	profileMap, err := c.Profile.Map()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "profile map")
	}

	eligibility := engine.EvaluatePrograms(c.Profile, now)
	crs := engine.Score(c.Profile, now)

	result := &CaseEvaluation{
		CaseID:              caseID,
		CRS:                 crs,
		Eligibility:         eligibility,
		Narratives:          s.narratives(eligibility),
		ConfigVersion:       bundle.FileHashes(),
		ConfigHash:          bundle.Hash(),
		SourceBundleVersion: bundle.Version(),
		EvaluatedAt:         now,
	}

	eligible := eligibility.EligiblePrograms()
	if len(eligible) == 1 {
		required, err := matrix.RequiredDocuments(bundle, eligible[0], profileMap)
		if err != nil {
			return nil, err
		}
		result.DocumentsAndForms = DocumentsAndForms{
			Forms:     programForms(bundle, eligible[0]),
			Documents: required,
		}
	}

	c.CRSBreakdown = &crs
	c.ProgramEligibility = &eligibility
	c.ConfigFingerprint = bundle.Hash()
	c.AutomationEligible = len(eligible) == 1
	c.RequiredArtifacts = nil
	for _, item := range result.DocumentsAndForms.Documents {
		c.RequiredArtifacts = append(c.RequiredArtifacts, item.ID)
	}
	c.UpdatedAt = now
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist evaluation")
	}

	if err := s.billing.RecordUsage(ctx, tenantID, billing.UsageEvaluation); err != nil {
		s.logger.ErrorContext(ctx, "record evaluation usage failed", slog.String("error", err.Error()))
	}
	s.emitAudit(ctx, tenantID, caseID, crs.Total, eligible)

	span.SetAttributes(
		attribute.Int("crs_total", crs.Total),
		attribute.StringSlice("eligible_programs", eligible),
	)
	return result, nil
}

// narratives renders prose for every blocker of every ineligible program so
// consultants can read the outcome without decoding reason codes.
func (s *Service) narratives(eligibility rules.EligibilityResult) []string {
	var records []rules.Explanation
	for _, p := range eligibility.Programs {
		if !p.Eligible {
			records = append(records, p.Explanations...)
		}
	}
	return s.explain.RenderAll(records)
}

// programForms returns the form codes of the active form bundle for the
// program, or nil when no active bundle is configured.
func programForms(bundle *configbundle.Bundle, program string) []string {
	for _, fb := range bundle.FormBundles.Bundles {
		if fb.Active && fb.Program == program {
			return fb.Forms
		}
	}
	return nil
}

func (s *Service) emitAudit(ctx context.Context, tenantID id.TenantID, caseID id.CaseID, total int, eligible []string) {
	if s.audit == nil {
		return
	}
	decision := "ineligible"
	if len(eligible) > 0 {
		decision = "eligible"
	}
	if err := s.audit.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		TenantID:  tenantID,
		CaseID:    caseID,
		ActorID:   requestcontext.UserID(ctx),
		Subject:   caseID.String(),
		Action:    "evaluation_completed",
		Decision:  decision,
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			slog.Int("crs_total", total), slog.String("error", err.Error()))
	}
}
