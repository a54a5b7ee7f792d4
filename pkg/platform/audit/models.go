package audit

import (
	"context"
	"time"

	id "boreal/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	// Examples: case lifecycle transitions, submission packages, assisted drafts.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	// Examples: plan limit rejections, soft deletions, forbidden transitions.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled or aggregated with shorter retention.
	// Examples: evaluations, readiness runs, config reloads.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	TenantID  id.TenantID
	CaseID    id.CaseID
	ActorID   id.UserID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
}

// Store persists audit events. The postgres implementation writes to an
// outbox table; the memory implementation backs unit tests.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]Event, error)
	ListByCase(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) ([]Event, error)
}

type AuditEvent string

const (
	// Case lifecycle events
	EventCaseCreated       AuditEvent = "case_created"
	EventCaseSubmitted     AuditEvent = "case_submitted"
	EventCaseReviewStarted AuditEvent = "case_review_started"
	EventCaseCompleted     AuditEvent = "case_completed"
	EventCaseArchived      AuditEvent = "case_archived"
	EventCaseDeleted       AuditEvent = "case_deleted"
	EventSnapshotRecorded  AuditEvent = "snapshot_recorded"

	// Evaluation events
	EventEvaluationCompleted AuditEvent = "evaluation_completed"
	EventReadinessEvaluated  AuditEvent = "readiness_evaluated"
	EventEvidenceVerified    AuditEvent = "evidence_verified"
	EventPackageBuilt        AuditEvent = "package_built"
	EventDraftGenerated      AuditEvent = "draft_generated"

	// Agent events
	EventAgentSessionStarted AuditEvent = "agent_session_started"
	EventAgentActionRecorded AuditEvent = "agent_action_recorded"

	// Billing events
	EventPlanLimitExceeded AuditEvent = "plan_limit_exceeded"
	EventUsageRecorded     AuditEvent = "usage_recorded"

	// Platform events
	EventConfigReloaded AuditEvent = "config_reloaded"
)

// eventCategories maps each audit event to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring, alerting.
// Operations: debugging, operational visibility, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - require tamper-proof storage
	EventCaseCreated:       CategoryCompliance,
	EventCaseSubmitted:     CategoryCompliance,
	EventCaseReviewStarted: CategoryCompliance,
	EventCaseCompleted:     CategoryCompliance,
	EventCaseArchived:      CategoryCompliance,
	EventSnapshotRecorded:  CategoryCompliance,
	EventEvidenceVerified:  CategoryCompliance,
	EventPackageBuilt:      CategoryCompliance,
	EventDraftGenerated:    CategoryCompliance,

	// Security events - feed into alerting
	EventCaseDeleted:       CategorySecurity,
	EventPlanLimitExceeded: CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventEvaluationCompleted: CategoryOperations,
	EventReadinessEvaluated:  CategoryOperations,
	EventAgentSessionStarted: CategoryOperations,
	EventAgentActionRecorded: CategoryOperations,
	EventUsageRecorded:       CategoryOperations,
	EventConfigReloaded:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
