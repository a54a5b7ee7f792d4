// Package models holds the case aggregate and its persistence-adjacent
// types. Everything here is tenant-scoped; no type crosses a tenant
// boundary.
package models

import (
	"time"

	"boreal/internal/profile"
	"boreal/internal/rules"
	id "boreal/pkg/domain"
	dErrors "boreal/pkg/domain-errors"
)

// CaseStatus is the lifecycle state of a case.
type CaseStatus string

const (
	StatusDraft     CaseStatus = "draft"
	StatusSubmitted CaseStatus = "submitted"
	StatusInReview  CaseStatus = "in_review"
	StatusComplete  CaseStatus = "complete"
	StatusArchived  CaseStatus = "archived"
)

// ParseCaseStatus validates a status string.
func ParseCaseStatus(s string) (CaseStatus, error) {
	switch CaseStatus(s) {
	case StatusDraft, StatusSubmitted, StatusInReview, StatusComplete, StatusArchived:
		return CaseStatus(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid case status %q", s)
}

// Tenant is one consulting firm. Plan feature gates come from the config
// bundle keyed by Plan.
type Tenant struct {
	ID        id.TenantID       `json:"id"`
	Name      string            `json:"name"`
	Plan      string            `json:"plan"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Case is the aggregate root. Evaluation results are stored alongside the
// profile so a stored decision can be replayed and audited without
// re-running the engines.
type Case struct {
	ID                 id.CaseID                `json:"id"`
	TenantID           id.TenantID              `json:"tenant_id"`
	Status             CaseStatus               `json:"status"`
	Source             string                   `json:"source,omitempty"`
	CreatedBy          id.UserID                `json:"created_by"`
	Profile            profile.Profile          `json:"profile"`
	ProgramEligibility *rules.EligibilityResult `json:"program_eligibility,omitempty"`
	CRSBreakdown       *rules.CRSBreakdown      `json:"crs_breakdown,omitempty"`
	RequiredArtifacts  []string                 `json:"required_artifacts,omitempty"`
	ConfigFingerprint  string                   `json:"config_fingerprint,omitempty"`
	AutomationEligible bool                     `json:"automation_eligible"`
	Deleted            bool                     `json:"-"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// Snapshot is an immutable, versioned copy of a case taken at each
// lifecycle transition. Versions are dense and start at 1.
type Snapshot struct {
	ID        id.SnapshotID `json:"id"`
	TenantID  id.TenantID   `json:"tenant_id"`
	CaseID    id.CaseID     `json:"case_id"`
	Version   int           `json:"version"`
	Payload   []byte        `json:"payload"`
	CreatedAt time.Time     `json:"created_at"`
}

// Event types recorded in the per-case event log. Audit trail actions use
// their own lowercase vocabulary; these name the case history entries.
const (
	EventCaseCreated       = "CASE_CREATED"
	EventCaseSubmitted     = "CASE_SUBMITTED"
	EventCaseReviewStarted = "CASE_REVIEW_STARTED"
	EventCaseCompleted     = "CASE_COMPLETED"
	EventCaseArchived      = "CASE_ARCHIVED"
)

// CaseEvent is one entry of the per-case event log.
type CaseEvent struct {
	ID        id.EventID        `json:"id"`
	TenantID  id.TenantID       `json:"tenant_id"`
	CaseID    id.CaseID         `json:"case_id"`
	EventType string            `json:"event_type"`
	ActorID   id.UserID         `json:"actor_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Document is one uploaded document attached to a case.
type Document struct {
	ID           id.DocumentID `json:"id"`
	TenantID     id.TenantID   `json:"tenant_id"`
	CaseID       id.CaseID     `json:"case_id"`
	DocumentType string        `json:"document_type"`
	Category     string        `json:"category,omitempty"`
	Filename     string        `json:"filename"`
	Status       string        `json:"status,omitempty"`
	UploadedAt   time.Time     `json:"uploaded_at"`
}
