// Package readiness decides whether a case is ready for submission and
// builds the verifiable evidence trail behind that decision. Evaluation is
// deterministic: sorted outputs, config-derived references, no clock reads
// outside the request context.
package readiness

import (
	"context"
	"fmt"
	"sort"
	"time"

	"boreal/internal/configbundle"
	"boreal/internal/matrix"
	"boreal/pkg/requestcontext"
)

// EngineVersion is stamped into every report so stored decisions can be
// traced to the logic that produced them.
const EngineVersion = "1.0.0"

// Report statuses.
const (
	StatusReady    = "READY"
	StatusNotReady = "NOT_READY"
	StatusUnknown  = "UNKNOWN"
)

// ProgramUnknown marks a report whose target program could not be resolved.
const ProgramUnknown = "UNKNOWN"

// BlockerMissingRequiredDocument is the only blocker code the engine emits
// today. Codes are stable strings; consumers switch on them.
const BlockerMissingRequiredDocument = "missing_required_document"

// consultedConfigs lists the bundle files a readiness decision reads.
var consultedConfigs = []string{
	configbundle.FileDocuments,
	configbundle.FileFields,
	configbundle.FilePrograms,
}

// UploadedDocument describes one document on file for a case.
type UploadedDocument struct {
	DocumentType string `json:"document_type"`
	Category     string `json:"category"`
	Filename     string `json:"filename"`
}

// RequirementStatus is one checklist requirement matched against the
// uploads.
type RequirementStatus struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Category  string   `json:"category"`
	Required  bool     `json:"required"`
	Satisfied bool     `json:"satisfied"`
	Reasons   []string `json:"reasons"`
	ConfigRef string   `json:"config_ref"`
	SourceRef string   `json:"source_ref"`
}

// Blocker is one structured obstacle to submission. It cites the config
// entry and the authoritative source behind the requirement it came from.
type Blocker struct {
	Code       string   `json:"code"`
	DocumentID string   `json:"document_id"`
	ConfigRefs []string `json:"config_refs"`
	SourceRefs []string `json:"source_refs"`
}

// Report is the submission readiness decision for a case.
type Report struct {
	CaseID              string              `json:"case_id"`
	TenantID            string              `json:"tenant_id"`
	Program             string              `json:"program_code"`
	Status              string              `json:"status"`
	Ready               bool                `json:"ready"`
	MissingDocuments    []string            `json:"missing_documents"`
	Documents           []RequirementStatus `json:"documents"`
	Blockers            []Blocker           `json:"blockers"`
	Explanations        []string            `json:"explanations"`
	EngineVersion       string              `json:"engine_version"`
	ConfigHash          string              `json:"config_hash"`
	ConsultedConfigs    []string            `json:"consulted_configs"`
	SourceBundleVersion string              `json:"source_bundle_version"`
	EvaluatedAt         time.Time           `json:"evaluation_timestamp"`
}

// Input carries everything Evaluate needs. Program may be empty, in which
// case the program is inferred from the eligibility results.
type Input struct {
	CaseID           string
	TenantID         string
	Program          string
	EligiblePrograms []string
	ProfileMap       map[string]any
	Documents        []UploadedDocument
}

// Engine evaluates readiness against one loaded config bundle.
type Engine struct {
	bundle *configbundle.Bundle
}

func NewEngine(bundle *configbundle.Bundle) *Engine {
	return &Engine{bundle: bundle}
}

// Evaluate resolves the target program, matches uploads against the
// document checklist and reports blockers. An unresolvable program yields an
// UNKNOWN report rather than an error: the caller still gets a stored,
// auditable decision.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Report, error) {
	report := Report{
		CaseID:              in.CaseID,
		TenantID:            in.TenantID,
		EngineVersion:       EngineVersion,
		ConfigHash:          e.bundle.Hash(),
		ConsultedConfigs:    consultedConfigs,
		SourceBundleVersion: e.bundle.Version(),
		EvaluatedAt:         requestcontext.Now(ctx),
	}

	program, resolved := e.resolveProgram(in)
	report.Program = program
	if !resolved {
		report.Status = StatusUnknown
		report.Explanations = append(report.Explanations, programExplanation(in.EligiblePrograms))
		return report, nil
	}

	items, err := matrix.Checklist(e.bundle, program, in.ProfileMap)
	if err != nil {
		return Report{}, err
	}

	for _, item := range items {
		status := RequirementStatus{
			ID:        item.ID,
			Label:     item.Label,
			Category:  item.Category,
			Required:  item.Required,
			Satisfied: satisfiedBy(item, in.Documents),
			Reasons:   item.Reasons,
			ConfigRef: item.ConfigRef,
			SourceRef: item.SourceRef,
		}
		report.Documents = append(report.Documents, status)

		if !status.Required || status.Satisfied {
			continue
		}
		report.MissingDocuments = append(report.MissingDocuments, item.ID)
		if status.SourceRef == configbundle.UnsourcedRef {
			// Unsourced requirements surface but never block.
			report.Explanations = append(report.Explanations, fmt.Sprintf("UNSOURCED requirement: %s", item.ID))
			continue
		}
		report.Blockers = append(report.Blockers, Blocker{
			Code:       BlockerMissingRequiredDocument,
			DocumentID: item.ID,
			ConfigRefs: []string{item.ConfigRef},
			SourceRefs: []string{item.SourceRef},
		})
		report.Explanations = append(report.Explanations, fmt.Sprintf("missing required document: %s", item.ID))
	}

	sort.Slice(report.Documents, func(i, j int) bool {
		a, b := report.Documents[i], report.Documents[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Category < b.Category
	})
	sort.Slice(report.Blockers, func(i, j int) bool {
		a, b := report.Blockers[i], report.Blockers[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.DocumentID < b.DocumentID
	})
	sort.Strings(report.MissingDocuments)
	sort.Strings(report.Explanations)

	report.Ready = len(report.Blockers) == 0
	if report.Ready {
		report.Status = StatusReady
	} else {
		report.Status = StatusNotReady
	}
	return report, nil
}

// resolveProgram prefers an explicit program, then a unique eligibility
// result. Zero or several eligible programs is ambiguous.
func (e *Engine) resolveProgram(in Input) (string, bool) {
	if in.Program != "" {
		return in.Program, true
	}
	if len(in.EligiblePrograms) == 1 {
		return in.EligiblePrograms[0], true
	}
	return ProgramUnknown, false
}

func programExplanation(eligible []string) string {
	if len(eligible) == 0 {
		return "program could not be resolved: no eligible programs"
	}
	return fmt.Sprintf("program could not be resolved: ambiguous eligibility %v", eligible)
}

// satisfiedBy matches an upload either by exact document type or by the
// requirement's category.
func satisfiedBy(item matrix.ChecklistItem, docs []UploadedDocument) bool {
	for _, doc := range docs {
		if doc.DocumentType == item.ID {
			return true
		}
		if doc.Category != "" && doc.Category == item.Category {
			return true
		}
	}
	return false
}
