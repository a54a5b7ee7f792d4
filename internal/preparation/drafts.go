package preparation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"boreal/internal/readiness"
	dErrors "boreal/pkg/domain-errors"
	"boreal/pkg/requestcontext"
)

// DraftLabel marks every assisted draft. The label is part of the compliance
// contract: nothing generated here may present itself as final.
const DraftLabel = "DRAFT – Human Review Required"

// Draft artifact kinds. Every draft run produces all three.
const (
	ArtifactChecklist     = "checklist"
	ArtifactCaseSummary   = "case_summary"
	ArtifactInternalNotes = "internal_notes"
)

// DraftArtifact is one generated deliverable. Each carries its own draft
// label so artifacts stay marked even when detached from the envelope.
type DraftArtifact struct {
	Kind    string `json:"kind"`
	Label   string `json:"label"`
	IsDraft bool   `json:"is_draft"`
	Content string `json:"content"`
}

// AssistedDraft is a pre-filled package plus its generated artifacts. A
// licensed consultant still has to review and sign off on all of it.
type AssistedDraft struct {
	Label       string          `json:"label"`
	IsDraft     bool            `json:"is_draft"`
	Package     Package         `json:"package"`
	Artifacts   []DraftArtifact `json:"artifacts"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// DraftGate carries the flags that authorize assisted draft generation.
type DraftGate struct {
	AssistedAutomationEnabled bool
	AutomationEligible        bool
}

// BuildAssistedDraft builds a draft package when every gate allows it: the
// tenant's plan enables assisted automation, the case is flagged eligible
// and evidence verification passed. A disabled plan is a permission failure;
// an ineligible case is a precondition failure, reported separately so
// callers can tell the two apart.
func (b *Builder) BuildAssistedDraft(ctx context.Context, gate DraftGate, in BuildInput) (AssistedDraft, error) {
	if !gate.AssistedAutomationEnabled {
		return AssistedDraft{}, dErrors.New(dErrors.CodeForbidden, "assisted_automation_disabled")
	}
	if !gate.AutomationEligible {
		return AssistedDraft{}, dErrors.New(dErrors.CodeInvariantViolation, "automation_not_eligible")
	}
	if in.Evidence.VerificationResult.Verdict != readiness.VerdictPass {
		return AssistedDraft{}, dErrors.Newf(dErrors.CodeInvalidInput,
			"evidence verification verdict is %s, draft generation requires %s",
			in.Evidence.VerificationResult.Verdict, readiness.VerdictPass)
	}

	pkg, err := b.BuildPackage(ctx, in)
	if err != nil {
		return AssistedDraft{}, err
	}
	return AssistedDraft{
		Label:   DraftLabel,
		IsDraft: true,
		Package: pkg,
		Artifacts: []DraftArtifact{
			draftArtifact(ArtifactChecklist, checklistContent(in.Readiness)),
			draftArtifact(ArtifactCaseSummary, caseSummaryContent(pkg, in)),
			draftArtifact(ArtifactInternalNotes, internalNotesContent(in)),
		},
		GeneratedAt: requestcontext.Now(ctx).UTC(),
	}, nil
}

func draftArtifact(kind, content string) DraftArtifact {
	return DraftArtifact{Kind: kind, Label: DraftLabel, IsDraft: true, Content: content}
}

// checklistContent lists every document requirement and its state. The
// readiness documents are already sorted, so the output is deterministic.
func checklistContent(report readiness.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Document checklist for %s\n", report.Program)
	for _, req := range report.Documents {
		mark := " "
		if req.Satisfied {
			mark = "x"
		}
		optional := ""
		if !req.Required {
			optional = " (optional)"
		}
		fmt.Fprintf(&sb, "[%s] %s%s\n", mark, req.ID, optional)
	}
	return sb.String()
}

func caseSummaryContent(pkg Package, in BuildInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Case %s, program %s\n", pkg.CaseID, pkg.Program)
	fmt.Fprintf(&sb, "Readiness: %s, verification: %s\n",
		in.Readiness.Status, in.Evidence.VerificationResult.Verdict)
	fmt.Fprintf(&sb, "Forms: %d, blocking gaps: %d, non-blocking gaps: %d\n",
		len(pkg.Forms), len(pkg.GapsSummary.Blocking), len(pkg.GapsSummary.NonBlocking))
	return sb.String()
}

func internalNotesContent(in BuildInput) string {
	var sb strings.Builder
	sb.WriteString("Internal notes\n")
	for _, line := range in.Readiness.Explanations {
		fmt.Fprintf(&sb, "- %s\n", line)
	}
	for _, reason := range in.Evidence.VerificationResult.Reasons {
		fmt.Fprintf(&sb, "- verification: %s\n", reason)
	}
	for _, warning := range in.Evidence.VerificationResult.Warnings {
		fmt.Fprintf(&sb, "- warning: %s\n", warning)
	}
	return sb.String()
}
