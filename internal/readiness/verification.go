package readiness

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"boreal/internal/configbundle"
)

// VerifierVersion is stamped into evidence bundles.
const VerifierVersion = "1.0.0"

// EvidenceBundleVersion is the wire version of the bundle shape itself.
const EvidenceBundleVersion = "v1"

// Evidence verdicts.
const (
	VerdictPass    = "PASS"
	VerdictFail    = "FAIL"
	VerdictUnknown = "UNKNOWN"
)

// VerificationResult is the verifier's judgement on one readiness report.
type VerificationResult struct {
	Verdict  string   `json:"verdict"`
	Reasons  []string `json:"reasons"`
	Warnings []string `json:"warnings"`
}

// EvidenceBundle is what an auditor receives: the readiness decision, the
// verifier's judgement on it, every citation it rests on and the exact config
// surface that was consulted.
type EvidenceBundle struct {
	BundleVersion             string             `json:"bundle_version"`
	CaseID                    string             `json:"case_id"`
	TenantID                  string             `json:"tenant_id"`
	Program                   string             `json:"program_code"`
	ReadinessResult           Report             `json:"readiness_result"`
	VerificationResult        VerificationResult `json:"verification_result"`
	EvidenceIndex             []string           `json:"evidence_index"`
	ConfigHashes              []string           `json:"config_hashes"`
	ConsultedConfigs          []string           `json:"consulted_configs"`
	SourceBundleVersion       string             `json:"source_bundle_version"`
	EngineVersion             string             `json:"engine_version"`
	VerificationEngineVersion string             `json:"verification_engine_version"`
	EvaluationTimestamp       time.Time          `json:"evaluation_timestamp"`
}

// Verifier checks that a readiness report is fully evidenced.
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// BuildEvidenceBundle audits a report. The requirement scan and the evidence
// index build are independent, so they run concurrently.
func (v *Verifier) BuildEvidenceBundle(ctx context.Context, report Report) (EvidenceBundle, error) {
	bundle := EvidenceBundle{
		BundleVersion:             EvidenceBundleVersion,
		CaseID:                    report.CaseID,
		TenantID:                  report.TenantID,
		Program:                   report.Program,
		ReadinessResult:           report,
		ConsultedConfigs:          report.ConsultedConfigs,
		SourceBundleVersion:       report.SourceBundleVersion,
		EngineVersion:             report.EngineVersion,
		VerificationEngineVersion: VerifierVersion,
		EvaluationTimestamp:       report.EvaluatedAt,
	}

	var reasons, warnings, index []string
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		reasons, warnings = scanReport(report)
		return nil
	})
	g.Go(func() error {
		index = evidenceIndex(report)
		return nil
	})
	if err := g.Wait(); err != nil {
		return EvidenceBundle{}, err
	}

	bundle.VerificationResult = VerificationResult{Reasons: reasons, Warnings: warnings}
	bundle.EvidenceIndex = index

	indexHash := sha256.Sum256([]byte(strings.Join(index, "\n")))
	bundle.ConfigHashes = []string{report.ConfigHash, hex.EncodeToString(indexHash[:])}
	sort.Strings(bundle.ConfigHashes)

	switch {
	case report.Status == StatusUnknown:
		bundle.VerificationResult.Verdict = VerdictUnknown
	case len(reasons) > 0:
		bundle.VerificationResult.Verdict = VerdictFail
	default:
		bundle.VerificationResult.Verdict = VerdictPass
	}
	return bundle, nil
}

// scanReport collects the verification reasons and warnings.
func scanReport(report Report) (reasons, warnings []string) {
	if report.Status == StatusUnknown {
		reasons = append(reasons, "status_unknown")
	}

	for _, blocker := range report.Blockers {
		if len(blocker.ConfigRefs) == 0 || hasEmpty(blocker.ConfigRefs) {
			reasons = append(reasons, fmt.Sprintf("blocker_missing_config_ref:%s", blocker.DocumentID))
		}
		if len(blocker.SourceRefs) == 0 || hasUnsourced(blocker.SourceRefs) {
			reasons = append(reasons, fmt.Sprintf("blocker_missing_source_ref:%s", blocker.DocumentID))
		}
	}

	for _, req := range report.Documents {
		if req.SourceRef != configbundle.UnsourcedRef || !req.Required {
			continue
		}
		if req.Satisfied {
			warnings = append(warnings, fmt.Sprintf("unsourced_uploaded:%s", req.ID))
		} else {
			reasons = append(reasons, fmt.Sprintf("unsourced_requirement:%s", req.ID))
		}
	}

	if !sort.SliceIsSorted(report.Blockers, func(i, j int) bool {
		a, b := report.Blockers[i], report.Blockers[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.DocumentID < b.DocumentID
	}) {
		warnings = append(warnings, "blockers_not_sorted")
	}
	if !sort.SliceIsSorted(report.Documents, func(i, j int) bool {
		a, b := report.Documents[i], report.Documents[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Category < b.Category
	}) {
		warnings = append(warnings, "documents_not_sorted")
	}

	sort.Strings(reasons)
	sort.Strings(warnings)
	return reasons, warnings
}

func hasEmpty(refs []string) bool {
	for _, ref := range refs {
		if ref == "" {
			return true
		}
	}
	return false
}

func hasUnsourced(refs []string) bool {
	for _, ref := range refs {
		if ref == "" || ref == configbundle.UnsourcedRef {
			return true
		}
	}
	return false
}

// evidenceIndex is the sorted, deduplicated set of every citation the report
// rests on.
func evidenceIndex(report Report) []string {
	seen := map[string]struct{}{}
	var index []string
	add := func(ref string) {
		if ref == "" || ref == configbundle.UnsourcedRef {
			return
		}
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		index = append(index, ref)
	}
	for _, req := range report.Documents {
		add(req.ConfigRef)
		add(req.SourceRef)
	}
	sort.Strings(index)
	return index
}
