package readiness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"boreal/internal/configbundle"
	"boreal/internal/profile"
	"boreal/pkg/requestcontext"
)

type VerificationSuite struct {
	suite.Suite

	engine   *Engine
	verifier *Verifier
	ctx      context.Context
}

func TestVerificationSuite(t *testing.T) {
	suite.Run(t, new(VerificationSuite))
}

func (s *VerificationSuite) SetupSuite() {
	bundle, err := configbundle.Load("../../config/domain")
	s.Require().NoError(err)
	s.engine = NewEngine(bundle)
	s.verifier = NewVerifier()
	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
}

func (s *VerificationSuite) readyReport() Report {
	m, err := profile.Profile{Personal: profile.Personal{MaritalStatus: "single"}}.Map()
	s.Require().NoError(err)
	report, err := s.engine.Evaluate(s.ctx, Input{
		CaseID:     "case-1",
		TenantID:   "tenant-1",
		Program:    "FSW",
		ProfileMap: m,
		Documents:  fswUploads(),
	})
	s.Require().NoError(err)
	return report
}

func (s *VerificationSuite) TestPassVerdict() {
	report := s.readyReport()
	bundle, err := s.verifier.BuildEvidenceBundle(s.ctx, report)
	s.Require().NoError(err)

	s.Equal(VerdictPass, bundle.VerificationResult.Verdict)
	s.Empty(bundle.VerificationResult.Reasons)

	// digital_photo was satisfied by category but carries no citation.
	s.Equal([]string{"unsourced_uploaded:digital_photo"}, bundle.VerificationResult.Warnings)
}

// The bundle is self-describing: everything an auditor needs travels inside
// it, including the readiness result it judges.
func (s *VerificationSuite) TestBundleCarriesProvenance() {
	report := s.readyReport()
	bundle, err := s.verifier.BuildEvidenceBundle(s.ctx, report)
	s.Require().NoError(err)

	s.Equal(EvidenceBundleVersion, bundle.BundleVersion)
	s.Equal("case-1", bundle.CaseID)
	s.Equal("tenant-1", bundle.TenantID)
	s.Equal("FSW", bundle.Program)
	s.Equal(report, bundle.ReadinessResult)
	s.Equal(report.ConsultedConfigs, bundle.ConsultedConfigs)
	s.Equal("2026.1", bundle.SourceBundleVersion)
	s.Equal(EngineVersion, bundle.EngineVersion)
	s.Equal(VerifierVersion, bundle.VerificationEngineVersion)
	s.Equal(report.EvaluatedAt, bundle.EvaluationTimestamp)
}

func (s *VerificationSuite) TestEvidenceIndexCollectsCitations() {
	report := s.readyReport()
	bundle, err := s.verifier.BuildEvidenceBundle(s.ctx, report)
	s.Require().NoError(err)

	s.Contains(bundle.EvidenceIndex, "config/domain/documents.yaml#passport")
	s.Contains(bundle.EvidenceIndex, "IRCC settlement funds requirement")
	s.NotContains(bundle.EvidenceIndex, configbundle.UnsourcedRef)
	for i := 1; i < len(bundle.EvidenceIndex); i++ {
		s.Less(bundle.EvidenceIndex[i-1], bundle.EvidenceIndex[i])
	}

	s.Len(bundle.ConfigHashes, 2)
	s.Contains(bundle.ConfigHashes, report.ConfigHash)
}

func (s *VerificationSuite) TestUnknownStatus() {
	bundle, err := s.verifier.BuildEvidenceBundle(s.ctx, Report{
		EngineVersion: EngineVersion,
		Program:       ProgramUnknown,
		Status:        StatusUnknown,
	})
	s.Require().NoError(err)

	s.Equal(VerdictUnknown, bundle.VerificationResult.Verdict)
	s.Equal([]string{"status_unknown"}, bundle.VerificationResult.Reasons)
}

func (s *VerificationSuite) TestUnevidencedBlockerFails() {
	report := s.readyReport()
	report.Status = StatusNotReady
	report.Blockers = append(report.Blockers, Blocker{
		Code:       BlockerMissingRequiredDocument,
		DocumentID: "mystery_document",
	})

	bundle, err := s.verifier.BuildEvidenceBundle(s.ctx, report)
	s.Require().NoError(err)

	s.Equal(VerdictFail, bundle.VerificationResult.Verdict)
	s.Contains(bundle.VerificationResult.Reasons, "blocker_missing_config_ref:mystery_document")
	s.Contains(bundle.VerificationResult.Reasons, "blocker_missing_source_ref:mystery_document")
}

func (s *VerificationSuite) TestUnsourcedUnsatisfiedIsReason() {
	m, err := profile.Profile{Personal: profile.Personal{MaritalStatus: "single"}}.Map()
	s.Require().NoError(err)
	docs := fswUploads()
	for i := range docs {
		docs[i].Category = ""
	}
	report, err := s.engine.Evaluate(s.ctx, Input{Program: "FSW", ProfileMap: m, Documents: docs})
	s.Require().NoError(err)
	s.Equal(StatusReady, report.Status)

	bundle, err := s.verifier.BuildEvidenceBundle(s.ctx, report)
	s.Require().NoError(err)

	// Ready for submission, but the evidence trail is incomplete.
	s.Equal(VerdictFail, bundle.VerificationResult.Verdict)
	s.Equal([]string{"unsourced_requirement:digital_photo"}, bundle.VerificationResult.Reasons)
}

func (s *VerificationSuite) TestUnsortedReportWarns() {
	report := s.readyReport()
	report.Status = StatusNotReady
	report.Blockers = []Blocker{
		{Code: BlockerMissingRequiredDocument, DocumentID: "proof_of_funds_statement",
			ConfigRefs: []string{"config/domain/documents.yaml#proof_of_funds_statement"},
			SourceRefs: []string{"IRCC settlement funds requirement"}},
		{Code: BlockerMissingRequiredDocument, DocumentID: "passport",
			ConfigRefs: []string{"config/domain/documents.yaml#passport"},
			SourceRefs: []string{"IRCC Express Entry completeness check, identity documents"}},
	}

	bundle, err := s.verifier.BuildEvidenceBundle(s.ctx, report)
	s.Require().NoError(err)
	s.Contains(bundle.VerificationResult.Warnings, "blockers_not_sorted")
}

func (s *VerificationSuite) TestDeterministic() {
	report := s.readyReport()
	first, err := s.verifier.BuildEvidenceBundle(s.ctx, report)
	s.Require().NoError(err)
	for i := 0; i < 5; i++ {
		again, err := s.verifier.BuildEvidenceBundle(s.ctx, report)
		s.Require().NoError(err)
		s.Equal(first, again)
	}
}
