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

type ReadinessSuite struct {
	suite.Suite

	engine *Engine
	ctx    context.Context
	now    time.Time
}

func TestReadinessSuite(t *testing.T) {
	suite.Run(t, new(ReadinessSuite))
}

func (s *ReadinessSuite) SetupSuite() {
	bundle, err := configbundle.Load("../../config/domain")
	s.Require().NoError(err)
	s.engine = NewEngine(bundle)
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ReadinessSuite) profileMap(p profile.Profile) map[string]any {
	m, err := p.Map()
	s.Require().NoError(err)
	return m
}

// fswUploads covers every sourced FSW requirement for a single applicant.
func fswUploads() []UploadedDocument {
	return []UploadedDocument{
		{DocumentType: "passport", Category: "identity", Filename: "passport.pdf"},
		{DocumentType: "language_test_report", Category: "language", Filename: "ielts.pdf"},
		{DocumentType: "education_credential_assessment", Category: "education", Filename: "eca.pdf"},
		{DocumentType: "proof_of_funds_statement", Category: "funds", Filename: "bank.pdf"},
		{DocumentType: "police_certificate", Category: "background", Filename: "pcc.pdf"},
	}
}

func blockedDocuments(blockers []Blocker) []string {
	var ids []string
	for _, b := range blockers {
		ids = append(ids, b.DocumentID)
	}
	return ids
}

func (s *ReadinessSuite) TestReadyReport() {
	report, err := s.engine.Evaluate(s.ctx, Input{
		CaseID:     "case-1",
		TenantID:   "tenant-1",
		Program:    "FSW",
		ProfileMap: s.profileMap(profile.Profile{Personal: profile.Personal{MaritalStatus: "single"}}),
		Documents:  fswUploads(),
	})
	s.Require().NoError(err)

	s.Equal(EngineVersion, report.EngineVersion)
	s.Equal("case-1", report.CaseID)
	s.Equal("tenant-1", report.TenantID)
	s.Equal("FSW", report.Program)
	s.Equal(StatusReady, report.Status)
	s.True(report.Ready)
	s.Empty(report.Blockers)
	s.Empty(report.MissingDocuments)
	s.Equal(s.now, report.EvaluatedAt)
	s.NotEmpty(report.ConfigHash)
	s.Equal("2026.1", report.SourceBundleVersion)
	s.Contains(report.ConsultedConfigs, "documents.yaml")

	// digital_photo is satisfied by the passport upload's identity category,
	// so no unsourced explanation either.
	s.Empty(report.Explanations)
}

func (s *ReadinessSuite) TestMissingDocumentsBlock() {
	report, err := s.engine.Evaluate(s.ctx, Input{
		Program:    "FSW",
		ProfileMap: s.profileMap(profile.Profile{Personal: profile.Personal{MaritalStatus: "single"}}),
		Documents: []UploadedDocument{
			{DocumentType: "passport", Category: "identity", Filename: "passport.pdf"},
		},
	})
	s.Require().NoError(err)

	s.Equal(StatusNotReady, report.Status)
	s.False(report.Ready)
	s.Equal([]string{
		"education_credential_assessment",
		"language_test_report",
		"police_certificate",
		"proof_of_funds_statement",
	}, blockedDocuments(report.Blockers))
	s.Equal(blockedDocuments(report.Blockers), report.MissingDocuments)
	s.Contains(report.Explanations, "missing required document: police_certificate")
}

// Blockers are structured records citing the config entry and the
// authoritative source behind each missing document.
func (s *ReadinessSuite) TestBlockersCarryCitations() {
	report, err := s.engine.Evaluate(s.ctx, Input{
		Program:    "FSW",
		ProfileMap: s.profileMap(profile.Profile{Personal: profile.Personal{MaritalStatus: "single"}}),
	})
	s.Require().NoError(err)

	s.Require().NotEmpty(report.Blockers)
	for _, b := range report.Blockers {
		s.Equal(BlockerMissingRequiredDocument, b.Code)
		s.Equal([]string{"config/domain/documents.yaml#" + b.DocumentID}, b.ConfigRefs)
		s.Require().Len(b.SourceRefs, 1)
		s.NotEmpty(b.SourceRefs[0])
		s.NotEqual(configbundle.UnsourcedRef, b.SourceRefs[0])
	}
}

func (s *ReadinessSuite) TestUnsourcedRequirementNeverBlocks() {
	docs := fswUploads()
	// Strip the category so nothing satisfies digital_photo by category.
	for i := range docs {
		docs[i].Category = ""
	}

	report, err := s.engine.Evaluate(s.ctx, Input{
		Program:    "FSW",
		ProfileMap: s.profileMap(profile.Profile{Personal: profile.Personal{MaritalStatus: "single"}}),
		Documents:  docs,
	})
	s.Require().NoError(err)

	s.Equal(StatusReady, report.Status)
	s.NotContains(blockedDocuments(report.Blockers), "digital_photo")
	s.Contains(report.MissingDocuments, "digital_photo")
	s.Contains(report.Explanations, "UNSOURCED requirement: digital_photo")
}

func (s *ReadinessSuite) TestCategoryMatchSatisfiesRequirement() {
	report, err := s.engine.Evaluate(s.ctx, Input{
		Program:    "CEC",
		ProfileMap: s.profileMap(profile.Profile{Personal: profile.Personal{MaritalStatus: "single"}}),
		Documents: []UploadedDocument{
			{DocumentType: "national_id_card", Category: "identity", Filename: "id.pdf"},
		},
	})
	s.Require().NoError(err)

	for _, req := range report.Documents {
		if req.ID == "passport" {
			s.True(req.Satisfied)
		}
	}
}

func (s *ReadinessSuite) TestProgramInference() {
	profileMap := s.profileMap(profile.Profile{Personal: profile.Personal{MaritalStatus: "single"}})

	s.Run("unique eligible program", func() {
		report, err := s.engine.Evaluate(s.ctx, Input{
			EligiblePrograms: []string{"CEC"},
			ProfileMap:       profileMap,
		})
		s.Require().NoError(err)
		s.Equal("CEC", report.Program)
	})

	s.Run("ambiguous eligibility is unknown", func() {
		report, err := s.engine.Evaluate(s.ctx, Input{
			EligiblePrograms: []string{"FSW", "CEC"},
			ProfileMap:       profileMap,
		})
		s.Require().NoError(err)
		s.Equal(ProgramUnknown, report.Program)
		s.Equal(StatusUnknown, report.Status)
		s.False(report.Ready)
		s.Empty(report.Documents)
	})

	s.Run("no eligible programs is unknown", func() {
		report, err := s.engine.Evaluate(s.ctx, Input{ProfileMap: profileMap})
		s.Require().NoError(err)
		s.Equal(StatusUnknown, report.Status)
	})
}

func (s *ReadinessSuite) TestDocumentsSortedDeterministically() {
	in := Input{
		Program:    "FSW",
		ProfileMap: s.profileMap(profile.Profile{Personal: profile.Personal{MaritalStatus: "single"}}),
		Documents:  fswUploads(),
	}
	first, err := s.engine.Evaluate(s.ctx, in)
	s.Require().NoError(err)

	for i := 1; i < len(first.Documents); i++ {
		s.LessOrEqual(first.Documents[i-1].ID, first.Documents[i].ID)
	}
	for i := 0; i < 5; i++ {
		again, err := s.engine.Evaluate(s.ctx, in)
		s.Require().NoError(err)
		s.Equal(first, again)
	}
}

func (s *ReadinessSuite) TestConfigRefsPointIntoBundle() {
	report, err := s.engine.Evaluate(s.ctx, Input{
		Program:    "CEC",
		ProfileMap: s.profileMap(profile.Profile{}),
	})
	s.Require().NoError(err)
	for _, req := range report.Documents {
		s.Equal("config/domain/documents.yaml#"+req.ID, req.ConfigRef)
		s.NotEmpty(req.Reasons)
	}
	s.NotEmpty(report.Documents)
}
