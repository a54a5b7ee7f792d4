package autofill

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"boreal/internal/configbundle"
	"boreal/internal/profile"
	dErrors "boreal/pkg/domain-errors"
)

type AutofillSuite struct {
	suite.Suite

	engine *Engine
}

func TestAutofillSuite(t *testing.T) {
	suite.Run(t, new(AutofillSuite))
}

func (s *AutofillSuite) SetupSuite() {
	bundle, err := configbundle.Load("../../config/domain")
	s.Require().NoError(err)
	s.engine = NewEngine(bundle)
}

func (s *AutofillSuite) profileMap() map[string]any {
	p := profile.Profile{
		Personal: profile.Personal{
			GivenName:           "Asha",
			FamilyName:          "Rao",
			DateOfBirth:         "1997-03-15",
			Citizenship:         "IN",
			MaritalStatus:       "single",
			DestinationProvince: "ON",
		},
		Education: profile.Education{HighestLevel: "bachelors"},
	}
	m, err := p.Map()
	s.Require().NoError(err)
	return m
}

func fieldByID(draft FormDraft, id string) (FieldValue, bool) {
	for _, f := range draft.Fields {
		if f.FieldID == id {
			return f, true
		}
	}
	return FieldValue{}, false
}

func (s *AutofillSuite) TestFillFSWBundle() {
	got, err := s.engine.Fill("FSW", "", s.profileMap(), map[string]any{"passport": "Z1234567"})
	s.Require().NoError(err)

	s.Equal("express_entry_fsw", got.BundleID)
	s.Equal("FSW", got.Program)
	s.Len(got.Forms, 3)

	imm0008 := got.Forms[0]
	s.Equal("IMM0008", imm0008.FormID)
	s.Equal([]string{"passport", "digital_photo"}, imm0008.Attachments)

	s.Run("canonical profile values", func() {
		given, ok := fieldByID(imm0008, "given_name")
		s.Require().True(ok)
		s.Equal("Asha", given.Value)
		s.Equal(configbundle.SourceCanonicalProfile, given.Source)
		s.Empty(given.Note)
	})

	s.Run("document value", func() {
		passport, ok := fieldByID(imm0008, "passport_number")
		s.Require().True(ok)
		s.Equal("Z1234567", passport.Value)
		s.Equal(configbundle.SourceDocument, passport.Source)
	})

	s.Run("constant value", func() {
		appType, ok := fieldByID(imm0008, "application_type")
		s.Require().True(ok)
		s.Equal("express_entry", appType.Value)
	})
}

func (s *AutofillSuite) TestUnresolvedFieldsCarryNotes() {
	got, err := s.engine.Fill("FSW", "", map[string]any{}, nil)
	s.Require().NoError(err)

	imm0008 := got.Forms[0]

	given, _ := fieldByID(imm0008, "given_name")
	s.Nil(given.Value)
	s.Equal("missing canonical data: personal.given_name", given.Note)

	passport, _ := fieldByID(imm0008, "passport_number")
	s.Nil(passport.Value)
	s.Equal("document not uploaded: passport", passport.Note)
}

func (s *AutofillSuite) TestRuleEngineSourceReserved() {
	got, err := s.engine.Fill("FSW", "", s.profileMap(), nil)
	s.Require().NoError(err)

	var imm5669 FormDraft
	for _, f := range got.Forms {
		if f.FormID == "IMM5669" {
			imm5669 = f
		}
	}
	crsTotal, ok := fieldByID(imm5669, "crs_total")
	s.Require().True(ok)
	s.Nil(crsTotal.Value)
	s.Equal("rule_engine source not implemented", crsTotal.Note)
}

func (s *AutofillSuite) TestBundleSelection() {
	s.Run("explicit bundle id", func() {
		got, err := s.engine.Fill("", "express_entry_cec", s.profileMap(), nil)
		s.Require().NoError(err)
		s.Equal("express_entry_cec", got.BundleID)
		s.Len(got.Forms, 2)
	})

	s.Run("inactive bundle rejected", func() {
		_, err := s.engine.Fill("", "express_entry_legacy", s.profileMap(), nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown bundle", func() {
		_, err := s.engine.Fill("", "no_such_bundle", s.profileMap(), nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("no active bundle for program", func() {
		_, err := s.engine.Fill("QSW", "", s.profileMap(), nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
