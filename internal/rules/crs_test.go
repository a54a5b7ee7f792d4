package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"boreal/internal/configbundle"
	"boreal/internal/profile"
)

type CRSSuite struct {
	suite.Suite

	engine *Engine
	asOf   time.Time
}

func TestCRSSuite(t *testing.T) {
	suite.Run(t, new(CRSSuite))
}

func (s *CRSSuite) SetupSuite() {
	bundle, err := configbundle.Load("../../config/domain")
	s.Require().NoError(err)
	s.engine = NewEngine(bundle)
	s.asOf = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func intp(v int) *int { return &v }

// singleCandidate is a 29 year old single applicant: bachelors, CLB 9 first
// language, CLB 5 second language, 2 years Canadian and 3 years foreign work.
func (s *CRSSuite) singleCandidate() profile.Profile {
	return profile.Profile{
		Personal: profile.Personal{
			GivenName:     "Asha",
			FamilyName:    "Rao",
			DateOfBirth:   "1997-03-15",
			MaritalStatus: "single",
		},
		Language: profile.Language{
			First: &profile.LanguageTest{
				TestType:     "IELTS",
				ListeningCLB: intp(9), SpeakingCLB: intp(9), ReadingCLB: intp(9), WritingCLB: intp(9),
			},
			Second: &profile.LanguageTest{
				TestType:     "TEF",
				ListeningCLB: intp(5), SpeakingCLB: intp(5), ReadingCLB: intp(5), WritingCLB: intp(5),
			},
		},
		Education: profile.Education{HighestLevel: "bachelors"},
		Work: profile.Work{Experiences: []profile.WorkExperience{
			{Occupation: "software developer", TEER: intp(1), Canadian: true, Months: 24},
			{Occupation: "software developer", TEER: intp(1), Months: 36},
		}},
		Funds:     profile.Funds{Amount: intp(15000)},
	}
}

func (s *CRSSuite) TestSingleCandidateBreakdown() {
	got := s.engine.Score(s.singleCandidate(), s.asOf)

	// age 110 + education 120 + first language 4x31 + second language 4x1 +
	// canadian work 46
	s.Equal(404, got.Core)
	s.Equal(0, got.Spouse)

	// raw bundles 25+25+50+50+0 = 150, scaled to the 100 cap with integer
	// truncation: 16+16+33+33+0
	s.Equal(98, got.Transferability)
	s.Equal(0, got.Additional)
	s.Equal(502, got.Total)

	s.Equal("2026.1", got.ConfigVersion)
	s.NotEmpty(got.ConfigHash)
}

func (s *CRSSuite) TestScoreIsDeterministic() {
	p := s.singleCandidate()
	first := s.engine.Score(p, s.asOf)
	for i := 0; i < 5; i++ {
		s.Equal(first, s.engine.Score(p, s.asOf))
	}
}

func (s *CRSSuite) TestFactorPointsSumToTotal() {
	got := s.engine.Score(s.singleCandidate(), s.asOf)

	sum := 0
	for _, f := range got.Factors {
		sum += f.Points
		s.NotEmpty(f.Explanation.RulePath, "factor %s missing rule path", f.Code)
	}
	s.Equal(got.Total, sum)
}

func (s *CRSSuite) TestTransferabilityScaleDown() {
	got := s.engine.Score(s.singleCandidate(), s.asOf)

	byCode := map[string]FactorScore{}
	for _, f := range got.Factors {
		byCode[f.Code] = f
	}
	s.Equal(16, byCode[FactorTransferEducationLanguage].Points)
	s.Equal(16, byCode[FactorTransferEducationCanadianWork].Points)
	s.Equal(33, byCode[FactorTransferForeignWorkLanguage].Points)
	s.Equal(33, byCode[FactorTransferForeignWorkCanadian].Points)
	s.Equal(0, byCode[FactorTransferCertificateLanguage].Points)
	s.Contains(byCode[FactorTransferForeignWorkLanguage].Explanation.Threshold, "scaled")
}

func (s *CRSSuite) TestSpouseFactorsApplyOnlyWhenAccompanying() {
	p := s.singleCandidate()
	p.Personal.MaritalStatus = "married"
	p.Spouse = &profile.Spouse{
		EducationLevel: "bachelors",
		LanguageTest: &profile.LanguageTest{
			ListeningCLB: intp(9), SpeakingCLB: intp(9), ReadingCLB: intp(9), WritingCLB: intp(9),
		},
		CanadianWorkYears: 2,
	}

	got := s.engine.Score(p, s.asOf)

	// age 100 + education 112 + first language 4x29 + second language 4 +
	// canadian work 40
	s.Equal(372, got.Core)
	// spouse education 8 + language 4x5 + canadian work 7
	s.Equal(35, got.Spouse)

	// Same spouse data but not accompanying: spouse section disappears and
	// core reverts to the single column.
	p.Personal.MaritalStatus = "divorced"
	solo := s.engine.Score(p, s.asOf)
	s.Equal(404, solo.Core)
	s.Equal(0, solo.Spouse)
}

func (s *CRSSuite) TestAdditionalPoints() {
	p := s.singleCandidate()
	p.Status.ProvincialNomination = true
	p.Family.SiblingInCanada = true
	p.Education.CanadianStudyYears = 3
	p.Employment.HasJobOffer = true
	p.Employment.JobOfferTEERCategory = "teer_1_2_3"

	got := s.engine.Score(p, s.asOf)
	// nomination 600 + sibling 15 + study 30 + job offer 50
	s.Equal(695, got.Additional)
}

func (s *CRSSuite) TestFrenchBonusTiers() {
	p := s.singleCandidate()
	p.Language.Second = &profile.LanguageTest{
		TestType:     "TEF",
		ListeningCLB: intp(8), SpeakingCLB: intp(8), ReadingCLB: intp(8), WritingCLB: intp(8),
	}

	got := s.engine.Score(p, s.asOf)
	byCode := map[string]FactorScore{}
	for _, f := range got.Factors {
		byCode[f.Code] = f
	}
	// NCLC 7+ French with CLB 5+ English
	s.Equal(50, byCode[FactorFrench].Points)

	p.Language.First.ListeningCLB = intp(4)
	p.Language.First.SpeakingCLB = intp(4)
	p.Language.First.ReadingCLB = intp(4)
	p.Language.First.WritingCLB = intp(4)
	got = s.engine.Score(p, s.asOf)
	for _, f := range got.Factors {
		if f.Code == FactorFrench {
			s.Equal(25, f.Points)
		}
	}
}

func (s *CRSSuite) TestMissingDataScoresZeroNotError() {
	got := s.engine.Score(profile.Profile{}, s.asOf)

	s.Equal(0, got.Total)
	for _, f := range got.Factors {
		s.Zero(f.Points, "empty profile awarded %s", f.Code)
	}
}

func (s *CRSSuite) TestAgeBandBoundaries() {
	p := s.singleCandidate()

	p.Personal.DateOfBirth = "1981-06-01" // turns 45 on the evaluation day
	got := s.engine.Score(p, s.asOf)
	for _, f := range got.Factors {
		if f.Code == FactorAge {
			s.Zero(f.Points)
		}
	}

	p.Personal.DateOfBirth = "1981-06-02" // still 44
	got = s.engine.Score(p, s.asOf)
	for _, f := range got.Factors {
		if f.Code == FactorAge {
			s.Equal(6, f.Points)
		}
	}
}
