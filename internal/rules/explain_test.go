package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"boreal/internal/configbundle"
	"boreal/internal/profile"
)

type ExplainSuite struct {
	suite.Suite

	gen *ExplanationGenerator
}

func TestExplainSuite(t *testing.T) {
	suite.Run(t, new(ExplainSuite))
}

func (s *ExplainSuite) SetupSuite() {
	s.gen = NewExplanationGenerator()
}

func (s *ExplainSuite) TestRenderSingleRecord() {
	line := s.gen.Render(Explanation{
		Code:      "FSW_FUNDS_MISSING",
		RulePath:  "programs.FSW.uses_proof_of_funds",
		Input:     "amount=unknown",
		Threshold: "required 14690 CAD",
	})
	s.Equal("FSW_FUNDS_MISSING: rule programs.FSW.uses_proof_of_funds saw amount=unknown, requires required 14690 CAD.", line)
}

func (s *ExplainSuite) TestRenderAllSortsByCode() {
	lines := s.gen.RenderAll([]Explanation{
		{Code: "B_SECOND", RulePath: "p.b", Input: "x=2", Threshold: "t2"},
		{Code: "A_FIRST", RulePath: "p.a", Input: "x=1", Threshold: "t1"},
	})
	s.Require().Len(lines, 2)
	s.Contains(lines[0], "A_FIRST")
	s.Contains(lines[1], "B_SECOND")
}

// Prose rendered from a real evaluation must be identical run to run.
func (s *ExplainSuite) TestRenderedProseIsDeterministic() {
	bundle, err := configbundle.Load("../../config/domain")
	s.Require().NoError(err)
	engine := NewEngine(bundle)
	asOf := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	result := engine.EvaluatePrograms(profile.Profile{}, asOf)
	var records []Explanation
	for _, p := range result.Programs {
		records = append(records, p.Explanations...)
	}
	s.Require().NotEmpty(records)

	first := s.gen.RenderAll(records)
	for i := 0; i < 5; i++ {
		s.Equal(first, s.gen.RenderAll(records))
	}
	for _, line := range first {
		s.NotEmpty(line)
	}
}
