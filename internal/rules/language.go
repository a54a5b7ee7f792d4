package rules

import "boreal/internal/profile"

// normalizeLanguage fills missing CLB levels from raw test scores using the
// bundle's conversion tables. Explicit CLB levels always win; tests without
// raw scores pass through untouched.
func (e *Engine) normalizeLanguage(p profile.Profile) profile.Profile {
	p.Language.First = e.convertTest(p.Language.First)
	p.Language.Second = e.convertTest(p.Language.Second)
	if p.Spouse != nil && p.Spouse.LanguageTest != nil {
		sp := *p.Spouse
		sp.LanguageTest = e.convertTest(sp.LanguageTest)
		p.Spouse = &sp
	}
	return p
}

func (e *Engine) convertTest(t *profile.LanguageTest) *profile.LanguageTest {
	if t == nil || t.Scores == nil {
		return t
	}
	out := *t
	if out.SpeakingCLB == nil {
		out.SpeakingCLB = e.clbFor(t.TestType, "speaking", t.Scores.Speaking)
	}
	if out.ListeningCLB == nil {
		out.ListeningCLB = e.clbFor(t.TestType, "listening", t.Scores.Listening)
	}
	if out.ReadingCLB == nil {
		out.ReadingCLB = e.clbFor(t.TestType, "reading", t.Scores.Reading)
	}
	if out.WritingCLB == nil {
		out.WritingCLB = e.clbFor(t.TestType, "writing", t.Scores.Writing)
	}
	return &out
}

// clbFor returns the highest CLB level whose score floor the raw score meets,
// or nil when the (test, skill) pair has no conversion rows or the score is
// below every floor.
func (e *Engine) clbFor(test, skill string, score float64) *int {
	best := -1
	for _, row := range e.bundle.Language.CLBConversion {
		if row.Test != test || row.Skill != skill {
			continue
		}
		if score >= row.MinScore && row.CLB > best {
			best = row.CLB
		}
	}
	if best < 0 {
		return nil
	}
	return &best
}
