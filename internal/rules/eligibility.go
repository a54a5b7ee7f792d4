package rules

import (
	"fmt"
	"time"

	"boreal/internal/configbundle"
	"boreal/internal/profile"
)

// Warning codes. Warnings are advisory only and never block eligibility.
const (
	WarningLangExpiring    = "LANG_EXPIRING"
	WarningMedicalExpiring = "MEDICAL_EXPIRING"
)

// ProgramEligibility is the verdict for one program. Reasons lists the
// blocker codes when ineligible; an eligible program has none.
type ProgramEligibility struct {
	Program      string        `json:"program"`
	Eligible     bool          `json:"eligible"`
	Reasons      []string      `json:"reasons"`
	Explanations []Explanation `json:"explanations"`
}

// EligibilityResult covers every configured program plus cross-program
// warnings.
type EligibilityResult struct {
	Programs      []ProgramEligibility `json:"programs"`
	Warnings      []string             `json:"warnings"`
	ConfigVersion string               `json:"config_version"`
	ConfigHash    string               `json:"config_hash"`
}

// EligiblePrograms returns the codes of the programs the profile qualifies
// for, in config order.
func (r EligibilityResult) EligiblePrograms() []string {
	var codes []string
	for _, p := range r.Programs {
		if p.Eligible {
			codes = append(codes, p.Program)
		}
	}
	return codes
}

// EvaluatePrograms checks the profile against every configured program.
// Programs are evaluated in config order and every blocker is reported, not
// just the first.
func (e *Engine) EvaluatePrograms(p profile.Profile, asOf time.Time) EligibilityResult {
	p = e.normalizeLanguage(p)
	out := EligibilityResult{
		ConfigVersion: e.bundle.Programs.Version,
		ConfigHash:    e.bundle.Hash(),
		Warnings:      e.expiryWarnings(p, asOf),
	}
	for _, rule := range e.bundle.Programs.Programs {
		out.Programs = append(out.Programs, e.evaluateProgram(rule, p, asOf))
	}
	return out
}

type blockFn func(code, rulePath, input, threshold string)

func (e *Engine) evaluateProgram(rule configbundle.ProgramRule, p profile.Profile, asOf time.Time) ProgramEligibility {
	pe := ProgramEligibility{Program: rule.Code}
	block := func(code, rulePath, input, threshold string) {
		pe.Reasons = append(pe.Reasons, code)
		pe.Explanations = append(pe.Explanations, Explanation{
			Code:      code,
			RulePath:  rulePath,
			Input:     input,
			Threshold: threshold,
		})
	}

	// Program-specific language and work rules come from language.yaml and
	// work_experience.yaml; programs.yaml only declares the structural gates.
	switch rule.Code {
	case "FSW":
		e.checkFSWLanguage(rule, p, block)
		e.checkFSWWork(rule, p, block)
	case "CEC":
		e.checkCECWork(rule, p, asOf, block)
		e.checkCECLanguage(rule, p, asOf, block)
	case "FST":
		e.checkFSTLanguage(rule, p, block)
		e.checkFSTWork(rule, p, block)
	}

	if rule.MinEducationLevel != "" {
		if !educationMeets(p.Education.HighestLevel, rule.MinEducationLevel) {
			block(rule.Code+"_EDUCATION_MIN_LEVEL",
				fmt.Sprintf("programs.%s.min_education_level", rule.Code),
				fmt.Sprintf("level=%q", p.Education.HighestLevel),
				fmt.Sprintf("credential at %s level or above required", rule.MinEducationLevel))
		}
	}

	if rule.RequiresJobOffer && !p.Employment.HasJobOffer {
		block(rule.Code+"_JOB_OFFER_REQUIRED",
			fmt.Sprintf("programs.%s.requires_job_offer", rule.Code),
			"job_offer=false", "valid job offer required")
	}

	if rule.RequiresCertificateOrOffer {
		if !p.Employment.CertificateOfQualification && !p.Employment.HasJobOffer {
			block(rule.Code+"_CERT_OR_OFFER_REQUIRED",
				fmt.Sprintf("programs.%s.requires_certificate_or_offer", rule.Code),
				"certificate=false job_offer=false",
				"certificate of qualification or valid job offer required")
		}
	}

	if rule.UsesProofOfFunds && !e.fundsExempt(rule.Code) {
		e.checkFunds(rule, p, block)
	}

	pe.Eligible = len(pe.Reasons) == 0
	return pe
}

// checkFSWLanguage applies the single CLB floor to every skill of the best
// test.
func (e *Engine) checkFSWLanguage(rule configbundle.ProgramRule, p profile.Profile, block blockFn) {
	min := e.bundle.Language.ProgramMinimums.FSW.MinCLB
	if min <= 0 {
		return
	}
	if clb := p.Language.Best().MinCLB(); clb < min {
		block(rule.Code+"_LANG_MIN_CLB",
			"language.program_minimums.fsw.min_clb",
			fmt.Sprintf("min_clb=%d", clb),
			fmt.Sprintf("required CLB %d in every skill", min))
	}
}

// checkFSWWork requires one continuous record in an eligible TEER of at
// least the configured length.
func (e *Engine) checkFSWWork(rule configbundle.ProgramRule, p profile.Profile, block blockFn) {
	min := e.bundle.WorkExperience.FSW.MinContinuousMonths
	best := 0
	for _, exp := range p.Work.Experiences {
		if exp.TEER == nil || !e.teerEligible(*exp.TEER) {
			continue
		}
		if exp.Months > best {
			best = exp.Months
		}
	}
	if best < min {
		block(rule.Code+"_NO_CONTINUOUS_SKILLED_WORK",
			"work_experience.fsw.min_continuous_months",
			fmt.Sprintf("longest_skilled_record_months=%d", best),
			fmt.Sprintf("one continuous record of %d months in TEER %v required", min, e.bundle.WorkExperience.EligibleTEERs))
	}
}

// checkCECWork sums skilled Canadian months inside the recency window.
func (e *Engine) checkCECWork(rule configbundle.ProgramRule, p profile.Profile, asOf time.Time, block blockFn) {
	cfg := e.bundle.WorkExperience.CEC
	if !p.HasCanadianWork() {
		block(rule.Code+"_NO_CANADIAN_WORK",
			"work_experience.cec.min_canadian_months",
			"canadian_months=0", "Canadian work experience required")
		return
	}
	known, eligible := false, false
	months := 0
	for _, exp := range p.Work.Experiences {
		if !exp.Canadian || exp.TEER == nil {
			continue
		}
		known = true
		if !e.teerEligible(*exp.TEER) {
			continue
		}
		eligible = true
		if exp.EndedWithin(cfg.RecencyYears, asOf) {
			months += exp.Months
		}
	}
	if !known {
		block(rule.Code+"_UNKNOWN_TEER", "work_experience.eligible_teers",
			"teer=unknown", "occupation TEER category required")
		return
	}
	if !eligible {
		block(rule.Code+"_INELIGIBLE_TEER", "work_experience.eligible_teers",
			"teer=outside eligible set",
			fmt.Sprintf("eligible TEERs %v", e.bundle.WorkExperience.EligibleTEERs))
		return
	}
	if months < cfg.MinCanadianMonths {
		block(rule.Code+"_MIN_CANADIAN_MONTHS",
			"work_experience.cec.min_canadian_months",
			fmt.Sprintf("skilled_canadian_months=%d", months),
			fmt.Sprintf("required %d months within %d years", cfg.MinCanadianMonths, cfg.RecencyYears))
	}
}

// checkCECLanguage picks the CLB floor from the TEER bucket of the highest
// skilled Canadian occupation inside the recency window. TEER 0 and 1 use the
// higher floor; without a known skilled occupation the lower floor applies,
// the work check having already blocked the profile.
func (e *Engine) checkCECLanguage(rule configbundle.ProgramRule, p profile.Profile, asOf time.Time, block blockFn) {
	cfg := e.bundle.Language.ProgramMinimums.CEC
	bucket := "teer_2_3"
	min := cfg.TEER23
	if teer, ok := e.highestRecentCanadianTEER(p, asOf); ok && teer <= 1 {
		bucket = "teer_0_1"
		min = cfg.TEER01
	}
	if min <= 0 {
		return
	}
	if clb := p.Language.Best().MinCLB(); clb < min {
		block(rule.Code+"_LANG_MIN_CLB",
			"language.program_minimums.cec."+bucket,
			fmt.Sprintf("min_clb=%d", clb),
			fmt.Sprintf("required CLB %d in every skill for %s occupations", min, bucket))
	}
}

// highestRecentCanadianTEER returns the lowest TEER number (highest skill
// level) among recent skilled Canadian records.
func (e *Engine) highestRecentCanadianTEER(p profile.Profile, asOf time.Time) (int, bool) {
	recency := e.bundle.WorkExperience.CEC.RecencyYears
	best, found := 0, false
	for _, exp := range p.Work.Experiences {
		if !exp.Canadian || exp.TEER == nil || !e.teerEligible(*exp.TEER) {
			continue
		}
		if !exp.EndedWithin(recency, asOf) {
			continue
		}
		if !found || *exp.TEER < best {
			best, found = *exp.TEER, true
		}
	}
	return best, found
}

// checkFSTLanguage applies the combined floors: one for speaking and
// listening, a lower one for reading and writing.
func (e *Engine) checkFSTLanguage(rule configbundle.ProgramRule, p profile.Profile, block blockFn) {
	cfg := e.bundle.Language.ProgramMinimums.FST
	sp, li, re, wr := testSkills(p.Language.Best())
	if cfg.SpeakingListening > 0 && (sp < cfg.SpeakingListening || li < cfg.SpeakingListening) {
		block(rule.Code+"_LANG_SPEAKING_LISTENING",
			"language.program_minimums.fst.speaking_listening",
			fmt.Sprintf("speaking=%d listening=%d", sp, li),
			fmt.Sprintf("required CLB %d in speaking and listening", cfg.SpeakingListening))
	}
	if cfg.ReadingWriting > 0 && (re < cfg.ReadingWriting || wr < cfg.ReadingWriting) {
		block(rule.Code+"_LANG_READING_WRITING",
			"language.program_minimums.fst.reading_writing",
			fmt.Sprintf("reading=%d writing=%d", re, wr),
			fmt.Sprintf("required CLB %d in reading and writing", cfg.ReadingWriting))
	}
}

// testSkills extracts per-skill CLB levels, -1 for anything missing.
func testSkills(t *profile.LanguageTest) (speaking, listening, reading, writing int) {
	speaking, listening, reading, writing = -1, -1, -1, -1
	if t == nil {
		return
	}
	return deref(t.SpeakingCLB), deref(t.ListeningCLB), deref(t.ReadingCLB), deref(t.WritingCLB)
}

func deref(v *int) int {
	if v == nil {
		return -1
	}
	return *v
}

func (e *Engine) checkFSTWork(rule configbundle.ProgramRule, p profile.Profile, block blockFn) {
	min := e.bundle.WorkExperience.FST.MinMonths
	months := 0
	for _, exp := range p.Work.Experiences {
		if exp.TEER != nil && e.teerEligible(*exp.TEER) {
			months += exp.Months
		}
	}
	if months < min {
		block(rule.Code+"_WORK_MIN_MONTHS",
			"work_experience.fst.min_months",
			fmt.Sprintf("skilled_months=%d", months),
			fmt.Sprintf("required %d months in TEER %v", min, e.bundle.WorkExperience.EligibleTEERs))
	}
}

func (e *Engine) teerEligible(teer int) bool {
	for _, t := range e.bundle.WorkExperience.EligibleTEERs {
		if teer == t {
			return true
		}
	}
	return false
}

// fundsExempt reports whether the program appears in the proof-of-funds
// exemption list.
func (e *Engine) fundsExempt(code string) bool {
	for _, exempt := range e.bundle.ProofOfFunds.Exemptions {
		if exempt == code {
			return true
		}
	}
	return false
}

func (e *Engine) checkFunds(rule configbundle.ProgramRule, p profile.Profile, block blockFn) {
	required := e.RequiredFunds(p.FamilySizeOrDefault())
	rulePath := fmt.Sprintf("programs.%s.uses_proof_of_funds", rule.Code)
	if p.Funds.Amount == nil {
		block(rule.Code+"_FUNDS_MISSING", rulePath,
			"amount=unknown",
			fmt.Sprintf("required %d %s", required, e.bundle.ProofOfFunds.Currency))
		return
	}
	if *p.Funds.Amount < required {
		block(rule.Code+"_FUNDS_INSUFFICIENT", rulePath,
			fmt.Sprintf("amount=%d", *p.Funds.Amount),
			fmt.Sprintf("required %d %s for family of %d", required, e.bundle.ProofOfFunds.Currency, p.FamilySizeOrDefault()))
	}
}

// RequiredFunds returns the settlement funds threshold for a family size.
// Sizes beyond the largest configured row extend it by per_extra_member.
func (e *Engine) RequiredFunds(familySize int) int {
	rows := e.bundle.ProofOfFunds.Amounts
	if len(rows) == 0 {
		return 0
	}
	if familySize < 1 {
		familySize = 1
	}
	largest := rows[0]
	for _, row := range rows {
		if row.FamilySize == familySize {
			return row.Amount
		}
		if row.FamilySize > largest.FamilySize {
			largest = row
		}
	}
	if familySize > largest.FamilySize {
		return largest.Amount + (familySize-largest.FamilySize)*e.bundle.ProofOfFunds.PerExtraMember
	}
	return largest.Amount
}

// expiryWarnings flags language results and medical exams that expire within
// the configured warning window, or already have.
func (e *Engine) expiryWarnings(p profile.Profile, asOf time.Time) []string {
	window := time.Duration(e.bundle.Language.ExpiryWarningDays) * 24 * time.Hour
	var warnings []string
	if expiresWithin(p.Language.First, window, asOf) || expiresWithin(p.Language.Second, window, asOf) {
		warnings = append(warnings, WarningLangExpiring)
	}
	if p.Medical.ExpiresAt != "" {
		if exp, err := time.Parse("2006-01-02", p.Medical.ExpiresAt); err == nil && !exp.After(asOf.Add(window)) {
			warnings = append(warnings, WarningMedicalExpiring)
		}
	}
	return warnings
}

func expiresWithin(t *profile.LanguageTest, window time.Duration, asOf time.Time) bool {
	if t == nil || t.ExpiresAt == "" {
		return false
	}
	exp, err := time.Parse("2006-01-02", t.ExpiresAt)
	if err != nil {
		return false
	}
	return !exp.After(asOf.Add(window))
}
