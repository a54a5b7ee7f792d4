package rules

import (
	"fmt"
	"time"

	"boreal/internal/configbundle"
	"boreal/internal/profile"
)

// Factor codes for the CRS breakdown. The wire contract is these strings;
// rename only with a config bundle version bump.
const (
	FactorAge            = "core_human_capital_age"
	FactorEducation      = "core_human_capital_education"
	FactorFirstLanguage  = "core_human_capital_first_language"
	FactorSecondLanguage = "core_human_capital_second_language"
	FactorCanadianWork   = "core_human_capital_canadian_work"

	FactorSpouseEducation    = "spouse_education"
	FactorSpouseLanguage     = "spouse_language"
	FactorSpouseCanadianWork = "spouse_canadian_work"

	FactorTransferEducationLanguage     = "transferability_education_language"
	FactorTransferEducationCanadianWork = "transferability_education_canadian_work"
	FactorTransferForeignWorkLanguage   = "transferability_foreign_work_language"
	FactorTransferForeignWorkCanadian   = "transferability_foreign_work_canadian_work"
	FactorTransferCertificateLanguage   = "transferability_certificate_language"

	FactorProvincialNomination = "additional_provincial_nomination"
	FactorSiblingInCanada      = "additional_sibling_in_canada"
	FactorFrench               = "additional_french"
	FactorCanadianStudy        = "additional_canadian_study"
	FactorJobOffer             = "additional_job_offer"
)

// FactorScore is one scored line of the CRS breakdown.
type FactorScore struct {
	Code        string      `json:"code"`
	Points      int         `json:"points"`
	Explanation Explanation `json:"explanation"`
}

// CRSBreakdown is the full deterministic scoring result.
type CRSBreakdown struct {
	Total           int           `json:"total"`
	Core            int           `json:"core"`
	Spouse          int           `json:"spouse"`
	Transferability int           `json:"transferability"`
	Additional      int           `json:"additional"`
	Factors         []FactorScore `json:"factors"`
	ConfigVersion   string        `json:"config_version"`
	ConfigHash      string        `json:"config_hash"`
}

// Score computes the comprehensive ranking breakdown for a profile as of the
// given instant. Factors appear in the breakdown in fixed table order, zero
// or not; determinism beats brevity here.
func (e *Engine) Score(p profile.Profile, asOf time.Time) CRSBreakdown {
	p = e.normalizeLanguage(p)
	crs := e.bundle.CRS
	withSpouse := p.HasAccompanyingSpouse()

	out := CRSBreakdown{
		ConfigVersion: crs.Version,
		ConfigHash:    e.bundle.Hash(),
	}

	add := func(section *int, f FactorScore) {
		*section += f.Points
		out.Factors = append(out.Factors, f)
	}

	add(&out.Core, scoreAge(crs, p.Age(asOf), withSpouse))
	add(&out.Core, scoreEducation(crs, p.Education.HighestLevel, withSpouse))
	add(&out.Core, scoreFirstLanguage(crs, p.Language.First, withSpouse))
	add(&out.Core, scoreSecondLanguage(crs, p.Language.Second))
	add(&out.Core, scoreCanadianWork(crs, p.Work.CanadianMonths(), withSpouse))

	if withSpouse {
		add(&out.Spouse, scoreSpouseEducation(crs, p.Spouse.EducationLevel))
		add(&out.Spouse, scoreSpouseLanguage(crs, p.Spouse.LanguageTest))
		add(&out.Spouse, scoreSpouseCanadianWork(crs, p.Spouse.CanadianWorkYears))
	}

	out.Transferability = scoreTransferability(crs, p, &out.Factors)

	add(&out.Additional, scoreProvincialNomination(crs, p))
	add(&out.Additional, scoreSibling(crs, p))
	add(&out.Additional, scoreFrench(crs, p))
	add(&out.Additional, scoreCanadianStudy(crs, p))
	add(&out.Additional, scoreJobOffer(crs, p))

	out.Total = out.Core + out.Spouse + out.Transferability + out.Additional
	return out
}

func scoreAge(crs configbundle.CRSConfig, age int, withSpouse bool) FactorScore {
	f := FactorScore{
		Code: FactorAge,
		Explanation: Explanation{
			Code:     FactorAge,
			RulePath: "crs_core.age_bands",
			Input:    fmt.Sprintf("age=%d", age),
		},
	}
	if age < 0 {
		f.Explanation.Threshold = "date of birth missing"
		return f
	}
	for _, band := range crs.Core.AgeBands {
		if age >= band.Min && age <= band.Max {
			f.Points = pick(band.Single, band.WithSpouse, withSpouse)
			f.Explanation.Threshold = fmt.Sprintf("band %d-%d", band.Min, band.Max)
			return f
		}
	}
	f.Explanation.Threshold = "outside all bands"
	return f
}

func scoreEducation(crs configbundle.CRSConfig, level string, withSpouse bool) FactorScore {
	f := FactorScore{
		Code: FactorEducation,
		Explanation: Explanation{
			Code:      FactorEducation,
			RulePath:  "crs_core.education",
			Input:     fmt.Sprintf("level=%s", level),
			Threshold: "no matching level",
		},
	}
	for _, row := range crs.Core.Education {
		if row.Level == level {
			f.Points = pick(row.Single, row.WithSpouse, withSpouse)
			f.Explanation.Threshold = fmt.Sprintf("level %s", row.Level)
			return f
		}
	}
	return f
}

// scoreFirstLanguage awards points per skill; each skill takes the highest
// row whose threshold it meets.
func scoreFirstLanguage(crs configbundle.CRSConfig, t *profile.LanguageTest, withSpouse bool) FactorScore {
	f := FactorScore{
		Code: FactorFirstLanguage,
		Explanation: Explanation{
			Code:     FactorFirstLanguage,
			RulePath: "crs_core.first_language_per_skill",
		},
	}
	if t == nil {
		f.Explanation.Input = "no first language test"
		return f
	}
	f.Explanation.Input = fmt.Sprintf("clb l=%s s=%s r=%s w=%s",
		clbStr(t.ListeningCLB), clbStr(t.SpeakingCLB), clbStr(t.ReadingCLB), clbStr(t.WritingCLB))
	for _, skill := range []*int{t.ListeningCLB, t.SpeakingCLB, t.ReadingCLB, t.WritingCLB} {
		if skill == nil {
			continue
		}
		for _, row := range crs.Core.FirstLanguagePerSkill {
			if *skill >= row.MinCLB {
				f.Points += pick(row.Single, row.WithSpouse, withSpouse)
				break
			}
		}
	}
	f.Explanation.Threshold = "per-skill highest satisfied row"
	return f
}

func scoreSecondLanguage(crs configbundle.CRSConfig, t *profile.LanguageTest) FactorScore {
	f := FactorScore{
		Code: FactorSecondLanguage,
		Explanation: Explanation{
			Code:      FactorSecondLanguage,
			RulePath:  "crs_core.second_language_per_skill",
			Threshold: fmt.Sprintf("cap %d", crs.Core.SecondLanguageCap),
		},
	}
	if t == nil {
		f.Explanation.Input = "no second language test"
		return f
	}
	f.Explanation.Input = fmt.Sprintf("clb l=%s s=%s r=%s w=%s",
		clbStr(t.ListeningCLB), clbStr(t.SpeakingCLB), clbStr(t.ReadingCLB), clbStr(t.WritingCLB))
	for _, skill := range []*int{t.ListeningCLB, t.SpeakingCLB, t.ReadingCLB, t.WritingCLB} {
		if skill == nil {
			continue
		}
		for _, row := range crs.Core.SecondLanguage {
			if *skill >= row.MinCLB {
				f.Points += row.Points
				break
			}
		}
	}
	if f.Points > crs.Core.SecondLanguageCap {
		f.Points = crs.Core.SecondLanguageCap
	}
	return f
}

func scoreCanadianWork(crs configbundle.CRSConfig, months int, withSpouse bool) FactorScore {
	years := months / 12
	f := FactorScore{
		Code: FactorCanadianWork,
		Explanation: Explanation{
			Code:      FactorCanadianWork,
			RulePath:  "crs_core.canadian_work",
			Input:     fmt.Sprintf("months=%d", months),
			Threshold: "below minimum years",
		},
	}
	for _, row := range crs.Core.CanadianWork {
		if years >= row.MinYears {
			f.Points = pick(row.Single, row.WithSpouse, withSpouse)
			f.Explanation.Threshold = fmt.Sprintf("min_years %d", row.MinYears)
			return f
		}
	}
	return f
}

func scoreSpouseEducation(crs configbundle.CRSConfig, level string) FactorScore {
	f := FactorScore{
		Code: FactorSpouseEducation,
		Explanation: Explanation{
			Code:      FactorSpouseEducation,
			RulePath:  "crs_spouse.education",
			Input:     fmt.Sprintf("level=%s", level),
			Threshold: "no matching level",
		},
	}
	for _, row := range crs.Spouse.Education {
		if row.Level == level {
			f.Points = row.Points
			f.Explanation.Threshold = fmt.Sprintf("level %s", row.Level)
			return f
		}
	}
	return f
}

func scoreSpouseLanguage(crs configbundle.CRSConfig, t *profile.LanguageTest) FactorScore {
	f := FactorScore{
		Code: FactorSpouseLanguage,
		Explanation: Explanation{
			Code:     FactorSpouseLanguage,
			RulePath: "crs_spouse.language_per_skill",
		},
	}
	if t == nil {
		f.Explanation.Input = "no spouse language test"
		return f
	}
	f.Explanation.Input = fmt.Sprintf("clb l=%s s=%s r=%s w=%s",
		clbStr(t.ListeningCLB), clbStr(t.SpeakingCLB), clbStr(t.ReadingCLB), clbStr(t.WritingCLB))
	for _, skill := range []*int{t.ListeningCLB, t.SpeakingCLB, t.ReadingCLB, t.WritingCLB} {
		if skill == nil {
			continue
		}
		for _, row := range crs.Spouse.LanguagePerSkill {
			if *skill >= row.MinCLB {
				f.Points += row.Points
				break
			}
		}
	}
	f.Explanation.Threshold = "per-skill highest satisfied row"
	return f
}

func scoreSpouseCanadianWork(crs configbundle.CRSConfig, years int) FactorScore {
	f := FactorScore{
		Code: FactorSpouseCanadianWork,
		Explanation: Explanation{
			Code:      FactorSpouseCanadianWork,
			RulePath:  "crs_spouse.canadian_work",
			Input:     fmt.Sprintf("years=%d", years),
			Threshold: "below minimum years",
		},
	}
	for _, row := range crs.Spouse.CanadianWork {
		if years >= row.MinYears {
			f.Points = row.Points
			f.Explanation.Threshold = fmt.Sprintf("min_years %d", row.MinYears)
			return f
		}
	}
	return f
}

// scoreTransferability scores the five bundles, caps each at caps.per_bundle
// and scales the set down proportionally (integer truncation) when the sum
// exceeds caps.total.
func scoreTransferability(crs configbundle.CRSConfig, p profile.Profile, factors *[]FactorScore) int {
	clb := p.Language.First.MinCLB()
	foreignYears := p.Work.ForeignMonths() / 12
	canadianYears := p.Work.CanadianMonths() / 12

	bundles := []FactorScore{
		transferBundle(FactorTransferEducationLanguage, "crs_transferability.education_language",
			crs.Transferability.EducationLanguage,
			fmt.Sprintf("education=%s clb=%d", p.Education.HighestLevel, clb),
			func(row configbundle.TransferRow) bool {
				return educationMeets(p.Education.HighestLevel, row.Education) && clb >= row.MinCLB
			}),
		transferBundle(FactorTransferEducationCanadianWork, "crs_transferability.education_canadian_work",
			crs.Transferability.EducationCanadianWork,
			fmt.Sprintf("education=%s canadian_years=%d", p.Education.HighestLevel, canadianYears),
			func(row configbundle.TransferRow) bool {
				return educationMeets(p.Education.HighestLevel, row.Education) && canadianYears >= row.MinCanadianYears
			}),
		transferBundle(FactorTransferForeignWorkLanguage, "crs_transferability.foreign_work_language",
			crs.Transferability.ForeignWorkLanguage,
			fmt.Sprintf("foreign_years=%d clb=%d", foreignYears, clb),
			func(row configbundle.TransferRow) bool {
				return foreignYears >= row.MinForeignYears && clb >= row.MinCLB
			}),
		transferBundle(FactorTransferForeignWorkCanadian, "crs_transferability.foreign_work_canadian_work",
			crs.Transferability.ForeignWorkCanadianWork,
			fmt.Sprintf("foreign_years=%d canadian_years=%d", foreignYears, canadianYears),
			func(row configbundle.TransferRow) bool {
				return foreignYears >= row.MinForeignYears && canadianYears >= row.MinCanadianYears
			}),
		transferBundle(FactorTransferCertificateLanguage, "crs_transferability.certificate_language",
			crs.Transferability.CertificateLanguage,
			fmt.Sprintf("certificate=%t clb=%d", p.Employment.CertificateOfQualification, clb),
			func(row configbundle.TransferRow) bool {
				return p.Employment.CertificateOfQualification && clb >= row.MinCLB
			}),
	}

	sum := 0
	for i := range bundles {
		if bundles[i].Points > crs.Caps.PerBundle {
			bundles[i].Points = crs.Caps.PerBundle
		}
		sum += bundles[i].Points
	}

	total := 0
	if sum > crs.Caps.Total {
		for i := range bundles {
			bundles[i].Points = bundles[i].Points * crs.Caps.Total / sum
			bundles[i].Explanation.Threshold += fmt.Sprintf("; scaled to total cap %d", crs.Caps.Total)
		}
	}
	for _, b := range bundles {
		total += b.Points
		*factors = append(*factors, b)
	}
	return total
}

func transferBundle(code, rulePath string, rows []configbundle.TransferRow, input string, satisfied func(configbundle.TransferRow) bool) FactorScore {
	f := FactorScore{
		Code: code,
		Explanation: Explanation{
			Code:      code,
			RulePath:  rulePath,
			Input:     input,
			Threshold: "no row satisfied",
		},
	}
	for _, row := range rows {
		if !satisfied(row) {
			continue
		}
		if row.Points > f.Points {
			f.Points = row.Points
			f.Explanation.Threshold = fmt.Sprintf("row worth %d", row.Points)
		}
	}
	return f
}

func scoreProvincialNomination(crs configbundle.CRSConfig, p profile.Profile) FactorScore {
	f := FactorScore{
		Code: FactorProvincialNomination,
		Explanation: Explanation{
			Code:     FactorProvincialNomination,
			RulePath: "crs_additional.provincial_nomination",
			Input:    fmt.Sprintf("nominated=%t", p.Status.ProvincialNomination),
		},
	}
	if p.Status.ProvincialNomination {
		f.Points = crs.Additional.ProvincialNomination
		f.Explanation.Threshold = "nomination present"
	}
	return f
}

func scoreSibling(crs configbundle.CRSConfig, p profile.Profile) FactorScore {
	f := FactorScore{
		Code: FactorSiblingInCanada,
		Explanation: Explanation{
			Code:     FactorSiblingInCanada,
			RulePath: "crs_additional.sibling_in_canada",
			Input:    fmt.Sprintf("sibling=%t", p.Family.SiblingInCanada),
		},
	}
	if p.Family.SiblingInCanada {
		f.Points = crs.Additional.SiblingInCanada
		f.Explanation.Threshold = "sibling present"
	}
	return f
}

// scoreFrench awards the French bonus when all French skills reach NCLC 7.
// The tier depends on English ability across all four skills.
func scoreFrench(crs configbundle.CRSConfig, p profile.Profile) FactorScore {
	f := FactorScore{
		Code: FactorFrench,
		Explanation: Explanation{
			Code:     FactorFrench,
			RulePath: "crs_additional.french",
		},
	}
	french, english := p.Language.Second, p.Language.First
	if p.Language.FrenchFirst {
		french, english = p.Language.First, p.Language.Second
	}
	frenchMin := french.MinCLB()
	f.Explanation.Input = fmt.Sprintf("french_min=%d english_min=%d", frenchMin, english.MinCLB())
	if frenchMin < 7 {
		f.Explanation.Threshold = "french below NCLC 7"
		return f
	}
	if english.MinCLB() >= 5 {
		f.Points = crs.Additional.French.NCLC7EnglishCLB5Plus
		f.Explanation.Threshold = "NCLC 7+ with english CLB 5+"
	} else {
		f.Points = crs.Additional.French.NCLC7EnglishCLB4OrLess
		f.Explanation.Threshold = "NCLC 7+ with english CLB 4 or less"
	}
	return f
}

func scoreCanadianStudy(crs configbundle.CRSConfig, p profile.Profile) FactorScore {
	years := p.Education.CanadianStudyYears
	f := FactorScore{
		Code: FactorCanadianStudy,
		Explanation: Explanation{
			Code:      FactorCanadianStudy,
			RulePath:  "crs_additional.canadian_study",
			Input:     fmt.Sprintf("years=%d", years),
			Threshold: "below minimum years",
		},
	}
	for _, band := range crs.Additional.CanadianStudy {
		if years >= band.MinYears {
			f.Points = band.Points
			f.Explanation.Threshold = fmt.Sprintf("min_years %d", band.MinYears)
			return f
		}
	}
	return f
}

func scoreJobOffer(crs configbundle.CRSConfig, p profile.Profile) FactorScore {
	f := FactorScore{
		Code: FactorJobOffer,
		Explanation: Explanation{
			Code:     FactorJobOffer,
			RulePath: "crs_additional.job_offer",
			Input:    fmt.Sprintf("has_offer=%t category=%s", p.Employment.HasJobOffer, p.Employment.JobOfferTEERCategory),
		},
	}
	if !p.Employment.HasJobOffer {
		f.Explanation.Threshold = "no job offer"
		return f
	}
	points, ok := crs.Additional.JobOffer[p.Employment.JobOfferTEERCategory]
	if !ok {
		f.Explanation.Threshold = "category not awarded"
		return f
	}
	f.Points = points
	f.Explanation.Threshold = fmt.Sprintf("category %s", p.Employment.JobOfferTEERCategory)
	return f
}

func pick(single, withSpouse int, spouse bool) int {
	if spouse {
		return withSpouse
	}
	return single
}

func clbStr(v *int) string {
	if v == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *v)
}
