// Package profile defines the canonical candidate profile: the single typed
// representation every engine consumes. Intake answers are mapped onto it
// once; downstream engines never read raw intake payloads.
//
// Missing values are explicit (nil pointers), never silently defaulted. The
// one exception is family size, where FamilySizeOrDefault applies the
// documented default of 1.
package profile

import (
	"encoding/json"
	"time"
)

// Profile is an immutable snapshot of a candidate. Treat it as a value;
// engines must not mutate it.
type Profile struct {
	Personal   Personal   `json:"personal"`
	Language   Language   `json:"language"`
	Education  Education  `json:"education"`
	Work       Work       `json:"work"`
	Funds      Funds      `json:"funds"`
	Status     Status     `json:"status"`
	Family     Family     `json:"family"`
	Employment Employment `json:"employment"`
	Medical    Medical    `json:"medical"`
	Spouse     *Spouse    `json:"spouse,omitempty"`
}

type Personal struct {
	GivenName           string `json:"given_name"`
	FamilyName          string `json:"family_name"`
	DateOfBirth         string `json:"date_of_birth,omitempty"` // ISO date
	Citizenship         string `json:"citizenship,omitempty"`
	MaritalStatus       string `json:"marital_status,omitempty"`
	FamilySize          *int   `json:"family_size,omitempty"`
	DestinationProvince string `json:"destination_province,omitempty"`
}

// SkillScores carries raw per-skill test scores as reported by the test
// provider, before CLB conversion.
type SkillScores struct {
	Listening float64 `json:"listening,omitempty"`
	Speaking  float64 `json:"speaking,omitempty"`
	Reading   float64 `json:"reading,omitempty"`
	Writing   float64 `json:"writing,omitempty"`
}

// LanguageTest carries per-skill CLB levels for one test sitting. When only
// raw scores are recorded, the rules engine converts them to CLB levels using
// the conversion tables in the config bundle.
type LanguageTest struct {
	TestType     string       `json:"test_type,omitempty"`
	ListeningCLB *int         `json:"listening_clb,omitempty"`
	SpeakingCLB  *int         `json:"speaking_clb,omitempty"`
	ReadingCLB   *int         `json:"reading_clb,omitempty"`
	WritingCLB   *int         `json:"writing_clb,omitempty"`
	Scores       *SkillScores `json:"scores,omitempty"`
	ExpiresAt    string       `json:"expires_at,omitempty"` // ISO date
}

type Language struct {
	First       *LanguageTest `json:"first,omitempty"`
	Second      *LanguageTest `json:"second,omitempty"`
	FrenchFirst bool          `json:"french_first,omitempty"`
}

type Education struct {
	HighestLevel       string `json:"highest_level,omitempty"`
	CanadianStudyYears int    `json:"canadian_study_years,omitempty"`
}

// WorkExperience is one employment record. Months is declared explicitly;
// StartDate and EndDate locate the record in time for recency rules.
type WorkExperience struct {
	Occupation string `json:"occupation,omitempty"`
	TEER       *int   `json:"teer,omitempty"`
	Canadian   bool   `json:"canadian,omitempty"`
	Months     int    `json:"months,omitempty"`
	StartDate  string `json:"start_date,omitempty"` // ISO date
	EndDate    string `json:"end_date,omitempty"`   // ISO date, empty while ongoing
}

type Work struct {
	Experiences []WorkExperience `json:"experiences,omitempty"`
}

// MarshalJSON adds the derived aggregates so dotted-path consumers keep
// resolving work.canadian_months and work.foreign_months.
func (w Work) MarshalJSON() ([]byte, error) {
	type alias Work
	return json.Marshal(struct {
		alias
		CanadianMonths int `json:"canadian_months"`
		ForeignMonths  int `json:"foreign_months"`
	}{alias(w), w.CanadianMonths(), w.ForeignMonths()})
}

// CanadianMonths sums months across Canadian records.
func (w Work) CanadianMonths() int {
	total := 0
	for _, e := range w.Experiences {
		if e.Canadian {
			total += e.Months
		}
	}
	return total
}

// ForeignMonths sums months across non-Canadian records.
func (w Work) ForeignMonths() int {
	total := 0
	for _, e := range w.Experiences {
		if !e.Canadian {
			total += e.Months
		}
	}
	return total
}

// EndedWithin reports whether the record ended inside the last N years as of
// the given instant. Records with no end date count as ongoing; records with
// an unparseable end date do not count.
func (e WorkExperience) EndedWithin(years int, asOf time.Time) bool {
	if e.EndDate == "" {
		return true
	}
	end, err := time.Parse("2006-01-02", e.EndDate)
	if err != nil {
		return false
	}
	return !end.Before(asOf.AddDate(-years, 0, 0))
}

type Funds struct {
	Amount *int `json:"amount,omitempty"`
}

type Status struct {
	ProvincialNomination bool `json:"provincial_nomination,omitempty"`
}

type Family struct {
	SiblingInCanada bool `json:"sibling_in_canada,omitempty"`
}

type Employment struct {
	HasJobOffer                bool   `json:"has_job_offer,omitempty"`
	JobOfferTEERCategory       string `json:"job_offer_teer_category,omitempty"`
	CertificateOfQualification bool   `json:"certificate_of_qualification,omitempty"`
}

type Medical struct {
	ExamDate  string `json:"exam_date,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"` // ISO date
}

// Spouse holds accompanying spouse factors. Nil when the candidate has no
// accompanying spouse.
type Spouse struct {
	EducationLevel    string        `json:"education_level,omitempty"`
	LanguageTest      *LanguageTest `json:"language_test,omitempty"`
	CanadianWorkYears int           `json:"canadian_work_years,omitempty"`
}

// FamilySizeOrDefault returns the declared family size, defaulting to 1.
func (p Profile) FamilySizeOrDefault() int {
	if p.Personal.FamilySize != nil && *p.Personal.FamilySize > 0 {
		return *p.Personal.FamilySize
	}
	return 1
}

// HasAccompanyingSpouse reports whether spouse factors apply.
func (p Profile) HasAccompanyingSpouse() bool {
	if p.Spouse == nil {
		return false
	}
	switch p.Personal.MaritalStatus {
	case "married", "common_law":
		return true
	}
	return false
}

// Age computes the candidate's age in whole years as of the given instant.
// Returns -1 when the date of birth is missing or unparseable.
func (p Profile) Age(asOf time.Time) int {
	if p.Personal.DateOfBirth == "" {
		return -1
	}
	dob, err := time.Parse("2006-01-02", p.Personal.DateOfBirth)
	if err != nil {
		return -1
	}
	years := asOf.Year() - dob.Year()
	if asOf.YearDay() < dob.YearDay() {
		years--
	}
	return years
}

// MinCLB returns the lowest per-skill CLB of a test, or -1 when any skill is
// missing. Program thresholds apply to the weakest skill.
func (t *LanguageTest) MinCLB() int {
	if t == nil {
		return -1
	}
	skills := []*int{t.ListeningCLB, t.SpeakingCLB, t.ReadingCLB, t.WritingCLB}
	min := -1
	for _, s := range skills {
		if s == nil {
			return -1
		}
		if min == -1 || *s < min {
			min = *s
		}
	}
	return min
}

// MaxCLB returns the highest per-skill CLB of a test, or -1 when all skills
// are missing.
func (t *LanguageTest) MaxCLB() int {
	if t == nil {
		return -1
	}
	max := -1
	for _, s := range []*int{t.ListeningCLB, t.SpeakingCLB, t.ReadingCLB, t.WritingCLB} {
		if s != nil && *s > max {
			max = *s
		}
	}
	return max
}

// Best returns the language test with the higher weakest-skill CLB, or nil
// when no test is recorded. Program minimums apply to the best test.
func (l Language) Best() *LanguageTest {
	if l.Second.MinCLB() > l.First.MinCLB() {
		return l.Second
	}
	return l.First
}

// HasCanadianWork reports whether any Canadian work experience is declared.
func (p Profile) HasCanadianWork() bool {
	return p.Work.CanadianMonths() > 0
}

// Map converts the profile to its map form for dotted-path lookups by the
// document matrix and the autofill engine. The JSON round trip keeps the map
// in lockstep with the wire representation.
func (p Profile) Map() (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
