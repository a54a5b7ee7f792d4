package configbundle

// Config file structures for the versioned domain bundle. Every scoring
// table, threshold, template, mapping and plan the engines consume lives in
// these files; engine code contains no scoring constants.

// CRSConfig is parsed from crs.yaml.
type CRSConfig struct {
	Version         string                 `yaml:"version"`
	Caps            TransferCaps           `yaml:"caps"`
	Core            CoreFactors            `yaml:"core"`
	Spouse          SpouseFactors          `yaml:"spouse"`
	Transferability TransferabilityFactors `yaml:"transferability"`
	Additional      AdditionalFactors      `yaml:"additional"`
}

// TransferCaps bound skill-transferability points.
type TransferCaps struct {
	PerBundle int `yaml:"per_bundle"`
	Total     int `yaml:"total"`
}

// AgeBand awards points for an inclusive age range.
type AgeBand struct {
	Min        int `yaml:"min"`
	Max        int `yaml:"max"`
	WithSpouse int `yaml:"with_spouse"`
	Single     int `yaml:"single"`
}

// EducationPoints awards points for a credential level.
type EducationPoints struct {
	Level      string `yaml:"level"`
	WithSpouse int    `yaml:"with_spouse"`
	Single     int    `yaml:"single"`
}

// CLBRow awards per-skill points for meeting a CLB threshold. Rows are
// evaluated highest-threshold-first; the first satisfied row wins.
type CLBRow struct {
	MinCLB     int `yaml:"min_clb"`
	WithSpouse int `yaml:"with_spouse"`
	Single     int `yaml:"single"`
}

// SecondLanguageRow awards per-skill points for the second official language.
type SecondLanguageRow struct {
	MinCLB int `yaml:"min_clb"`
	Points int `yaml:"points"`
}

// YearsRow awards points for meeting a years-of-experience threshold.
type YearsRow struct {
	MinYears   int `yaml:"min_years"`
	WithSpouse int `yaml:"with_spouse"`
	Single     int `yaml:"single"`
}

// CoreFactors holds the core human capital tables.
type CoreFactors struct {
	AgeBands              []AgeBand           `yaml:"age_bands"`
	Education             []EducationPoints   `yaml:"education"`
	FirstLanguagePerSkill []CLBRow            `yaml:"first_language_per_skill"`
	SecondLanguage        []SecondLanguageRow `yaml:"second_language_per_skill"`
	SecondLanguageCap     int                 `yaml:"second_language_cap"`
	CanadianWork          []YearsRow          `yaml:"canadian_work"`
}

// SpousePoints awards spouse-factor points for a credential level.
type SpousePoints struct {
	Level  string `yaml:"level"`
	Points int    `yaml:"points"`
}

// SpouseCLBRow awards spouse per-skill language points.
type SpouseCLBRow struct {
	MinCLB int `yaml:"min_clb"`
	Points int `yaml:"points"`
}

// SpouseYearsRow awards spouse Canadian work points.
type SpouseYearsRow struct {
	MinYears int `yaml:"min_years"`
	Points   int `yaml:"points"`
}

// SpouseFactors holds the spouse/partner tables. Applied only when the
// principal applicant has an accompanying spouse.
type SpouseFactors struct {
	Education        []SpousePoints   `yaml:"education"`
	LanguagePerSkill []SpouseCLBRow   `yaml:"language_per_skill"`
	CanadianWork     []SpouseYearsRow `yaml:"canadian_work"`
}

// TransferRow is one row of a skill-transferability matrix. A row is
// satisfied when every populated dimension threshold is met; the satisfied
// row with the most points wins.
type TransferRow struct {
	Education        string `yaml:"education,omitempty"`
	MinForeignYears  int    `yaml:"min_foreign_years,omitempty"`
	MinCanadianYears int    `yaml:"min_canadian_years,omitempty"`
	MinCLB           int    `yaml:"min_clb,omitempty"`
	Points           int    `yaml:"points"`
}

// TransferabilityFactors holds the five transferability bundles.
type TransferabilityFactors struct {
	EducationLanguage       []TransferRow `yaml:"education_language"`
	EducationCanadianWork   []TransferRow `yaml:"education_canadian_work"`
	ForeignWorkLanguage     []TransferRow `yaml:"foreign_work_language"`
	ForeignWorkCanadianWork []TransferRow `yaml:"foreign_work_canadian_work"`
	CertificateLanguage     []TransferRow `yaml:"certificate_language"`
}

// FrenchBonus awards additional points for strong French proficiency,
// differentiated by English ability.
type FrenchBonus struct {
	NCLC7EnglishCLB4OrLess int `yaml:"nclc7_plus_and_english_clb4_or_less"`
	NCLC7EnglishCLB5Plus   int `yaml:"nclc7_plus_and_english_clb5_plus"`
}

// StudyBand awards points for years of Canadian study.
type StudyBand struct {
	MinYears int `yaml:"min_years"`
	Points   int `yaml:"points"`
}

// AdditionalFactors holds the additional points tables.
type AdditionalFactors struct {
	ProvincialNomination int            `yaml:"provincial_nomination"`
	SiblingInCanada      int            `yaml:"sibling_in_canada"`
	French               FrenchBonus    `yaml:"french"`
	CanadianStudy        []StudyBand    `yaml:"canadian_study"`
	JobOffer             map[string]int `yaml:"job_offer"`
}

// ProgramsConfig is parsed from programs.yaml.
type ProgramsConfig struct {
	Version  string        `yaml:"version"`
	Programs []ProgramRule `yaml:"programs"`
}

// ProgramRule holds the structural requirements for one program. Numeric
// thresholds live in language.yaml and work_experience.yaml; this file only
// declares which gates apply.
type ProgramRule struct {
	Code                       string `yaml:"code"`
	Label                      string `yaml:"label"`
	RequiresJobOffer           bool   `yaml:"requires_job_offer"`
	RequiresCertificateOrOffer bool   `yaml:"requires_certificate_or_offer"`
	UsesProofOfFunds           bool   `yaml:"uses_proof_of_funds"`
	MinEducationLevel          string `yaml:"min_education_level,omitempty"`
}

// CLBConversionRow maps a raw test score to a CLB level for one skill of one
// test. Rows are evaluated highest-score-first; the first satisfied row wins.
type CLBConversionRow struct {
	Test     string  `yaml:"test"`
	Skill    string  `yaml:"skill"`
	MinScore float64 `yaml:"min_score"`
	CLB      int     `yaml:"clb"`
}

// FSWLanguageMinimums is the single CLB floor applied to every skill.
type FSWLanguageMinimums struct {
	MinCLB int `yaml:"min_clb"`
}

// CECLanguageMinimums vary with the TEER bucket of the applicant's highest
// skilled Canadian occupation.
type CECLanguageMinimums struct {
	TEER01 int `yaml:"teer_0_1"`
	TEER23 int `yaml:"teer_2_3"`
}

// FSTLanguageMinimums hold the combined thresholds for speaking/listening and
// reading/writing.
type FSTLanguageMinimums struct {
	SpeakingListening int `yaml:"speaking_listening"`
	ReadingWriting    int `yaml:"reading_writing"`
}

// ProgramLanguageMinimums groups per-program language floors.
type ProgramLanguageMinimums struct {
	FSW FSWLanguageMinimums `yaml:"fsw"`
	CEC CECLanguageMinimums `yaml:"cec"`
	FST FSTLanguageMinimums `yaml:"fst"`
}

// LanguageConfig is parsed from language.yaml.
type LanguageConfig struct {
	Version           string                  `yaml:"version"`
	ExpiryWarningDays int                     `yaml:"expiry_warning_days"`
	ValidityMonths    int                     `yaml:"validity_months"`
	ProgramMinimums   ProgramLanguageMinimums `yaml:"program_minimums"`
	CLBConversion     []CLBConversionRow      `yaml:"clb_conversion"`
}

// FSWWorkRule requires one continuous skilled record of at least this length.
type FSWWorkRule struct {
	MinContinuousMonths int `yaml:"min_continuous_months"`
}

// CECWorkRule sums skilled Canadian months inside the recency window.
type CECWorkRule struct {
	MinCanadianMonths int `yaml:"min_canadian_months"`
	RecencyYears      int `yaml:"recency_years"`
}

// FSTWorkRule sums months across records in an eligible trade TEER.
type FSTWorkRule struct {
	MinMonths int `yaml:"min_months"`
}

// WorkExperienceConfig is parsed from work_experience.yaml.
type WorkExperienceConfig struct {
	Version       string      `yaml:"version"`
	EligibleTEERs []int       `yaml:"eligible_teers"`
	FSW           FSWWorkRule `yaml:"fsw"`
	CEC           CECWorkRule `yaml:"cec"`
	FST           FSTWorkRule `yaml:"fst"`
}

// FundsRow sets the required settlement funds for a family size. Family
// sizes above the largest row use the largest row plus PerExtraMember for
// each additional member.
type FundsRow struct {
	FamilySize int `yaml:"family_size"`
	Amount     int `yaml:"amount"`
}

// ProofOfFundsConfig is parsed from proof_of_funds.yaml. Programs listed in
// Exemptions skip the funds gate entirely.
type ProofOfFundsConfig struct {
	Version        string     `yaml:"version"`
	Currency       string     `yaml:"currency"`
	Amounts        []FundsRow `yaml:"amounts"`
	PerExtraMember int        `yaml:"per_extra_member"`
	Exemptions     []string   `yaml:"exemptions"`
}

// FieldDef defines one canonical intake field.
type FieldDef struct {
	ID         string `yaml:"id"`
	Label      string `yaml:"label"`
	DataPath   string `yaml:"data_path"`
	Type       string `yaml:"type"`
	Required   bool   `yaml:"required"`
	OptionsRef string `yaml:"options_ref,omitempty"`
}

// FieldsConfig is parsed from fields.yaml.
type FieldsConfig struct {
	Version string              `yaml:"version"`
	Fields  []FieldDef          `yaml:"fields"`
	Options map[string][]string `yaml:"options"`
}

// IntakeStep groups fields into one intake wizard step.
type IntakeStep struct {
	ID     string   `yaml:"id"`
	Title  string   `yaml:"title"`
	Fields []string `yaml:"fields"`
}

// IntakeTemplate defines an intake flow for a set of programs and plans.
// Empty Plans means the template applies to every plan.
type IntakeTemplate struct {
	ID                 string       `yaml:"id"`
	Label              string       `yaml:"label"`
	ApplicablePrograms []string     `yaml:"applicable_programs"`
	Plans              []string     `yaml:"plans"`
	Steps              []IntakeStep `yaml:"steps"`
}

// IntakeTemplatesConfig is parsed from intake_templates.yaml.
type IntakeTemplatesConfig struct {
	Version   string           `yaml:"version"`
	Templates []IntakeTemplate `yaml:"templates"`
}

// Condition is one clause of the closed requirement DSL. Field names either
// reference a field id from fields.yaml or a dotted profile path.
type Condition struct {
	Field string `yaml:"field"`
	Op    string `yaml:"op"`
	Value any    `yaml:"value"`
}

// Condition operators. The set is closed; validation rejects anything else.
const (
	OpEquals         = "equals"
	OpNotEquals      = "not_equals"
	OpGreaterThan    = "greater_than"
	OpGreaterOrEqual = "greater_or_equal"
	OpIn             = "in"
	OpNotIn          = "not_in"
)

// UnsourcedRef marks a requirement that has no authoritative source citation.
// Unsourced requirements surface as explanations, never as blockers.
const UnsourcedRef = "UNSOURCED"

// DocumentDef defines one checklist document.
type DocumentDef struct {
	ID           string      `yaml:"id"`
	Label        string      `yaml:"label"`
	Category     string      `yaml:"category"`
	Programs     []string    `yaml:"programs"`
	Required     bool        `yaml:"required"`
	RequiredWhen []Condition `yaml:"required_when"`
	SourceRef    string      `yaml:"source_ref"`
}

// DocumentsConfig is parsed from documents.yaml.
type DocumentsConfig struct {
	Version   string        `yaml:"version"`
	Documents []DocumentDef `yaml:"documents"`
}

// FormField is one fillable field of a government form.
type FormField struct {
	FieldID string `yaml:"field_id"`
	Label   string `yaml:"label"`
}

// FormDef defines one government form and its expected attachments.
type FormDef struct {
	FormID      string      `yaml:"form_id"`
	Title       string      `yaml:"title"`
	Fields      []FormField `yaml:"fields"`
	Attachments []string    `yaml:"attachments"`
}

// FormsConfig is parsed from forms.yaml.
type FormsConfig struct {
	Version string    `yaml:"version"`
	Forms   []FormDef `yaml:"forms"`
}

// Mapping source types. rule_engine is reserved for derived values and not
// yet implemented by the autofill engine.
const (
	SourceCanonicalProfile = "canonical_profile"
	SourceDocument         = "document"
	SourceConstant         = "constant"
	SourceRuleEngine       = "rule_engine"
)

// MappingSource tells the autofill engine where a form field value comes from.
type MappingSource struct {
	Type         string `yaml:"type"`
	Path         string `yaml:"path,omitempty"`
	DocumentType string `yaml:"document_type,omitempty"`
	Value        any    `yaml:"value,omitempty"`
}

// FieldMapping binds one form field to a value source.
type FieldMapping struct {
	FormID  string        `yaml:"form_id"`
	FieldID string        `yaml:"field_id"`
	Source  MappingSource `yaml:"source"`
}

// FormMappingsConfig is parsed from form_mappings.yaml.
type FormMappingsConfig struct {
	Version  string         `yaml:"version"`
	Mappings []FieldMapping `yaml:"mappings"`
}

// FormBundle groups the forms required for a program submission.
type FormBundle struct {
	ID      string   `yaml:"id"`
	Program string   `yaml:"program"`
	Forms   []string `yaml:"forms"`
	Active  bool     `yaml:"active"`
}

// FormBundlesConfig is parsed from form_bundles.yaml.
type FormBundlesConfig struct {
	Version string       `yaml:"version"`
	Bundles []FormBundle `yaml:"bundles"`
}

// PlanLimits holds the quota and feature gates for one billing plan.
// Zero limits mean unlimited.
type PlanLimits struct {
	MaxCases                int  `yaml:"max_cases"`
	MaxEvaluationsPerMonth  int  `yaml:"max_evaluations_per_month"`
	ExpressEntryEnabled     bool `yaml:"express_entry_enabled"`
	AssistedDraftsEnabled   bool `yaml:"assisted_drafts_enabled"`
	AgentEnabled            bool `yaml:"agent_enabled"`
	MinDaysBetweenAgentRuns int  `yaml:"min_days_between_agent_runs"`
}

// PlansConfig is parsed from plans.yaml.
type PlansConfig struct {
	Version     string                `yaml:"version"`
	DefaultPlan string                `yaml:"default_plan"`
	Plans       map[string]PlanLimits `yaml:"plans"`
}
