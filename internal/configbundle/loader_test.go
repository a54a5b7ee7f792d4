package configbundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

const shippedBundleDir = "../../config/domain"

type LoaderSuite struct {
	suite.Suite
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderSuite))
}

// copyBundle clones the shipped bundle into a temp dir so tests can corrupt
// individual files without touching the real configuration.
func (s *LoaderSuite) copyBundle() string {
	dir := s.T().TempDir()
	for _, name := range bundleFiles {
		data, err := os.ReadFile(filepath.Join(shippedBundleDir, name))
		s.Require().NoError(err)
		s.Require().NoError(os.WriteFile(filepath.Join(dir, name), data, 0o600))
	}
	return dir
}

func (s *LoaderSuite) TestLoadShippedBundle() {
	b, err := Load(shippedBundleDir)
	s.Require().NoError(err)

	s.NotEmpty(b.Hash())
	s.Len(b.FileHashes(), len(bundleFiles))
	s.Equal("2026.1", b.Version())

	s.Run("programs parsed", func() {
		fsw, ok := b.ProgramRuleByCode("FSW")
		s.Require().True(ok)
		s.True(fsw.UsesProofOfFunds)
		s.Equal("secondary", fsw.MinEducationLevel)

		fst, ok := b.ProgramRuleByCode("FST")
		s.Require().True(ok)
		s.True(fst.RequiresCertificateOrOffer)
	})

	s.Run("language thresholds parsed", func() {
		s.Equal(7, b.Language.ProgramMinimums.FSW.MinCLB)
		s.Equal(7, b.Language.ProgramMinimums.CEC.TEER01)
		s.Equal(5, b.Language.ProgramMinimums.CEC.TEER23)
		s.Equal(5, b.Language.ProgramMinimums.FST.SpeakingListening)
		s.Equal(4, b.Language.ProgramMinimums.FST.ReadingWriting)
		s.NotEmpty(b.Language.CLBConversion)
	})

	s.Run("work rules parsed", func() {
		s.Equal(12, b.WorkExperience.FSW.MinContinuousMonths)
		s.Equal(12, b.WorkExperience.CEC.MinCanadianMonths)
		s.Equal(3, b.WorkExperience.CEC.RecencyYears)
	})

	s.Run("funds exemptions parsed", func() {
		s.Equal([]string{"CEC"}, b.ProofOfFunds.Exemptions)
	})

	s.Run("crs tables parsed", func() {
		s.Equal(50, b.CRS.Caps.PerBundle)
		s.Equal(100, b.CRS.Caps.Total)
		s.NotEmpty(b.CRS.Core.AgeBands)
		s.Equal(600, b.CRS.Additional.ProvincialNomination)
	})

	s.Run("plan fallback uses default", func() {
		limits := b.PlanLimitsFor("no-such-plan")
		s.Equal(b.Plans.Plans["starter"], limits)
	})
}

func (s *LoaderSuite) TestHashIsStableAcrossLoads() {
	b1, err := Load(shippedBundleDir)
	s.Require().NoError(err)
	b2, err := Load(shippedBundleDir)
	s.Require().NoError(err)

	s.Equal(b1.Hash(), b2.Hash())
	s.Equal(b1.FileHashes(), b2.FileHashes())
}

func (s *LoaderSuite) TestHashChangesWhenFileChanges() {
	dir := s.copyBundle()
	b1, err := Load(dir)
	s.Require().NoError(err)

	path := filepath.Join(dir, FileLanguage)
	s.Require().NoError(os.WriteFile(path, []byte("version: \"2026.2\"\nexpiry_warning_days: 60\nvalidity_months: 24\n"), 0o600))

	b2, err := Load(dir)
	s.Require().NoError(err)
	s.NotEqual(b1.Hash(), b2.Hash())
}

func (s *LoaderSuite) TestMissingFile() {
	dir := s.copyBundle()
	s.Require().NoError(os.Remove(filepath.Join(dir, FilePlans)))

	_, err := Load(dir)
	s.Require().Error(err)

	var cfgErr *ConfigError
	s.Require().ErrorAs(err, &cfgErr)
	s.Equal(KindMissingFile, cfgErr.Kind)
	s.Equal(FilePlans, cfgErr.Path)
}

func (s *LoaderSuite) TestMalformedYAML() {
	dir := s.copyBundle()
	s.Require().NoError(os.WriteFile(filepath.Join(dir, FileCRS), []byte("caps: [not: closed"), 0o600))

	_, err := Load(dir)
	s.Require().Error(err)

	var cfgErr *ConfigError
	s.Require().ErrorAs(err, &cfgErr)
	s.Equal(KindMalformedYAML, cfgErr.Kind)
	s.Equal(FileCRS, cfgErr.Path)
}

func (s *LoaderSuite) TestBrokenReferenceRejected() {
	dir := s.copyBundle()
	mappings := `version: "2026.1"
mappings:
  - form_id: NO_SUCH_FORM
    field_id: given_name
    source: { type: canonical_profile, path: personal.given_name }
`
	s.Require().NoError(os.WriteFile(filepath.Join(dir, FileFormMappings), []byte(mappings), 0o600))

	_, err := Load(dir)
	s.Require().Error(err)

	var cfgErr *ConfigError
	s.Require().ErrorAs(err, &cfgErr)
	s.Equal(KindBrokenReference, cfgErr.Kind)
	s.Equal(FileFormMappings, cfgErr.Path)
}

func (s *LoaderSuite) TestUnknownConditionOperatorRejected() {
	dir := s.copyBundle()
	docs := `version: "2026.1"
documents:
  - id: passport
    label: Valid passport
    category: identity
    programs: [FSW]
    required_when:
      - { field: marital_status, op: matches_regex, value: ".*" }
    source_ref: "somewhere"
`
	s.Require().NoError(os.WriteFile(filepath.Join(dir, FileDocuments), []byte(docs), 0o600))

	_, err := Load(dir)
	s.Require().Error(err)

	var cfgErr *ConfigError
	s.Require().ErrorAs(err, &cfgErr)
	s.Equal(KindSchema, cfgErr.Kind)
	s.Contains(cfgErr.Detail, "matches_regex")
}

func (s *LoaderSuite) TestUnknownDefaultPlanRejected() {
	dir := s.copyBundle()
	plans := `version: "2026.1"
default_plan: gold
plans:
  starter:
    max_cases: 10
`
	s.Require().NoError(os.WriteFile(filepath.Join(dir, FilePlans), []byte(plans), 0o600))

	_, err := Load(dir)
	s.Require().Error(err)

	var cfgErr *ConfigError
	s.Require().ErrorAs(err, &cfgErr)
	s.Equal(KindBrokenReference, cfgErr.Kind)
}

func (s *LoaderSuite) TestUnknownFundsExemptionRejected() {
	dir := s.copyBundle()
	funds := `version: "2026.1"
currency: CAD
amounts:
  - { family_size: 1, amount: 14690 }
per_extra_member: 3958
exemptions: [PNP]
`
	s.Require().NoError(os.WriteFile(filepath.Join(dir, FileProofOfFunds), []byte(funds), 0o600))

	_, err := Load(dir)
	s.Require().Error(err)

	var cfgErr *ConfigError
	s.Require().ErrorAs(err, &cfgErr)
	s.Equal(KindBrokenReference, cfgErr.Kind)
	s.Equal(FileProofOfFunds, cfgErr.Path)
}

func (s *LoaderSuite) TestCacheReload() {
	dir := s.copyBundle()
	cache := NewCache()

	b1, err := cache.Get(dir)
	s.Require().NoError(err)

	// Same pointer until invalidated
	b2, err := cache.Get(dir)
	s.Require().NoError(err)
	s.Same(b1, b2)

	path := filepath.Join(dir, FileLanguage)
	s.Require().NoError(os.WriteFile(path, []byte("version: \"2026.2\"\nexpiry_warning_days: 45\nvalidity_months: 24\n"), 0o600))

	cache.Invalidate(dir)
	b3, err := cache.Get(dir)
	s.Require().NoError(err)
	s.NotEqual(b1.Hash(), b3.Hash())
	s.Equal(45, b3.Language.ExpiryWarningDays)
}

func (s *LoaderSuite) TestCurrentPointerSwap() {
	b1, err := Load(shippedBundleDir)
	s.Require().NoError(err)

	SetCurrent(b1)
	s.Same(b1, Current())

	b2, err := Load(shippedBundleDir)
	s.Require().NoError(err)
	SetCurrent(b2)
	s.Same(b2, Current())
}
