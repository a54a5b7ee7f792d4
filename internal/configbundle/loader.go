package configbundle

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// File names that make up a bundle. All are required.
const (
	FileCRS             = "crs.yaml"
	FilePrograms        = "programs.yaml"
	FileLanguage        = "language.yaml"
	FileWorkExperience  = "work_experience.yaml"
	FileProofOfFunds    = "proof_of_funds.yaml"
	FileFields          = "fields.yaml"
	FileIntakeTemplates = "intake_templates.yaml"
	FileDocuments       = "documents.yaml"
	FileForms           = "forms.yaml"
	FileFormMappings    = "form_mappings.yaml"
	FileFormBundles     = "form_bundles.yaml"
	FilePlans           = "plans.yaml"
)

var bundleFiles = []string{
	FileCRS,
	FilePrograms,
	FileLanguage,
	FileWorkExperience,
	FileProofOfFunds,
	FileFields,
	FileIntakeTemplates,
	FileDocuments,
	FileForms,
	FileFormMappings,
	FileFormBundles,
	FilePlans,
}

// Load reads, parses and validates a bundle directory. Any failure returns a
// *ConfigError; a partially valid bundle is never returned.
func Load(dir string) (*Bundle, error) {
	raw := make(map[string][]byte, len(bundleFiles))
	for _, name := range bundleFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, newConfigError(KindMissingFile, name, "required bundle file is missing")
			}
			return nil, wrapConfigError(err, KindMissingFile, name, "cannot read bundle file")
		}
		raw[name] = data
	}

	b := &Bundle{}
	parses := []struct {
		name string
		dst  any
	}{
		{FileCRS, &b.CRS},
		{FilePrograms, &b.Programs},
		{FileLanguage, &b.Language},
		{FileWorkExperience, &b.WorkExperience},
		{FileProofOfFunds, &b.ProofOfFunds},
		{FileFields, &b.Fields},
		{FileIntakeTemplates, &b.IntakeTemplates},
		{FileDocuments, &b.Documents},
		{FileForms, &b.Forms},
		{FileFormMappings, &b.FormMappings},
		{FileFormBundles, &b.FormBundles},
		{FilePlans, &b.Plans},
	}
	for _, p := range parses {
		if err := yaml.Unmarshal(raw[p.name], p.dst); err != nil {
			return nil, wrapConfigError(err, KindMalformedYAML, p.name, "invalid yaml")
		}
	}

	if err := validate(b); err != nil {
		return nil, err
	}

	b.hash, b.fileHashes = computeBundleHash(raw)
	return b, nil
}
