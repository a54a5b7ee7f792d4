// Package configbundle loads, validates and fingerprints the versioned
// domain configuration that drives every deterministic engine: scoring
// tables, program thresholds, intake templates, document matrices, form
// definitions and billing plans.
//
// A Bundle is immutable after Load. Callers that need hot reload hold the
// current bundle behind an atomic pointer (see Current/SetCurrent) and
// capture it once at the start of a request so a reload mid-request cannot
// produce mixed reads.
package configbundle

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync/atomic"
)

// Bundle is one coherent, validated set of domain configuration files.
type Bundle struct {
	CRS             CRSConfig
	Programs        ProgramsConfig
	Language        LanguageConfig
	WorkExperience  WorkExperienceConfig
	ProofOfFunds    ProofOfFundsConfig
	Fields          FieldsConfig
	IntakeTemplates IntakeTemplatesConfig
	Documents       DocumentsConfig
	Forms           FormsConfig
	FormMappings    FormMappingsConfig
	FormBundles     FormBundlesConfig
	Plans           PlansConfig

	hash       string
	fileHashes map[string]string
}

// Hash returns the bundle fingerprint: SHA-256 over the sorted
// (filename, bytes) pairs of every file in the bundle. Two directories with
// identical bytes produce identical hashes regardless of load order.
func (b *Bundle) Hash() string { return b.hash }

// FileHashes returns per-file SHA-256 digests keyed by filename.
func (b *Bundle) FileHashes() map[string]string {
	out := make(map[string]string, len(b.fileHashes))
	for k, v := range b.fileHashes {
		out[k] = v
	}
	return out
}

// Version returns the document bundle version used as source_bundle_version
// in readiness results.
func (b *Bundle) Version() string { return b.Documents.Version }

// FieldByID returns the field definition for an id.
func (b *Bundle) FieldByID(fieldID string) (FieldDef, bool) {
	for _, f := range b.Fields.Fields {
		if f.ID == fieldID {
			return f, true
		}
	}
	return FieldDef{}, false
}

// FormByID returns the form definition for a form id.
func (b *Bundle) FormByID(formID string) (FormDef, bool) {
	for _, f := range b.Forms.Forms {
		if f.FormID == formID {
			return f, true
		}
	}
	return FormDef{}, false
}

// ProgramRuleByCode returns the eligibility rule for a program code.
func (b *Bundle) ProgramRuleByCode(code string) (ProgramRule, bool) {
	for _, p := range b.Programs.Programs {
		if p.Code == code {
			return p, true
		}
	}
	return ProgramRule{}, false
}

// PlanLimitsFor resolves a plan name to its limits, falling back to the
// default plan for unknown names.
func (b *Bundle) PlanLimitsFor(plan string) PlanLimits {
	if limits, ok := b.Plans.Plans[plan]; ok {
		return limits
	}
	return b.Plans.Plans[b.Plans.DefaultPlan]
}

func computeBundleHash(files map[string][]byte) (string, map[string]string) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	perFile := make(map[string]string, len(files))
	for _, name := range names {
		h.Write([]byte(name))
		h.Write(files[name])
		fh := sha256.Sum256(files[name])
		perFile[name] = hex.EncodeToString(fh[:])
	}
	return hex.EncodeToString(h.Sum(nil)), perFile
}

// current holds the process-wide active bundle. Readers capture it once per
// request; SetCurrent swaps it atomically on reload.
var current atomic.Pointer[Bundle]

// Current returns the active bundle, or nil before the first SetCurrent.
func Current() *Bundle { return current.Load() }

// SetCurrent atomically replaces the active bundle.
func SetCurrent(b *Bundle) { current.Store(b) }
