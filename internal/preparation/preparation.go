// Package preparation assembles submission packages: the drafted forms,
// their attachments, every remaining gap and a deterministic content hash.
// A package built twice from the same inputs is byte-identical, hash
// included; the evaluation timestamp is excluded from the hash.
package preparation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"boreal/internal/autofill"
	"boreal/internal/readiness"
	"boreal/pkg/requestcontext"
)

// PackageVersion is the wire version of the package layout.
const PackageVersion = "v1"

// EngineVersion identifies the packaging logic itself.
const EngineVersion = "1.0.0"

// Field statuses.
const (
	FieldMapped  = "mapped"
	FieldMissing = "missing"
)

// Attachment statuses.
const (
	AttachmentAvailable = "available"
	AttachmentMissing   = "missing"
)

// PackageField is one form field in the package. Values never travel in the
// package itself, only a preview string; the filled forms stay with the
// autofill result.
type PackageField struct {
	FieldCode    string `json:"field_code"`
	Label        string `json:"label"`
	Source       string `json:"source,omitempty"`
	ValuePreview string `json:"value_preview,omitempty"`
	Status       string `json:"status"`
	Notes        string `json:"notes,omitempty"`
}

// PackageAttachment records whether an expected attachment is on file and
// where the requirement behind it is defined.
type PackageAttachment struct {
	DocCode     string `json:"doc_code"`
	Status      string `json:"status"`
	EvidenceRef string `json:"evidence_ref,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// PackageForm is one form with resolved fields and attachments.
type PackageForm struct {
	FormCode    string              `json:"form_code"`
	FormName    string              `json:"form_name"`
	Fields      []PackageField      `json:"fields"`
	Attachments []PackageAttachment `json:"attachments"`
}

// GapsSummary splits the gaps by whether they block submission.
type GapsSummary struct {
	Blocking    []string `json:"blocking"`
	NonBlocking []string `json:"non_blocking"`
}

// ReadinessReference ties the package back to the verification it was built
// under.
type ReadinessReference struct {
	ReadinessVerdict  string `json:"readiness_verdict"`
	EvidenceBundleRef string `json:"evidence_bundle_ref"`
}

// PackageAudit carries the config provenance for compliance review.
type PackageAudit struct {
	ConfigHashes        []string `json:"config_hashes"`
	ConsultedConfigs    []string `json:"consulted_configs"`
	SourceBundleVersion string   `json:"source_bundle_version"`
}

// Package is the complete submission package.
type Package struct {
	PackageVersion     string             `json:"package_version"`
	CaseID             string             `json:"case_id"`
	TenantID           string             `json:"tenant_id"`
	Program            string             `json:"program_code"`
	BundleID           string             `json:"bundle_id"`
	Forms              []PackageForm      `json:"forms"`
	Gaps               []string           `json:"gaps"`
	GapsSummary        GapsSummary        `json:"gaps_summary"`
	ReadinessReference ReadinessReference `json:"readiness_reference"`
	Audit              PackageAudit       `json:"audit"`
	EngineVersions     []string           `json:"engine_versions"`
	ConfigHash         string             `json:"config_hash"`
	CreatedAt          time.Time          `json:"evaluation_timestamp"`
	DeterministicHash  string             `json:"deterministic_hash"`
}

// BuildInput carries the upstream engine outputs a package is built from.
type BuildInput struct {
	Autofill  autofill.Result
	Readiness readiness.Report
	Evidence  readiness.EvidenceBundle
	Documents []readiness.UploadedDocument
}

// Builder assembles packages and assisted drafts.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// BuildPackage assembles the package. Forms sort by form code and fields by
// field code so the deterministic hash is insensitive to upstream ordering.
func (b *Builder) BuildPackage(ctx context.Context, in BuildInput) (Package, error) {
	pkg := Package{
		PackageVersion: PackageVersion,
		CaseID:         in.Readiness.CaseID,
		TenantID:       in.Readiness.TenantID,
		Program:        in.Readiness.Program,
		BundleID:       in.Autofill.BundleID,
		ConfigHash:     in.Readiness.ConfigHash,
		CreatedAt:      requestcontext.Now(ctx).UTC(),
		ReadinessReference: ReadinessReference{
			ReadinessVerdict:  in.Evidence.VerificationResult.Verdict,
			EvidenceBundleRef: fmt.Sprintf("evidence/%s/%s", in.Readiness.CaseID, in.Readiness.ConfigHash),
		},
		Audit: PackageAudit{
			ConfigHashes:        in.Evidence.ConfigHashes,
			ConsultedConfigs:    in.Readiness.ConsultedConfigs,
			SourceBundleVersion: in.Readiness.SourceBundleVersion,
		},
		EngineVersions: []string{
			"prep:" + EngineVersion,
			"readiness:" + in.Readiness.EngineVersion,
			"verification:" + in.Evidence.VerificationEngineVersion,
		},
	}

	uploads := map[string]readiness.UploadedDocument{}
	for _, doc := range in.Documents {
		uploads[doc.DocumentType] = doc
	}
	requirements := map[string]readiness.RequirementStatus{}
	for _, req := range in.Readiness.Documents {
		requirements[req.ID] = req
	}

	for _, draft := range in.Autofill.Forms {
		form := PackageForm{FormCode: draft.FormID, FormName: draft.Title}
		for _, fv := range draft.Fields {
			field := PackageField{
				FieldCode:    fv.FieldID,
				Label:        fv.Label,
				Source:       fv.Source,
				ValuePreview: preview(fv.Value),
				Status:       FieldMapped,
				Notes:        fv.Note,
			}
			if fv.Value == nil {
				field.Status = FieldMissing
				gap := fmt.Sprintf("field:%s:%s", draft.FormID, fv.FieldID)
				pkg.Gaps = append(pkg.Gaps, gap)
				// An unfilled form field always blocks submission.
				pkg.GapsSummary.Blocking = append(pkg.GapsSummary.Blocking, gap)
			}
			form.Fields = append(form.Fields, field)
		}
		sort.Slice(form.Fields, func(i, j int) bool { return form.Fields[i].FieldCode < form.Fields[j].FieldCode })

		for _, docType := range draft.Attachments {
			att := PackageAttachment{DocCode: docType, Status: AttachmentMissing}
			if req, ok := requirements[docType]; ok {
				att.EvidenceRef = req.ConfigRef
			}
			if upload, ok := uploads[docType]; ok {
				att.Status = AttachmentAvailable
				att.Filename = upload.Filename
			} else {
				gap := fmt.Sprintf("attachment:%s:%s", draft.FormID, docType)
				pkg.Gaps = append(pkg.Gaps, gap)
				// A missing attachment blocks only when readiness requires the
				// document for this candidate.
				if req, ok := requirements[docType]; !ok || req.Required {
					pkg.GapsSummary.Blocking = append(pkg.GapsSummary.Blocking, gap)
				} else {
					pkg.GapsSummary.NonBlocking = append(pkg.GapsSummary.NonBlocking, gap)
				}
			}
			form.Attachments = append(form.Attachments, att)
		}
		sort.Slice(form.Attachments, func(i, j int) bool {
			return form.Attachments[i].DocCode < form.Attachments[j].DocCode
		})
		pkg.Forms = append(pkg.Forms, form)
	}
	sort.Slice(pkg.Forms, func(i, j int) bool { return pkg.Forms[i].FormCode < pkg.Forms[j].FormCode })
	sort.Strings(pkg.Gaps)
	sort.Strings(pkg.GapsSummary.Blocking)
	sort.Strings(pkg.GapsSummary.NonBlocking)

	hash, err := deterministicHash(pkg)
	if err != nil {
		return Package{}, err
	}
	pkg.DeterministicHash = hash
	return pkg, nil
}

// preview renders a short display form of a field value. Full values stay in
// the autofill result.
func preview(v any) string {
	if v == nil {
		return ""
	}
	s := fmt.Sprintf("%v", v)
	if len(s) > 64 {
		return s[:61] + "..."
	}
	return s
}

// deterministicHash is the SHA-256 of the package's canonical JSON: sorted
// keys, compact separators, the hash itself and the evaluation timestamp
// excluded.
func deterministicHash(pkg Package) (string, error) {
	raw, err := json.Marshal(pkg)
	if err != nil {
		return "", err
	}
	var canonical map[string]any
	if err := json.Unmarshal(raw, &canonical); err != nil {
		return "", err
	}
	delete(canonical, "deterministic_hash")
	delete(canonical, "evaluation_timestamp")

	// encoding/json sorts map keys and emits compact separators.
	normalized, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}
