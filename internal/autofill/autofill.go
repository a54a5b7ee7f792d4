// Package autofill drafts government form field values from the canonical
// profile, uploaded documents and configured constants. It never invents a
// value: anything it cannot resolve is left empty with a note saying why.
package autofill

import (
	"fmt"

	"boreal/internal/configbundle"
	"boreal/internal/profile"
	dErrors "boreal/pkg/domain-errors"
)

// FieldValue is one drafted form field. Value is nil when unresolved and
// Note then explains what was missing.
type FieldValue struct {
	FieldID string `json:"field_id"`
	Label   string `json:"label"`
	Value   any    `json:"value"`
	Source  string `json:"source,omitempty"`
	Note    string `json:"note,omitempty"`
}

// FormDraft is one drafted form plus its expected attachments.
type FormDraft struct {
	FormID      string       `json:"form_id"`
	Title       string       `json:"title"`
	Fields      []FieldValue `json:"fields"`
	Attachments []string     `json:"attachments"`
}

// Result is the drafted form set for one bundle.
type Result struct {
	BundleID      string      `json:"bundle_id"`
	Program       string      `json:"program"`
	Forms         []FormDraft `json:"forms"`
	ConfigVersion string      `json:"config_version"`
}

// Engine drafts forms against one loaded config bundle.
type Engine struct {
	bundle *configbundle.Bundle
}

func NewEngine(bundle *configbundle.Bundle) *Engine {
	return &Engine{bundle: bundle}
}

// Fill drafts every form of a bundle. bundleID may be empty, in which case
// the first active bundle for the program is used. documents maps an
// uploaded document type to the value it contributes (a passport number, a
// certificate id).
func (e *Engine) Fill(program, bundleID string, profileMap map[string]any, documents map[string]any) (Result, error) {
	formBundle, err := e.pickBundle(program, bundleID)
	if err != nil {
		return Result{}, err
	}

	out := Result{
		BundleID:      formBundle.ID,
		Program:       formBundle.Program,
		ConfigVersion: e.bundle.Version(),
	}
	for _, formID := range formBundle.Forms {
		form, ok := e.bundle.FormByID(formID)
		if !ok {
			return Result{}, dErrors.Newf(dErrors.CodeInternal, "bundle %s references unknown form %s", formBundle.ID, formID)
		}
		out.Forms = append(out.Forms, e.fillForm(form, profileMap, documents))
	}
	return out, nil
}

func (e *Engine) pickBundle(program, bundleID string) (configbundle.FormBundle, error) {
	if bundleID != "" {
		for _, b := range e.bundle.FormBundles.Bundles {
			if b.ID == bundleID {
				if !b.Active {
					return configbundle.FormBundle{}, dErrors.Newf(dErrors.CodeInvalidInput, "form bundle %s is inactive", bundleID)
				}
				return b, nil
			}
		}
		return configbundle.FormBundle{}, dErrors.Newf(dErrors.CodeNotFound, "unknown form bundle %s", bundleID)
	}
	for _, b := range e.bundle.FormBundles.Bundles {
		if b.Program == program && b.Active {
			return b, nil
		}
	}
	return configbundle.FormBundle{}, dErrors.Newf(dErrors.CodeNotFound, "no active form bundle for program %s", program)
}

func (e *Engine) fillForm(form configbundle.FormDef, profileMap map[string]any, documents map[string]any) FormDraft {
	draft := FormDraft{
		FormID:      form.FormID,
		Title:       form.Title,
		Attachments: form.Attachments,
	}
	for _, field := range form.Fields {
		fv := FieldValue{FieldID: field.FieldID, Label: field.Label}
		mapping, ok := e.mappingFor(form.FormID, field.FieldID)
		if !ok {
			fv.Note = "no mapping configured"
		} else {
			fv.Source = mapping.Source.Type
			fv.Value, fv.Note = e.resolve(mapping.Source, profileMap, documents)
		}
		draft.Fields = append(draft.Fields, fv)
	}
	return draft
}

func (e *Engine) mappingFor(formID, fieldID string) (configbundle.FieldMapping, bool) {
	for _, m := range e.bundle.FormMappings.Mappings {
		if m.FormID == formID && m.FieldID == fieldID {
			return m, true
		}
	}
	return configbundle.FieldMapping{}, false
}

func (e *Engine) resolve(src configbundle.MappingSource, profileMap map[string]any, documents map[string]any) (any, string) {
	switch src.Type {
	case configbundle.SourceCanonicalProfile:
		value, ok := profile.Lookup(profileMap, src.Path)
		if !ok {
			return nil, fmt.Sprintf("missing canonical data: %s", src.Path)
		}
		return value, ""
	case configbundle.SourceDocument:
		value, ok := documents[src.DocumentType]
		if !ok || value == nil {
			return nil, fmt.Sprintf("document not uploaded: %s", src.DocumentType)
		}
		return value, ""
	case configbundle.SourceConstant:
		return src.Value, ""
	case configbundle.SourceRuleEngine:
		return nil, "rule_engine source not implemented"
	default:
		return nil, fmt.Sprintf("unknown source type: %s", src.Type)
	}
}
