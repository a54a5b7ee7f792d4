package configbundle

import (
	"fmt"
	"strings"
)

var validOps = map[string]struct{}{
	OpEquals:         {},
	OpNotEquals:      {},
	OpGreaterThan:    {},
	OpGreaterOrEqual: {},
	OpIn:             {},
	OpNotIn:          {},
}

var validSourceTypes = map[string]struct{}{
	SourceCanonicalProfile: {},
	SourceDocument:         {},
	SourceConstant:         {},
	SourceRuleEngine:       {},
}

// validate enforces schema constraints within files and referential
// integrity across them. The first violation wins; operators fix one error
// at a time with an exact location.
func validate(b *Bundle) error {
	if err := validateCRS(b); err != nil {
		return err
	}
	if err := validatePrograms(b); err != nil {
		return err
	}

	fieldIDs, err := validateFields(b)
	if err != nil {
		return err
	}
	programCodes := make(map[string]struct{}, len(b.Programs.Programs))
	for _, p := range b.Programs.Programs {
		programCodes[p.Code] = struct{}{}
	}

	if err := validateLanguage(b); err != nil {
		return err
	}
	if err := validateProofOfFunds(b, programCodes); err != nil {
		return err
	}
	if err := validateIntakeTemplates(b, fieldIDs, programCodes); err != nil {
		return err
	}
	docIDs, err := validateDocuments(b, fieldIDs, programCodes)
	if err != nil {
		return err
	}
	formFieldIDs, err := validateForms(b, docIDs)
	if err != nil {
		return err
	}
	if err := validateFormMappings(b, formFieldIDs); err != nil {
		return err
	}
	if err := validateFormBundles(b, programCodes); err != nil {
		return err
	}
	return validatePlans(b)
}

func validateCRS(b *Bundle) error {
	if b.CRS.Caps.PerBundle <= 0 || b.CRS.Caps.Total <= 0 {
		return newConfigError(KindSchema, FileCRS, "caps.per_bundle and caps.total must be positive")
	}
	if len(b.CRS.Core.AgeBands) == 0 {
		return newConfigError(KindSchema, FileCRS, "core.age_bands must not be empty")
	}
	if len(b.CRS.Core.FirstLanguagePerSkill) == 0 {
		return newConfigError(KindSchema, FileCRS, "core.first_language_per_skill must not be empty")
	}
	for i, band := range b.CRS.Core.AgeBands {
		if band.Min > band.Max {
			return newConfigError(KindSchema, FileCRS,
				fmt.Sprintf("core.age_bands[%d]: min %d exceeds max %d", i, band.Min, band.Max))
		}
	}
	return nil
}

func validatePrograms(b *Bundle) error {
	if len(b.Programs.Programs) == 0 {
		return newConfigError(KindSchema, FilePrograms, "programs must not be empty")
	}
	seen := make(map[string]struct{})
	for i, p := range b.Programs.Programs {
		if p.Code == "" {
			return newConfigError(KindSchema, FilePrograms, fmt.Sprintf("programs[%d]: code is required", i))
		}
		if _, dup := seen[p.Code]; dup {
			return newConfigError(KindSchema, FilePrograms, fmt.Sprintf("duplicate program code %q", p.Code))
		}
		seen[p.Code] = struct{}{}
	}
	return nil
}

var validSkills = map[string]struct{}{
	"speaking": {}, "listening": {}, "reading": {}, "writing": {},
}

func validateLanguage(b *Bundle) error {
	for i, row := range b.Language.CLBConversion {
		if row.Test == "" {
			return newConfigError(KindSchema, FileLanguage, fmt.Sprintf("clb_conversion[%d]: test is required", i))
		}
		if _, ok := validSkills[row.Skill]; !ok {
			return newConfigError(KindSchema, FileLanguage,
				fmt.Sprintf("clb_conversion[%d]: unknown skill %q", i, row.Skill))
		}
	}
	return nil
}

func validateProofOfFunds(b *Bundle, programCodes map[string]struct{}) error {
	for _, code := range b.ProofOfFunds.Exemptions {
		if _, ok := programCodes[code]; !ok {
			return newConfigError(KindBrokenReference, FileProofOfFunds,
				fmt.Sprintf("exemptions references unknown program %q", code))
		}
	}
	return nil
}

func validateFields(b *Bundle) (map[string]struct{}, error) {
	fieldIDs := make(map[string]struct{}, len(b.Fields.Fields))
	for i, f := range b.Fields.Fields {
		if f.ID == "" {
			return nil, newConfigError(KindSchema, FileFields, fmt.Sprintf("fields[%d]: id is required", i))
		}
		if _, dup := fieldIDs[f.ID]; dup {
			return nil, newConfigError(KindSchema, FileFields, fmt.Sprintf("duplicate field id %q", f.ID))
		}
		if f.DataPath == "" {
			return nil, newConfigError(KindSchema, FileFields, fmt.Sprintf("field %q: data_path is required", f.ID))
		}
		if f.OptionsRef != "" {
			if _, ok := b.Fields.Options[f.OptionsRef]; !ok {
				return nil, newConfigError(KindBrokenReference, FileFields,
					fmt.Sprintf("field %q references unknown options_ref %q", f.ID, f.OptionsRef))
			}
		}
		fieldIDs[f.ID] = struct{}{}
	}
	return fieldIDs, nil
}

func validateIntakeTemplates(b *Bundle, fieldIDs, programCodes map[string]struct{}) error {
	for _, tpl := range b.IntakeTemplates.Templates {
		if tpl.ID == "" {
			return newConfigError(KindSchema, FileIntakeTemplates, "template id is required")
		}
		for _, code := range tpl.ApplicablePrograms {
			if _, ok := programCodes[code]; !ok {
				return newConfigError(KindBrokenReference, FileIntakeTemplates,
					fmt.Sprintf("template %q references unknown program %q", tpl.ID, code))
			}
		}
		for _, step := range tpl.Steps {
			for _, fieldID := range step.Fields {
				if _, ok := fieldIDs[fieldID]; !ok {
					return newConfigError(KindBrokenReference, FileIntakeTemplates,
						fmt.Sprintf("template %q step %q references unknown field %q", tpl.ID, step.ID, fieldID))
				}
			}
		}
	}
	return nil
}

func validateDocuments(b *Bundle, fieldIDs, programCodes map[string]struct{}) (map[string]struct{}, error) {
	docIDs := make(map[string]struct{}, len(b.Documents.Documents))
	for _, doc := range b.Documents.Documents {
		if doc.ID == "" {
			return nil, newConfigError(KindSchema, FileDocuments, "document id is required")
		}
		if _, dup := docIDs[doc.ID]; dup {
			return nil, newConfigError(KindSchema, FileDocuments, fmt.Sprintf("duplicate document id %q", doc.ID))
		}
		docIDs[doc.ID] = struct{}{}
		for _, code := range doc.Programs {
			if _, ok := programCodes[code]; !ok {
				return nil, newConfigError(KindBrokenReference, FileDocuments,
					fmt.Sprintf("document %q references unknown program %q", doc.ID, code))
			}
		}
		for _, cond := range doc.RequiredWhen {
			if _, ok := validOps[cond.Op]; !ok {
				return nil, newConfigError(KindSchema, FileDocuments,
					fmt.Sprintf("document %q: unknown condition operator %q", doc.ID, cond.Op))
			}
			// A condition field is either a declared field id or a dotted
			// profile path resolved at evaluation time.
			if _, ok := fieldIDs[cond.Field]; !ok && !strings.Contains(cond.Field, ".") {
				return nil, newConfigError(KindBrokenReference, FileDocuments,
					fmt.Sprintf("document %q condition references unknown field %q", doc.ID, cond.Field))
			}
		}
	}
	return docIDs, nil
}

func validateForms(b *Bundle, docIDs map[string]struct{}) (map[string]map[string]struct{}, error) {
	formFieldIDs := make(map[string]map[string]struct{}, len(b.Forms.Forms))
	for _, form := range b.Forms.Forms {
		if form.FormID == "" {
			return nil, newConfigError(KindSchema, FileForms, "form_id is required")
		}
		if _, dup := formFieldIDs[form.FormID]; dup {
			return nil, newConfigError(KindSchema, FileForms, fmt.Sprintf("duplicate form_id %q", form.FormID))
		}
		fields := make(map[string]struct{}, len(form.Fields))
		for _, f := range form.Fields {
			fields[f.FieldID] = struct{}{}
		}
		formFieldIDs[form.FormID] = fields
		for _, att := range form.Attachments {
			if _, ok := docIDs[att]; !ok {
				return nil, newConfigError(KindBrokenReference, FileForms,
					fmt.Sprintf("form %q references unknown attachment document %q", form.FormID, att))
			}
		}
	}
	return formFieldIDs, nil
}

func validateFormMappings(b *Bundle, formFieldIDs map[string]map[string]struct{}) error {
	for _, m := range b.FormMappings.Mappings {
		fields, ok := formFieldIDs[m.FormID]
		if !ok {
			return newConfigError(KindBrokenReference, FileFormMappings,
				fmt.Sprintf("mapping references unknown form %q", m.FormID))
		}
		if _, ok := fields[m.FieldID]; !ok {
			return newConfigError(KindBrokenReference, FileFormMappings,
				fmt.Sprintf("mapping references unknown field %q on form %q", m.FieldID, m.FormID))
		}
		if _, ok := validSourceTypes[m.Source.Type]; !ok {
			return newConfigError(KindSchema, FileFormMappings,
				fmt.Sprintf("mapping %s.%s: unknown source type %q", m.FormID, m.FieldID, m.Source.Type))
		}
		switch m.Source.Type {
		case SourceCanonicalProfile:
			if m.Source.Path == "" {
				return newConfigError(KindSchema, FileFormMappings,
					fmt.Sprintf("mapping %s.%s: canonical_profile source requires path", m.FormID, m.FieldID))
			}
		case SourceDocument:
			if m.Source.DocumentType == "" {
				return newConfigError(KindSchema, FileFormMappings,
					fmt.Sprintf("mapping %s.%s: document source requires document_type", m.FormID, m.FieldID))
			}
		case SourceConstant:
			if m.Source.Value == nil {
				return newConfigError(KindSchema, FileFormMappings,
					fmt.Sprintf("mapping %s.%s: constant source requires value", m.FormID, m.FieldID))
			}
		}
	}
	return nil
}

func validateFormBundles(b *Bundle, programCodes map[string]struct{}) error {
	for _, bundle := range b.FormBundles.Bundles {
		if bundle.ID == "" {
			return newConfigError(KindSchema, FileFormBundles, "bundle id is required")
		}
		if bundle.Program != "" {
			if _, ok := programCodes[bundle.Program]; !ok {
				return newConfigError(KindBrokenReference, FileFormBundles,
					fmt.Sprintf("bundle %q references unknown program %q", bundle.ID, bundle.Program))
			}
		}
		for _, formID := range bundle.Forms {
			if _, ok := b.FormByID(formID); !ok {
				return newConfigError(KindBrokenReference, FileFormBundles,
					fmt.Sprintf("bundle %q references unknown form %q", bundle.ID, formID))
			}
		}
	}
	return nil
}

func validatePlans(b *Bundle) error {
	if b.Plans.DefaultPlan == "" {
		return newConfigError(KindSchema, FilePlans, "default_plan is required")
	}
	if _, ok := b.Plans.Plans[b.Plans.DefaultPlan]; !ok {
		return newConfigError(KindBrokenReference, FilePlans,
			fmt.Sprintf("default_plan %q is not defined in plans", b.Plans.DefaultPlan))
	}
	return nil
}
