// Package matrix resolves per-program intake templates and document
// checklists from the config bundle. Both resolutions are pure functions of
// the bundle, the program and the candidate's profile.
package matrix

import (
	"fmt"

	"boreal/internal/configbundle"
	dErrors "boreal/pkg/domain-errors"
)

// ChecklistItem is one document requirement resolved for a candidate.
// Reasons records why the requirement applies; ConfigRef points at the
// bundle entry it came from.
type ChecklistItem struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Category  string   `json:"category"`
	Required  bool     `json:"required"`
	Reasons   []string `json:"reasons"`
	ConfigRef string   `json:"config_ref"`
	SourceRef string   `json:"source_ref"`
}

// ResolveIntakeTemplate picks the intake template for a program and billing
// plan. Templates are checked in config order; a template with an empty plan
// list applies to every plan. Plan-specific templates therefore sort after
// the universal ones only if the config author wants the universal one to
// win, so order in the file is meaningful.
func ResolveIntakeTemplate(bundle *configbundle.Bundle, program, plan string) (configbundle.IntakeTemplate, error) {
	for _, tpl := range bundle.IntakeTemplates.Templates {
		if !containsString(tpl.ApplicablePrograms, program) {
			continue
		}
		if len(tpl.Plans) > 0 && !containsString(tpl.Plans, plan) {
			continue
		}
		return tpl, nil
	}
	return configbundle.IntakeTemplate{}, dErrors.Newf(dErrors.CodeNotFound,
		"no intake template for program %s on plan %s", program, plan)
}

// Checklist resolves the document requirements for a program against a
// candidate's profile map. Unconditional requirements pass through;
// conditional ones are included with Required set by the condition outcome,
// so callers can still surface optional documents.
func Checklist(bundle *configbundle.Bundle, program string, profileMap map[string]any) ([]ChecklistItem, error) {
	if _, ok := bundle.ProgramRuleByCode(program); !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown program %s", program)
	}
	var items []ChecklistItem
	for _, doc := range bundle.Documents.Documents {
		// An empty program list means the document applies universally.
		if len(doc.Programs) > 0 && !containsString(doc.Programs, program) {
			continue
		}
		var reasons []string
		if len(doc.Programs) == 0 {
			reasons = append(reasons, "applies to all programs")
		} else {
			reasons = append(reasons, "required for program "+program)
		}
		required := doc.Required
		if len(doc.RequiredWhen) > 0 {
			required = evalConditions(bundle, doc.RequiredWhen, profileMap)
			for _, cond := range doc.RequiredWhen {
				reasons = append(reasons, fmt.Sprintf("condition %s %s", cond.Field, cond.Op))
			}
		}
		items = append(items, ChecklistItem{
			ID:        doc.ID,
			Label:     doc.Label,
			Category:  doc.Category,
			Required:  required,
			Reasons:   reasons,
			ConfigRef: fmt.Sprintf("config/domain/%s#%s", configbundle.FileDocuments, doc.ID),
			SourceRef: doc.SourceRef,
		})
	}
	return items, nil
}

// RequiredDocuments filters the checklist down to the required items.
func RequiredDocuments(bundle *configbundle.Bundle, program string, profileMap map[string]any) ([]ChecklistItem, error) {
	items, err := Checklist(bundle, program, profileMap)
	if err != nil {
		return nil, err
	}
	var required []ChecklistItem
	for _, item := range items {
		if item.Required {
			required = append(required, item)
		}
	}
	return required, nil
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
