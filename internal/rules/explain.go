package rules

import (
	"sort"
	"strings"
	"text/template"
)

// explanationTemplate renders one fired rule as reviewer-facing prose. The
// record already carries everything the sentence needs; the template only
// arranges it.
const explanationTemplate = `{{.Code}}: rule {{.RulePath}} saw {{.Input}}, requires {{.Threshold}}.`

// ExplanationGenerator turns rule-firing records into natural-language prose
// for case summaries and internal notes. Rendering is deterministic: the same
// records always produce the same lines, sorted by code.
type ExplanationGenerator struct {
	tpl *template.Template
}

func NewExplanationGenerator() *ExplanationGenerator {
	return &ExplanationGenerator{
		tpl: template.Must(template.New("explanation").Parse(explanationTemplate)),
	}
}

// Render produces one prose line for a single record.
func (g *ExplanationGenerator) Render(ex Explanation) string {
	var sb strings.Builder
	if err := g.tpl.Execute(&sb, ex); err != nil {
		return ex.Code
	}
	return sb.String()
}

// RenderAll renders every record, sorted by code so output order never
// depends on evaluation order.
func (g *ExplanationGenerator) RenderAll(exs []Explanation) []string {
	sorted := make([]Explanation, len(exs))
	copy(sorted, exs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	lines := make([]string, 0, len(sorted))
	for _, ex := range sorted {
		lines = append(lines, g.Render(ex))
	}
	return lines
}
