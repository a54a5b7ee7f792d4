package matrix

import (
	"strings"

	"boreal/internal/configbundle"
	"boreal/internal/profile"
)

// evalConditions reports whether every clause holds. An empty clause list is
// vacuously true.
func evalConditions(bundle *configbundle.Bundle, conditions []configbundle.Condition, profileMap map[string]any) bool {
	for _, c := range conditions {
		if !evalCondition(bundle, c, profileMap) {
			return false
		}
	}
	return true
}

// evalCondition resolves the clause's field to a profile value and applies
// the operator. A missing value fails every operator: a requirement must
// never hinge on data the candidate has not provided yet.
func evalCondition(bundle *configbundle.Bundle, c configbundle.Condition, profileMap map[string]any) bool {
	path := c.Field
	if !strings.Contains(path, ".") {
		field, ok := bundle.FieldByID(c.Field)
		if !ok {
			return false
		}
		path = field.DataPath
	}
	value, ok := profile.Lookup(profileMap, path)
	if !ok {
		return false
	}

	switch c.Op {
	case configbundle.OpEquals:
		return valuesEqual(value, c.Value)
	case configbundle.OpNotEquals:
		return !valuesEqual(value, c.Value)
	case configbundle.OpGreaterThan:
		a, aok := asFloat(value)
		b, bok := asFloat(c.Value)
		return aok && bok && a > b
	case configbundle.OpGreaterOrEqual:
		a, aok := asFloat(value)
		b, bok := asFloat(c.Value)
		return aok && bok && a >= b
	case configbundle.OpIn:
		return containsValue(c.Value, value)
	case configbundle.OpNotIn:
		return !containsValue(c.Value, value)
	default:
		return false
	}
}

func containsValue(list any, value any) bool {
	items, ok := list.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if valuesEqual(value, item) {
			return true
		}
	}
	return false
}

// valuesEqual compares a profile value with a config literal. Profile maps
// come from JSON (float64 numbers) while config literals come from YAML
// (int), so numbers compare numerically.
func valuesEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
