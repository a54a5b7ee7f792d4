package profile

import "strings"

// Lookup resolves a dotted path against a profile map. The second return is
// false when any segment is missing or a non-map value is traversed. An
// explicit null counts as missing.
func Lookup(m map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var current any = m
	for _, seg := range segments {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[seg]
		if !ok {
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}
