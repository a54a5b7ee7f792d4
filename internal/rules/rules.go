// Package rules implements the deterministic scoring and eligibility
// engines. Both are pure: output depends only on the profile, the loaded
// config bundle and the evaluation instant. No I/O, no clock reads, no
// randomness.
package rules

import "boreal/internal/configbundle"

// Engine evaluates profiles against one loaded config bundle. The bundle is
// captured at construction so a reload mid-request cannot split an
// evaluation across two rule versions.
type Engine struct {
	bundle *configbundle.Bundle
}

func NewEngine(bundle *configbundle.Bundle) *Engine {
	return &Engine{bundle: bundle}
}

// ConfigVersion returns the version of the bundle the engine scores with.
func (e *Engine) ConfigVersion() string {
	return e.bundle.CRS.Version
}

// ConfigHash returns the content hash of the bundle the engine scores with.
func (e *Engine) ConfigHash() string {
	return e.bundle.Hash()
}

// Explanation records how one rule fired: which table, what input it saw and
// what threshold it applied. Every awarded factor and every blocker carries
// one, so a reviewer can audit a decision without re-running it.
type Explanation struct {
	Code      string `json:"code"`
	RulePath  string `json:"rule_path"`
	Input     string `json:"input"`
	Threshold string `json:"threshold"`
}

// educationRank orders credential levels so threshold rows can be compared
// with >=. Unknown levels rank below everything.
var educationRank = map[string]int{
	"less_than_secondary":     0,
	"secondary":               1,
	"one_year_postsecondary":  2,
	"two_year_postsecondary":  3,
	"bachelors":               4,
	"two_or_more_credentials": 5,
	"masters":                 6,
	"phd":                     7,
}

// educationMeets reports whether a profile credential satisfies a
// transferability row's education requirement. "postsecondary" matches any
// credential at or above one year of postsecondary study.
func educationMeets(level, required string) bool {
	rank, ok := educationRank[level]
	if !ok {
		return false
	}
	switch required {
	case "postsecondary":
		return rank >= educationRank["one_year_postsecondary"]
	default:
		req, ok := educationRank[required]
		if !ok {
			return false
		}
		return rank >= req
	}
}
