package configbundle

import "fmt"

// ErrorKind classifies configuration failures.
type ErrorKind string

const (
	KindMissingFile     ErrorKind = "missing_file"
	KindMalformedYAML   ErrorKind = "malformed_yaml"
	KindSchema          ErrorKind = "schema"
	KindBrokenReference ErrorKind = "broken_reference"
)

// ConfigError reports a load or validation failure with enough context to
// point an operator at the offending file and key.
type ConfigError struct {
	Kind   ErrorKind
	Path   string
	Detail string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s (%s): %s: %v", e.Kind, e.Path, e.Detail, e.Err)
	}
	return fmt.Sprintf("config %s (%s): %s", e.Kind, e.Path, e.Detail)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func newConfigError(kind ErrorKind, path, detail string) *ConfigError {
	return &ConfigError{Kind: kind, Path: path, Detail: detail}
}

func wrapConfigError(err error, kind ErrorKind, path, detail string) *ConfigError {
	return &ConfigError{Kind: kind, Path: path, Detail: detail, Err: err}
}
