// File: internal/findings/errors.go
package findings

import "fmt"

// LoadErrorKind classifies the ways loading a findings document can fail.
// All of them are environmental/config failures, not security verdicts; the
// CLI maps them to a distinct exit status so callers never conflate "broken
// input" with "vulnerable image".
type LoadErrorKind int

const (
	// NotFound means the findings path does not exist.
	NotFound LoadErrorKind = iota
	// Malformed means the document could not be parsed into the expected
	// schema (invalid JSON, missing required fields, wrong types).
	Malformed
	// UnknownSeverity means the document parsed but carried a severity
	// string outside the normalized scale.
	UnknownSeverity
)

func (k LoadErrorKind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Malformed:
		return "malformed_input"
	case UnknownSeverity:
		return "unknown_severity"
	default:
		return "unknown"
	}
}

// LoadError is the typed failure returned by the Loader.
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("loading findings from %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("loading findings from %s: %s", e.Path, e.Kind)
}

func (e *LoadError) Unwrap() error { return e.Err }
