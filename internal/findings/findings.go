// File: internal/findings/findings.go
package findings

import "time"

// Finding is a single reported vulnerability. Findings are value objects;
// once a Report is loaded they are never mutated.
type Finding struct {
	ID           string   `json:"id"`
	Severity     Severity `json:"severity"`
	Package      string   `json:"package"`
	FixedVersion string   `json:"fixedVersion,omitempty"`
}

// Report is one scanner invocation's worth of findings plus scanner
// metadata. The slice preserves the original scanner order; downstream
// consumers rely on that for reproducible output.
type Report struct {
	Tool      string    `json:"tool"`
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Findings  []Finding `json:"findings"`
}
