// File: internal/findings/severity.go
package findings

import (
	"fmt"
	"strings"
)

// Severity is the normalized, ordered severity scale used by the gate.
// The ordering is significant: a Policy threshold of SeverityHigh matches
// both SeverityHigh and SeverityCritical findings.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

var severityValues = map[string]Severity{
	"LOW":      SeverityLow,
	"MEDIUM":   SeverityMedium,
	"HIGH":     SeverityHigh,
	"CRITICAL": SeverityCritical,
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// AtLeast reports whether s is greater than or equal to the threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return s >= threshold
}

// ParseSeverity normalizes a scanner-supplied severity string
// case-insensitively. Unknown values are an error, not silently mapped to a
// default level, so a schema drift in the scanner output fails the load
// instead of weakening the policy.
func ParseSeverity(raw string) (Severity, error) {
	s, ok := severityValues[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return 0, fmt.Errorf("unknown severity %q", raw)
	}
	return s, nil
}

// MarshalJSON renders the severity as its canonical upper-case name.
func (s Severity) MarshalJSON() ([]byte, error) {
	name, ok := severityNames[s]
	if !ok {
		return nil, fmt.Errorf("cannot marshal unknown severity %d", int(s))
	}
	return []byte(`"` + name + `"`), nil
}

// UnmarshalJSON accepts any casing of the four canonical names.
func (s *Severity) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
