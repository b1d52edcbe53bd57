// File: internal/findings/loader.go
package findings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// rawDocument mirrors the normalized findings schema:
//
//	{tool, target, timestamp?, findings: [{id, severity, package, fixedVersion?}]}
//
// Severity stays a string here so we can attribute parse failures to the
// right LoadErrorKind.
type rawDocument struct {
	Tool      string       `json:"tool"`
	Target    string       `json:"target"`
	Timestamp *time.Time   `json:"timestamp"`
	Findings  []rawFinding `json:"findings"`
}

type rawFinding struct {
	ID           string `json:"id"`
	Severity     string `json:"severity"`
	Package      string `json:"package"`
	FixedVersion string `json:"fixedVersion"`
}

// probe is used to sniff which schema a document carries before committing
// to a full decode. Native Trivy reports have SchemaVersion/Results at the
// top level; the normalized schema has tool/findings.
type probe struct {
	SchemaVersion int                 `json:"SchemaVersion"`
	Results       jsoniter.RawMessage `json:"Results"`
	Tool          string              `json:"tool"`
}

// Load reads and validates a findings document from disk. The only side
// effect is the read itself. Failures are always a *LoadError.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Kind: NotFound, Path: path, Err: err}
		}
		return nil, &LoadError{Kind: Malformed, Path: path, Err: err}
	}
	return Parse(data, path)
}

// Parse validates an in-memory findings document. It accepts both the
// normalized schema and a native Trivy JSON report, normalizing the latter
// into the same Report shape.
func Parse(data []byte, path string) (*Report, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: err}
	}
	if p.SchemaVersion > 0 || (len(p.Results) > 0 && p.Tool == "") {
		return parseTrivy(data, path)
	}

	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: err}
	}
	if doc.Tool == "" {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: fmt.Errorf("missing required field %q", "tool")}
	}
	if doc.Target == "" {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: fmt.Errorf("missing required field %q", "target")}
	}
	if doc.Findings == nil {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: fmt.Errorf("missing required field %q", "findings")}
	}

	report := &Report{
		Tool:     doc.Tool,
		Target:   doc.Target,
		Findings: make([]Finding, 0, len(doc.Findings)),
	}
	if doc.Timestamp != nil {
		report.Timestamp = *doc.Timestamp
	}

	for i, rf := range doc.Findings {
		f, err := normalizeFinding(rf, i)
		if err != nil {
			var le *LoadError
			if errors.As(err, &le) {
				le.Path = path
				return nil, le
			}
			return nil, &LoadError{Kind: Malformed, Path: path, Err: err}
		}
		report.Findings = append(report.Findings, f)
	}
	return report, nil
}

func normalizeFinding(rf rawFinding, index int) (Finding, error) {
	if strings.TrimSpace(rf.ID) == "" {
		return Finding{}, &LoadError{Kind: Malformed, Err: fmt.Errorf("finding %d: missing id", index)}
	}
	if strings.TrimSpace(rf.Package) == "" {
		return Finding{}, &LoadError{Kind: Malformed, Err: fmt.Errorf("finding %d (%s): missing package", index, rf.ID)}
	}
	sev, err := ParseSeverity(rf.Severity)
	if err != nil {
		return Finding{}, &LoadError{Kind: UnknownSeverity, Err: fmt.Errorf("finding %d (%s): %w", index, rf.ID, err)}
	}
	return Finding{
		ID:           rf.ID,
		Severity:     sev,
		Package:      rf.Package,
		FixedVersion: rf.FixedVersion,
	}, nil
}
