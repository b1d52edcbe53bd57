// File: internal/findings/trivy.go
package findings

import (
	"fmt"
	"time"
)

// trivyReport is the subset of the native Trivy JSON schema the gate needs.
// Field names follow Trivy's own capitalized JSON keys.
type trivyReport struct {
	SchemaVersion int           `json:"SchemaVersion"`
	CreatedAt     *time.Time    `json:"CreatedAt"`
	ArtifactName  string        `json:"ArtifactName"`
	Results       []trivyResult `json:"Results"`
}

type trivyResult struct {
	Target          string               `json:"Target"`
	Vulnerabilities []trivyVulnerability `json:"Vulnerabilities"`
}

type trivyVulnerability struct {
	VulnerabilityID  string `json:"VulnerabilityID"`
	PkgName          string `json:"PkgName"`
	InstalledVersion string `json:"InstalledVersion"`
	FixedVersion     string `json:"FixedVersion"`
	Severity         string `json:"Severity"`
}

// parseTrivy normalizes a native Trivy report into the gate's Report shape,
// flattening all result groups while preserving Trivy's ordering.
func parseTrivy(data []byte, path string) (*Report, error) {
	var tr trivyReport
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: err}
	}
	if tr.ArtifactName == "" {
		return nil, &LoadError{Kind: Malformed, Path: path, Err: fmt.Errorf("trivy report missing ArtifactName")}
	}

	report := &Report{
		Tool:   "trivy",
		Target: tr.ArtifactName,
	}
	if tr.CreatedAt != nil {
		report.Timestamp = *tr.CreatedAt
	}

	for _, res := range tr.Results {
		for i, v := range res.Vulnerabilities {
			if v.VulnerabilityID == "" {
				return nil, &LoadError{
					Kind: Malformed,
					Path: path,
					Err:  fmt.Errorf("result %q: vulnerability %d missing VulnerabilityID", res.Target, i),
				}
			}
			sev, err := ParseSeverity(v.Severity)
			if err != nil {
				return nil, &LoadError{
					Kind: UnknownSeverity,
					Path: path,
					Err:  fmt.Errorf("result %q (%s): %w", res.Target, v.VulnerabilityID, err),
				}
			}
			report.Findings = append(report.Findings, Finding{
				ID:           v.VulnerabilityID,
				Severity:     sev,
				Package:      v.PkgName,
				FixedVersion: v.FixedVersion,
			})
		}
	}
	if report.Findings == nil {
		report.Findings = []Finding{}
	}
	return report, nil
}
