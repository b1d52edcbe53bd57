// File: internal/reporting/sarif_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/vulngate/vulngate/internal/findings"
	"github.com/vulngate/vulngate/internal/gate"
	"github.com/vulngate/vulngate/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	toolName     = "vulngate"
	toolInfoURI  = "https://github.com/vulngate/vulngate"
	sarifVersion = "2.1.0"
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// SARIFReporter renders violations as SARIF 2.1.0 results so the verdict
// can be ingested by code-scanning dashboards. It is safe for concurrent
// Write calls.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger

	mu  sync.Mutex
	log *sarif.Log
	// knownRules dedupes rule descriptors when multiple violations share a
	// vulnerability ID.
	knownRules map[string]bool
}

func newSARIFReporter(writer io.WriteCloser, logger *zap.Logger, toolVersion string) *SARIFReporter {
	log := &sarif.Log{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           toolName,
						Version:        pString(toolVersion),
						InformationURI: pString(toolInfoURI),
						Rules:          []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}
	return &SARIFReporter{
		writer:     writer,
		logger:     logger.Named("sarif_reporter"),
		log:        log,
		knownRules: map[string]bool{},
	}
}

// Write appends the verdict's violations to the SARIF log. The document is
// serialized on Close.
func (r *SARIFReporter) Write(verdict *gate.Verdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	for _, v := range verdict.Violations {
		if !r.knownRules[v.ID] {
			r.knownRules[v.ID] = true
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, &sarif.ReportingDescriptor{
				ID:   v.ID,
				Name: pString(v.ID),
				Properties: &sarif.PropertyBag{
					"severity": v.Severity.String(),
				},
			})
		}

		msg := fmt.Sprintf("%s: %s severity vulnerability in package %s", v.ID, v.Severity, v.Package)
		if v.FixedVersion != "" {
			msg += fmt.Sprintf(" (fixed in %s)", v.FixedVersion)
		}
		run.Results = append(run.Results, &sarif.Result{
			RuleID:  v.ID,
			Level:   severityToLevel(v.Severity),
			Message: &sarif.Message{Text: pString(msg)},
			Locations: []*sarif.Location{
				{
					PhysicalLocation: &sarif.PhysicalLocation{
						ArtifactLocation: &sarif.ArtifactLocation{URI: pString(verdict.Target)},
					},
					Message: &sarif.Message{Text: pString(v.Package)},
				},
			},
		})
	}

	r.logger.Debug("appended verdict to SARIF log",
		zap.String("run_id", verdict.RunID),
		zap.Int("results", len(run.Results)))
	return nil
}

// Close serializes the accumulated log and closes the writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.log); err != nil {
		r.writer.Close()
		return fmt.Errorf("failed to serialize SARIF log: %w", err)
	}
	return r.writer.Close()
}

func severityToLevel(s findings.Severity) sarif.Level {
	switch s {
	case findings.SeverityCritical, findings.SeverityHigh:
		return sarif.LevelError
	case findings.SeverityMedium:
		return sarif.LevelWarning
	default:
		return sarif.LevelNote
	}
}

func pString(s string) *string { return &s }
