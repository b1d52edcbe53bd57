// File: internal/reporting/text.go
package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/vulngate/vulngate/internal/gate"
)

// textReporter renders the human-readable reasoning report.
type textReporter struct {
	writer io.WriteCloser
}

func newTextReporter(writer io.WriteCloser) *textReporter {
	return &textReporter{writer: writer}
}

func (r *textReporter) Write(verdict *gate.Verdict) error {
	var b strings.Builder

	fmt.Fprintf(&b, "vulngate verdict: %s\n", verdict.Status)
	fmt.Fprintf(&b, "  run:       %s\n", verdict.RunID)
	fmt.Fprintf(&b, "  tool:      %s\n", verdict.Tool)
	fmt.Fprintf(&b, "  target:    %s\n", verdict.Target)
	fmt.Fprintf(&b, "  threshold: %s\n", verdict.Threshold)

	if len(verdict.Violations) > 0 {
		fmt.Fprintf(&b, "\nviolations (%d of %d findings):\n", len(verdict.Violations), verdict.TotalCount)
		for _, v := range verdict.Violations {
			fix := "no fix available"
			if v.FixedVersion != "" {
				fix = "fix: " + v.FixedVersion
			}
			fmt.Fprintf(&b, "  %-8s  %-20s  %s (%s)\n", v.Severity, v.ID, v.Package, fix)
		}
	}

	switch verdict.Status {
	case gate.StatusBypassed:
		fmt.Fprintf(&b, "\nbypass granted: %s\n", verdict.BypassReason)
	case gate.StatusFail:
		if verdict.BypassCause != "" {
			fmt.Fprintf(&b, "\nbypass rejected: %s\n", verdict.BypassCause)
		}
	}

	_, err := io.WriteString(r.writer, b.String())
	return err
}

func (r *textReporter) Close() error { return r.writer.Close() }
