// File: internal/policy/policy.go
package policy

import (
	"github.com/vulngate/vulngate/internal/findings"
)

// Policy is the severity rule set applied to a findings report. It is loaded
// once per gate run and read-only during evaluation.
type Policy struct {
	// SeverityThreshold is the minimum severity that causes a gate failure.
	SeverityThreshold findings.Severity
	// Exceptions is a per-package allow-list. Findings whose package appears
	// here never count as violations, regardless of severity.
	Exceptions []string
}

// Excepted reports whether the given package is on the allow-list.
func (p Policy) Excepted(pkg string) bool {
	for _, e := range p.Exceptions {
		if e == pkg {
			return true
		}
	}
	return false
}

// Outcome is the result of evaluating a report against a policy.
type Outcome struct {
	// Violations holds the findings at or above the threshold that are not
	// covered by an exception, in original scanner order.
	Violations []findings.Finding
}

// Clean reports whether the evaluation found no violations.
func (o Outcome) Clean() bool { return len(o.Violations) == 0 }

// MaxSeverity returns the highest severity among the violations and whether
// there were any.
func (o Outcome) MaxSeverity() (findings.Severity, bool) {
	if len(o.Violations) == 0 {
		return 0, false
	}
	max := o.Violations[0].Severity
	for _, v := range o.Violations[1:] {
		if v.Severity > max {
			max = v.Severity
		}
	}
	return max, true
}

// Evaluate applies the policy to a report. It is a pure function: no I/O,
// no mutation of its inputs, and deterministic for identical inputs. The
// violation subset keeps the report's original ordering so gate output is
// reproducible across runs.
func Evaluate(report *findings.Report, pol Policy) Outcome {
	var violations []findings.Finding
	for _, f := range report.Findings {
		if !f.Severity.AtLeast(pol.SeverityThreshold) {
			continue
		}
		if pol.Excepted(f.Package) {
			continue
		}
		violations = append(violations, f)
	}
	return Outcome{Violations: violations}
}
