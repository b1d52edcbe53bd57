// File: internal/gate/gate.go
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vulngate/vulngate/internal/bypass"
	"github.com/vulngate/vulngate/internal/findings"
	"github.com/vulngate/vulngate/internal/policy"
)

// Status is the terminal outcome of one gate run.
type Status string

const (
	StatusPass     Status = "PASS"
	StatusFail     Status = "FAIL"
	StatusBypassed Status = "BYPASSED"
)

// Verdict is the gate's terminal result. It is never mutated after Run
// returns it.
type Verdict struct {
	RunID       string              `json:"runId"`
	Status      Status              `json:"status"`
	Tool        string              `json:"tool"`
	Target      string              `json:"target"`
	EvaluatedAt time.Time           `json:"evaluatedAt"`
	Threshold   findings.Severity   `json:"threshold"`
	TotalCount  int                 `json:"totalFindings"`
	Violations  []findings.Finding  `json:"violations,omitempty"`
	// BypassReason is set when Status is BYPASSED.
	BypassReason string `json:"bypassReason,omitempty"`
	// BypassCause is set when a bypass was requested and rejected; the run
	// still fails, but the reasoning report explains why the override did
	// not take.
	BypassCause string `json:"bypassCause,omitempty"`
}

// Gate drives one evaluation through the Loading -> Evaluating ->
// {Clean, Violated} -> terminal state progression.
type Gate struct {
	policy    policy.Policy
	authority *bypass.Authority
	log       *zap.Logger
	now       func() time.Time
}

// New assembles a gate. The authority may be nil when no bypass channel is
// configured; every violated run then fails outright.
func New(pol policy.Policy, authority *bypass.Authority, logger *zap.Logger) *Gate {
	return &Gate{
		policy:    pol,
		authority: authority,
		log:       logger.Named("gate"),
		now:       time.Now,
	}
}

// RunFile loads the findings document at path and evaluates it. Load
// failures propagate as *findings.LoadError so callers can map them to a
// distinct exit status.
func (g *Gate) RunFile(ctx context.Context, path string, req *bypass.Request) (*Verdict, error) {
	report, err := findings.Load(path)
	if err != nil {
		return nil, err
	}
	return g.Run(ctx, report, req)
}

// Run evaluates an already-loaded report. The only error it returns is
// context cancellation; policy failures are verdicts, not errors.
func (g *Gate) Run(ctx context.Context, report *findings.Report, req *bypass.Request) (*Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	verdict := &Verdict{
		RunID:       runID,
		Tool:        report.Tool,
		Target:      report.Target,
		EvaluatedAt: g.now().UTC(),
		Threshold:   g.policy.SeverityThreshold,
		TotalCount:  len(report.Findings),
	}

	outcome := policy.Evaluate(report, g.policy)
	if outcome.Clean() {
		verdict.Status = StatusPass
		g.log.Info("gate passed",
			zap.String("run_id", runID),
			zap.String("target", report.Target),
			zap.Int("findings", len(report.Findings)))
		// Bypass is meaningless when there is nothing to bypass, but the
		// attempt itself is still audit-worthy.
		if req != nil && g.authority != nil {
			g.authority.RecordUnused(ctx, req, runID, report.Target)
		}
		return verdict, nil
	}

	verdict.Violations = outcome.Violations
	maxSev, _ := outcome.MaxSeverity()
	g.log.Warn("policy violated",
		zap.String("run_id", runID),
		zap.String("target", report.Target),
		zap.Int("violations", len(outcome.Violations)),
		zap.Stringer("max_severity", maxSev))

	var decision bypass.Decision
	if g.authority != nil {
		decision = g.authority.Authorize(ctx, req, runID, report.Target, outcome.Violations)
	}
	switch decision.Status {
	case bypass.Granted:
		verdict.Status = StatusBypassed
		verdict.BypassReason = decision.Reason
	case bypass.Rejected:
		verdict.Status = StatusFail
		verdict.BypassCause = decision.Cause
	default:
		verdict.Status = StatusFail
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return verdict, nil
}

// Summary renders the single-line human verdict used in logs and the text
// report header.
func (v *Verdict) Summary() string {
	switch v.Status {
	case StatusPass:
		return fmt.Sprintf("PASS: %d finding(s), none at or above %s", v.TotalCount, v.Threshold)
	case StatusBypassed:
		return fmt.Sprintf("BYPASSED: %d violation(s) overridden (%s)", len(v.Violations), v.BypassReason)
	default:
		return fmt.Sprintf("FAIL: %d violation(s) at or above %s", len(v.Violations), v.Threshold)
	}
}
