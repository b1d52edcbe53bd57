// File: internal/audit/audit.go
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/vulngate/vulngate/internal/findings"
)

// Decision is the audited outcome of a bypass request.
type Decision string

const (
	// DecisionGranted records an authorized override of a policy violation.
	DecisionGranted Decision = "granted"
	// DecisionRejected records a bypass attempt that failed validation.
	DecisionRejected Decision = "rejected"
	// DecisionUnused records a bypass request that arrived alongside a clean
	// report; there was nothing to bypass, but the attempt is still worth a
	// trace.
	DecisionUnused Decision = "unused"
)

// OverriddenFinding summarizes one violation that a granted bypass waved
// through. Only the identifying fields are recorded.
type OverriddenFinding struct {
	ID       string            `json:"id"`
	Severity findings.Severity `json:"severity"`
	Package  string            `json:"package"`
}

// Entry is one immutable audit record. The raw bypass token never appears
// here; only its redacted fingerprint does.
type Entry struct {
	ID               string              `json:"id"`
	RunID            string              `json:"run_id"`
	Timestamp        time.Time           `json:"timestamp"`
	Decision         Decision            `json:"decision"`
	Reason           string              `json:"reason,omitempty"`
	TokenFingerprint string              `json:"token_fingerprint,omitempty"`
	Target           string              `json:"target,omitempty"`
	Overridden       []OverriddenFinding `json:"overridden,omitempty"`
}

// Sink is an append-only destination for audit entries. Appends must be
// atomic: an entry is either fully recorded or not at all.
type Sink interface {
	Append(ctx context.Context, e Entry) error
	Close() error
}

// Fingerprint derives the redacted token fingerprint stored in audit
// entries. A truncated SHA-256 is enough to correlate entries produced by
// the same token without ever disclosing it.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:6])
}

// Summarize converts violations into their audit form.
func Summarize(violations []findings.Finding) []OverriddenFinding {
	if len(violations) == 0 {
		return nil
	}
	out := make([]OverriddenFinding, len(violations))
	for i, v := range violations {
		out[i] = OverriddenFinding{ID: v.ID, Severity: v.Severity, Package: v.Package}
	}
	return out
}
