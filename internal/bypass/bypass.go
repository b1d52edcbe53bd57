// File: internal/bypass/bypass.go
package bypass

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vulngate/vulngate/internal/audit"
	"github.com/vulngate/vulngate/internal/findings"
)

// Mode selects how bypass tokens are validated.
type Mode string

const (
	// ModeStatic compares the token against a configured shared secret.
	ModeStatic Mode = "static"
	// ModeSigned validates the token as a short-lived HS256 JWT signed with
	// the configured secret. Preferred over static secrets: tokens expire on
	// their own and cannot be replayed indefinitely.
	ModeSigned Mode = "signed"
)

// Config is the explicit trust configuration handed to the Authority. The
// authority never reads the environment itself; whoever constructs the
// config owns the trust boundary.
type Config struct {
	Mode   Mode
	Secret string
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeStatic, ModeSigned:
	default:
		return fmt.Errorf("bypass mode must be %q or %q, got %q", ModeStatic, ModeSigned, c.Mode)
	}
	if c.Secret == "" {
		return fmt.Errorf("bypass secret is not configured")
	}
	return nil
}

// Request is an operator-supplied override attempt: a token plus a
// human-supplied reason. Both must be present together to count as a
// request at all.
type Request struct {
	Token  string
	Reason string
}

// Status classifies the authority's decision.
type Status int

const (
	// NotRequested means no bypass request was supplied.
	NotRequested Status = iota
	// Rejected means a request was supplied but failed validation.
	Rejected
	// Granted means the override is authorized and audited.
	Granted
)

// Rejection causes surfaced in decisions and audit entries.
const (
	CauseInvalidToken     = "invalid token"
	CauseMissingReason    = "missing reason"
	CauseAuditUnavailable = "audit log unavailable"
)

// Decision is the authority's terminal answer for one request.
type Decision struct {
	Status Status
	// Reason is the operator's justification when Status is Granted.
	Reason string
	// Cause explains a rejection.
	Cause string
}

// Authority validates bypass requests and records every Granted or Rejected
// decision in the audit trail. It fails closed: an override that cannot be
// audited is not granted.
type Authority struct {
	cfg  Config
	sink audit.Sink
	log  *zap.Logger
	now  func() time.Time
}

// NewAuthority wires an authority to its audit sink.
func NewAuthority(cfg Config, sink audit.Sink, logger *zap.Logger) (*Authority, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, fmt.Errorf("audit sink is required")
	}
	return &Authority{
		cfg:  cfg,
		sink: sink,
		log:  logger.Named("bypass"),
		now:  time.Now,
	}, nil
}

// Authorize evaluates one request against the configured secret. The
// overridden findings are the violations the bypass would wave through;
// they end up in the audit entry when the override is granted.
func (a *Authority) Authorize(ctx context.Context, req *Request, runID, target string, overridden []findings.Finding) Decision {
	if req == nil {
		return Decision{Status: NotRequested}
	}

	if !a.tokenValid(req.Token) {
		return a.reject(ctx, req, runID, target, CauseInvalidToken)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return a.reject(ctx, req, runID, target, CauseMissingReason)
	}

	entry := audit.Entry{
		ID:               uuid.New().String(),
		RunID:            runID,
		Timestamp:        a.now().UTC(),
		Decision:         audit.DecisionGranted,
		Reason:           req.Reason,
		TokenFingerprint: audit.Fingerprint(req.Token),
		Target:           target,
		Overridden:       audit.Summarize(overridden),
	}
	if err := a.sink.Append(ctx, entry); err != nil {
		// A security override that cannot be recorded must not be granted.
		a.log.Error("refusing bypass: audit append failed", zap.Error(err))
		return Decision{Status: Rejected, Cause: CauseAuditUnavailable}
	}

	a.log.Warn("policy violation bypassed",
		zap.String("run_id", runID),
		zap.String("reason", req.Reason),
		zap.String("token_fingerprint", entry.TokenFingerprint),
		zap.Int("overridden_findings", len(overridden)))
	return Decision{Status: Granted, Reason: req.Reason}
}

// RecordUnused audits a bypass request that arrived alongside a clean
// report. Best effort: a failure here does not change the verdict.
func (a *Authority) RecordUnused(ctx context.Context, req *Request, runID, target string) {
	if req == nil {
		return
	}
	entry := audit.Entry{
		ID:               uuid.New().String(),
		RunID:            runID,
		Timestamp:        a.now().UTC(),
		Decision:         audit.DecisionUnused,
		Reason:           req.Reason,
		TokenFingerprint: audit.Fingerprint(req.Token),
		Target:           target,
	}
	if err := a.sink.Append(ctx, entry); err != nil {
		a.log.Warn("failed to audit unused bypass attempt", zap.Error(err))
	}
}

func (a *Authority) reject(ctx context.Context, req *Request, runID, target, cause string) Decision {
	entry := audit.Entry{
		ID:               uuid.New().String(),
		RunID:            runID,
		Timestamp:        a.now().UTC(),
		Decision:         audit.DecisionRejected,
		Reason:           cause,
		TokenFingerprint: audit.Fingerprint(req.Token),
		Target:           target,
	}
	if err := a.sink.Append(ctx, entry); err != nil {
		a.log.Error("failed to audit rejected bypass", zap.Error(err))
	}
	a.log.Warn("bypass request rejected", zap.String("run_id", runID), zap.String("cause", cause))
	return Decision{Status: Rejected, Cause: cause}
}

// tokenValid dispatches on the configured mode.
func (a *Authority) tokenValid(token string) bool {
	switch a.cfg.Mode {
	case ModeSigned:
		return a.signedTokenValid(token)
	default:
		// Constant-time comparison; a plain == would leak how much of the
		// token prefix matched.
		return subtle.ConstantTimeCompare([]byte(token), []byte(a.cfg.Secret)) == 1
	}
}

// signedTokenValid parses the token as an HS256 JWT. Expiry and
// not-before are enforced by the parser; an absent exp claim is rejected so
// tokens cannot be minted once and reused forever.
func (a *Authority) signedTokenValid(token string) bool {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(a.cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		a.log.Debug("signed bypass token rejected", zap.Error(err))
		return false
	}
	return parsed.Valid
}
