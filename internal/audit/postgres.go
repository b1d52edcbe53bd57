// File: internal/audit/postgres.go
package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts the pgxpool.Pool surface the sink needs, so tests can
// substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink writes audit entries to a shared bypass_audit table. Each
// entry is a single INSERT, so the append is transactional by itself.
type PostgresSink struct {
	pool DBPool
	log  *zap.Logger
}

const insertEntrySQL = `
    INSERT INTO bypass_audit (id, run_id, recorded_at, decision, reason, token_fingerprint, target, overridden)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`

// NewPostgresSink verifies connectivity and returns a sink backed by the
// given pool. The caller owns the pool's lifecycle.
func NewPostgresSink(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresSink, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}
	return &PostgresSink{
		pool: pool,
		log:  logger.Named("audit_pg"),
	}, nil
}

// Append inserts one entry. The overridden findings summary is stored as a
// JSONB column.
func (s *PostgresSink) Append(ctx context.Context, e Entry) error {
	overridden, err := json.Marshal(e.Overridden)
	if err != nil {
		return fmt.Errorf("encoding overridden findings: %w", err)
	}

	tag, err := s.pool.Exec(ctx, insertEntrySQL,
		e.ID, e.RunID, e.Timestamp.UTC(), string(e.Decision),
		e.Reason, e.TokenFingerprint, e.Target, overridden,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("audit insert affected %d rows, expected 1", tag.RowsAffected())
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresSink) Close() error { return nil }
