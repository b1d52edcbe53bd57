// File: internal/audit/postgres_test.go
package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vulngate/vulngate/internal/findings"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestNewPostgresSink_PingFailure(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectPing().WillReturnError(errors.New("database unavailable"))

	sink, err := NewPostgresSink(context.Background(), pool, zaptest.NewLogger(t))
	assert.Error(t, err)
	assert.Nil(t, sink)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresSink_Append(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectPing()

	sink, err := NewPostgresSink(context.Background(), pool, zaptest.NewLogger(t))
	require.NoError(t, err)

	entry := Entry{
		ID:               "e-1",
		RunID:            "run-1",
		Timestamp:        time.Date(2025, 11, 2, 9, 30, 0, 0, time.UTC),
		Decision:         DecisionGranted,
		Reason:           "Critical production hotfix",
		TokenFingerprint: Fingerprint("token"),
		Target:           "registry.example.com/payments/api:1.42.0",
		Overridden: []OverriddenFinding{
			{ID: "CVE-2024-0002", Severity: findings.SeverityCritical, Package: "openssl"},
		},
	}
	overridden, err := json.Marshal(entry.Overridden)
	require.NoError(t, err)

	pool.ExpectExec("INSERT INTO bypass_audit").
		WithArgs(
			entry.ID, entry.RunID, entry.Timestamp.UTC(), string(entry.Decision),
			entry.Reason, entry.TokenFingerprint, entry.Target, overridden,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, sink.Append(context.Background(), entry))
	assert.NoError(t, sink.Close())
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresSink_AppendFailure(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectPing()

	sink, err := NewPostgresSink(context.Background(), pool, zaptest.NewLogger(t))
	require.NoError(t, err)

	pool.ExpectExec("INSERT INTO bypass_audit").
		WillReturnError(errors.New("connection reset"))

	err = sink.Append(context.Background(), Entry{ID: "e-1", Decision: DecisionRejected})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "inserting audit entry")
}
