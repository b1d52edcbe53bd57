// File: internal/audit/file_test.go
package audit

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vulngate/vulngate/internal/findings"
)

func TestFileSink_AppendAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	entry := Entry{
		ID:               "e-1",
		RunID:            "run-1",
		Timestamp:        time.Date(2025, 11, 2, 9, 30, 0, 0, time.UTC),
		Decision:         DecisionGranted,
		Reason:           "Critical production hotfix",
		TokenFingerprint: Fingerprint("super-secret-token"),
		Target:           "registry.example.com/payments/api:1.42.0",
		Overridden: []OverriddenFinding{
			{ID: "CVE-2024-0002", Severity: findings.SeverityCritical, Package: "openssl"},
		},
	}
	require.NoError(t, sink.Append(context.Background(), entry))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Entry
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, DecisionGranted, got.Decision)
	assert.Equal(t, "Critical production hotfix", got.Reason)
	require.Len(t, got.Overridden, 1)
	assert.Equal(t, "CVE-2024-0002", got.Overridden[0].ID)

	// The raw token must never appear anywhere in the log.
	assert.NotContains(t, string(data), "super-secret-token")
	assert.Contains(t, string(data), "sha256:")
}

func TestFileSink_AppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	// Two sink lifetimes against the same file; the second must not truncate
	// what the first wrote.
	for i := 0; i < 2; i++ {
		sink, err := NewFileSink(path, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NoError(t, sink.Append(context.Background(), Entry{ID: fmt.Sprintf("e-%d", i), Decision: DecisionRejected}))
		require.NoError(t, sink.Close())
	}

	assert.Equal(t, 2, countLines(t, path))
}

func TestFileSink_ConcurrentAppendsDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := Entry{
				ID:       fmt.Sprintf("e-%d", i),
				Decision: DecisionGranted,
				Reason:   "load test entry with a reasonably long reason string to widen the write",
			}
			assert.NoError(t, sink.Append(context.Background(), e))
		}(i)
	}
	wg.Wait()
	require.NoError(t, sink.Close())

	// Every line must be independently parseable.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e), "corrupted line: %s", scanner.Text())
		count++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, writers, count)
}

func TestFileSink_CanceledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer sink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = sink.Append(ctx, Entry{ID: "e-1", Decision: DecisionGranted})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, countLines(t, path))
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("bypass-token-42")

	assert.NotContains(t, fp, "bypass-token-42")
	assert.Len(t, fp, len("sha256:")+12)
	// Deterministic, so entries produced by the same token correlate.
	assert.Equal(t, fp, Fingerprint("bypass-token-42"))
	assert.NotEqual(t, fp, Fingerprint("bypass-token-43"))
	assert.Empty(t, Fingerprint(""))
}

func TestSummarize(t *testing.T) {
	assert.Nil(t, Summarize(nil))

	out := Summarize([]findings.Finding{
		{ID: "CVE-1", Severity: findings.SeverityHigh, Package: "openssl", FixedVersion: "1.1.1"},
	})
	require.Len(t, out, 1)
	assert.Equal(t, OverriddenFinding{ID: "CVE-1", Severity: findings.SeverityHigh, Package: "openssl"}, out[0])
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	require.NoError(t, scanner.Err())
	return count
}
