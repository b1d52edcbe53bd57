// File: internal/audit/file.go
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 50 * time.Millisecond
)

// FileSink appends audit entries to a local JSONL file. The file is opened
// with O_APPEND and every entry is written as a single complete line under a
// mutex, so concurrent appends never interleave.
type FileSink struct {
	mu      sync.Mutex
	file    *os.File
	log     *zap.Logger
	retries int
	backoff time.Duration
}

// FileSinkOption customizes a FileSink.
type FileSinkOption func(*FileSink)

// WithRetries bounds how many times a failed append is retried before the
// sink gives up and reports the failure.
func WithRetries(n int, backoff time.Duration) FileSinkOption {
	return func(s *FileSink) {
		if n >= 0 {
			s.retries = n
		}
		if backoff > 0 {
			s.backoff = backoff
		}
	}
}

// NewFileSink opens (or creates) the audit log at path, creating parent
// directories as needed.
func NewFileSink(path string, logger *zap.Logger, opts ...FileSinkOption) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating audit log directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	s := &FileSink{
		file:    f,
		log:     logger.Named("audit"),
		retries: defaultMaxRetries,
		backoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Append writes one entry as a JSON line. The marshal happens before the
// write so a partially encoded entry can never reach the file; the write is
// a single call so POSIX append semantics keep it atomic.
func (s *FileSink) Append(ctx context.Context, e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, lastErr = s.file.Write(line); lastErr == nil {
			return nil
		}
		s.log.Warn("audit append failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
		time.Sleep(s.backoff)
	}
	return fmt.Errorf("appending audit entry after %d attempts: %w", s.retries+1, lastErr)
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		s.log.Warn("audit log sync failed", zap.Error(err))
	}
	return s.file.Close()
}
