// File: internal/audit/tee.go
package audit

import (
	"context"
	"errors"
)

// teeSink fans every entry out to all underlying sinks. An append only
// succeeds when every sink accepted the entry, so a tee keeps the
// fail-closed contract of its strictest member.
type teeSink struct {
	sinks []Sink
}

// Tee combines sinks into one. With a single sink it is returned unwrapped.
func Tee(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &teeSink{sinks: sinks}
}

func (t *teeSink) Append(ctx context.Context, entry Entry) error {
	var errs []error
	for _, s := range t.sinks {
		if err := s.Append(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *teeSink) Close() error {
	var errs []error
	for _, s := range t.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
