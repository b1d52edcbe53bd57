// File: cmd/wiring.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vulngate/vulngate/internal/audit"
	"github.com/vulngate/vulngate/internal/bypass"
	"github.com/vulngate/vulngate/internal/config"
	"github.com/vulngate/vulngate/internal/policy"
)

// buildPolicy resolves the configured severity policy.
func buildPolicy(cfg *config.Config) (policy.Policy, error) {
	threshold, err := cfg.Policy.Threshold()
	if err != nil {
		return policy.Policy{}, err
	}
	return policy.Policy{
		SeverityThreshold: threshold,
		Exceptions:        append([]string(nil), cfg.Policy.Exceptions...),
	}, nil
}

// buildAuthority assembles the bypass authority and its audit trail. When no
// bypass secret is configured it returns a nil authority and the gate fails
// closed on every violation. The returned cleanup closes the sinks and the
// database pool.
func buildAuthority(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*bypass.Authority, func(), error) {
	if cfg.Bypass.Secret == "" {
		return nil, func() {}, nil
	}

	fileSink, err := audit.NewFileSink(cfg.Audit.LogFile, logger,
		audit.WithRetries(cfg.Audit.MaxRetries, cfg.Audit.RetryBackoff))
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit log: %w", err)
	}

	sinks := []audit.Sink{fileSink}
	var pool *pgxpool.Pool
	if cfg.Audit.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.Audit.DatabaseURL)
		if err != nil {
			fileSink.Close()
			return nil, nil, fmt.Errorf("connecting to audit database: %w", err)
		}
		pgSink, err := audit.NewPostgresSink(ctx, pool, logger)
		if err != nil {
			pool.Close()
			fileSink.Close()
			return nil, nil, err
		}
		sinks = append(sinks, pgSink)
	}

	sink := audit.Tee(sinks...)
	cleanup := func() {
		if err := sink.Close(); err != nil {
			logger.Warn("failed to close audit sink", zap.Error(err))
		}
		if pool != nil {
			pool.Close()
		}
	}

	authority, err := bypass.NewAuthority(bypass.Config{
		Mode:   bypass.Mode(cfg.Bypass.Mode),
		Secret: cfg.Bypass.Secret,
	}, sink, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return authority, cleanup, nil
}
