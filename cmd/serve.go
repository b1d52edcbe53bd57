// File: cmd/serve.go
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vulngate/vulngate/internal/observability"
	"github.com/vulngate/vulngate/internal/service"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd(a *app) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the long-lived HTTP evaluation service",
		Long: `Serve exposes the policy gate over HTTP so CI runners can POST findings
documents to /v1/evaluate instead of shelling out to the binary. The
configured policy applies by default; requests may narrow or relax it
per evaluation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := a.cfg

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}

			pol, err := buildPolicy(cfg)
			if err != nil {
				return err
			}

			authority, cleanup, err := buildAuthority(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			logger.Info("starting evaluation service",
				zap.String("addr", cfg.Server.Addr),
				zap.Stringer("threshold", pol.SeverityThreshold),
				zap.Bool("bypass_enabled", authority != nil))

			srv := service.New(cfg.Server, pol, authority, logger)
			return srv.Run(ctx)
		},
	}

	serveCmd.Flags().String("addr", "", "Listen address for the evaluation service. (Overrides config/env)")

	return serveCmd
}
