// File: cmd/eval.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vulngate/vulngate/internal/bypass"
	"github.com/vulngate/vulngate/internal/findings"
	"github.com/vulngate/vulngate/internal/gate"
	"github.com/vulngate/vulngate/internal/observability"
	"github.com/vulngate/vulngate/internal/reporting"
)

// Per-run bypass credentials come from the environment, never from flags, so
// the token does not leak into shell history or CI step definitions.
const (
	envBypassToken  = "VULNGATE_BYPASS_TOKEN"
	envBypassReason = "VULNGATE_BYPASS_REASON"
)

// newEvalCmd creates and configures the `eval` command.
func newEvalCmd(a *app) *cobra.Command {
	evalCmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluates scanner findings against the severity policy",
		Long: `Eval loads a vulnerability findings document, applies the configured
severity policy and exits 0 (pass or audited bypass), 1 (policy violated)
or 2 (broken input or configuration).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Past this point every error is operational, not a usage mistake.
			cmd.SilenceUsage = true

			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := a.cfg

			pol, err := buildPolicy(cfg)
			if err != nil {
				return err
			}
			if exceptions, _ := cmd.Flags().GetStringArray("exception"); len(exceptions) > 0 {
				pol.Exceptions = append(pol.Exceptions, exceptions...)
			}
			if cmd.Flags().Changed("threshold") {
				raw, _ := cmd.Flags().GetString("threshold")
				sev, err := findings.ParseSeverity(raw)
				if err != nil {
					return err
				}
				pol.SeverityThreshold = sev
			}

			scanner, _ := cmd.Flags().GetString("scanner")
			if scanner == "" {
				scanner = cfg.Scanners.Default
			}
			path, _ := cmd.Flags().GetString("findings")
			if path == "" {
				path = cfg.Scanners.FindingsPath(scanner)
			}

			authority, cleanup, err := buildAuthority(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			var req *bypass.Request
			token, reason := os.Getenv(envBypassToken), os.Getenv(envBypassReason)
			if token != "" || reason != "" {
				req = &bypass.Request{Token: token, Reason: reason}
				if authority == nil {
					logger.Warn("bypass requested but no bypass secret is configured; request ignored")
				}
			}

			logger.Info("evaluating findings",
				zap.String("scanner", scanner),
				zap.String("path", path),
				zap.Stringer("threshold", pol.SeverityThreshold))

			g := gate.New(pol, authority, logger)
			verdict, err := g.RunFile(ctx, path, req)
			if err != nil {
				return err
			}

			outputPath, _ := cmd.Flags().GetString("output")
			format, _ := cmd.Flags().GetString("format")
			if err := writeReport(verdict, format, outputPath, logger); err != nil {
				return err
			}

			if verdict.Status == gate.StatusFail {
				return &FailError{Summary: verdict.Summary()}
			}
			return nil
		},
	}

	evalCmd.Flags().StringP("scanner", "s", "", "Scanner whose results to evaluate. (Defaults to scanners.default)")
	evalCmd.Flags().String("findings", "", "Explicit path to the findings document. (Overrides the derived scanner path)")
	evalCmd.Flags().StringP("threshold", "t", "", "Severity threshold: LOW, MEDIUM, HIGH or CRITICAL. (Overrides config/env)")
	evalCmd.Flags().StringArrayP("exception", "e", nil, "Package name to exempt from the policy. May be repeated.")
	evalCmd.Flags().StringP("output", "o", "stdout", "Output target for the verdict report.")
	evalCmd.Flags().StringP("format", "f", "text", "Format for the verdict report ('text', 'json', 'sarif').")

	return evalCmd
}

// writeReport renders the verdict in the requested format.
func writeReport(verdict *gate.Verdict, format, outputPath string, logger *zap.Logger) error {
	reporter, err := reporting.New(format, outputPath, logger, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	if err := reporter.Write(verdict); err != nil {
		reporter.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to close reporter: %w", err)
	}
	return nil
}
