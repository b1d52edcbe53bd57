// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vulngate/vulngate/internal/config"
	"github.com/vulngate/vulngate/internal/observability"
)

// Exit codes. A vulnerable image and a broken pipeline are different
// failures and CI needs to tell them apart.
const (
	ExitPass  = 0
	ExitFail  = 1
	ExitError = 2
)

// FailError marks a run that completed but did not pass the gate. Execute
// maps it to ExitFail instead of the generic error code.
type FailError struct {
	Summary string
}

func (e *FailError) Error() string { return e.Summary }

// app carries the resolved configuration from PersistentPreRunE to the
// subcommands.
type app struct {
	cfgFile string
	cfg     *config.Config
}

// NewRootCommand builds the vulngate command tree. Each invocation gets a
// fresh, isolated command so tests do not share state.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "vulngate",
		Short: "Vulngate is a severity policy gate for vulnerability scan results.",
		// Version is dynamically set at build time. See cmd/version.go.
		Version:       Version,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// This function runs before any command, setting up config and logging.
			v, err := a.initializeViper()
			if err != nil {
				return err
			}

			cfg, err := config.NewFromViper(v)
			if err != nil {
				// Initialize a fallback logger so the failure is still visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "vulngate"})
				return err
			}
			a.cfg = cfg

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("starting vulngate", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./vulngate.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "vulngate %s\n" .Version}}`)

	rootCmd.AddCommand(newEvalCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// initializeViper reads in config file and ENV variables if set.
func (a *app) initializeViper() (*viper.Viper, error) {
	v := viper.New()
	config.SetDefaults(v)

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("vulngate")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("VULNGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars.
	}
	return v, nil
}

// Execute runs the command tree and maps the outcome to an exit code.
func Execute(ctx context.Context) int {
	rootCmd := NewRootCommand()
	return exitCode(rootCmd.ExecuteContext(ctx))
}

func exitCode(err error) int {
	if err == nil {
		return ExitPass
	}

	var fail *FailError
	if errors.As(err, &fail) {
		// The gate worked as intended; the image just did not pass. The
		// verdict report already explains why.
		return ExitFail
	}

	if logger := observability.GetLogger(); logger != nil {
		logger.Error("command failed", zap.Error(err))
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	return ExitError
}
