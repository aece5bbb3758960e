// Package cli implements the bulkload command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/bulkload/internal/config"
	"github.com/rshade/bulkload/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// isWriterTerminal reports whether w is an *os.File attached to a terminal.
func isWriterTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isTerminal(f)
	}
	return false
}

// logger is the package-level logger for CLI operations.
var logger = zerolog.Nop() //nolint:gochecknoglobals // Required for zerolog context integration

type configKey struct{}

// configFromContext returns the configuration loaded by the root command, or
// the defaults when the command ran without it (as in tests).
func configFromContext(ctx context.Context) *config.Config {
	if ctx != nil {
		if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok && cfg != nil {
			return cfg
		}
	}
	return config.Default()
}

// NewRootCmd creates the root Cobra command for the bulkload CLI.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command with an explicit env lookup for
// testability.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	var (
		logResult  *logging.LogPathResult
		configPath string
	)

	cmd := &cobra.Command{
		Use:           "bulkload",
		Short:         "Rate-limited batch uploader",
		Long:          "bulkload: split a list of items into batches and upload them under a concurrency cap and a minimum spacing",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := config.ResolvePath(configPath, lookupEnv)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err = cfg.ApplyEnv(lookupEnv); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, configKey{}, cfg))

			result := setupLogging(cmd, cfg)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(cmd, logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&configPath, "config", "",
		fmt.Sprintf("config file (default %s, or $%s)", config.DefaultPath, config.EnvConfig))
	cmd.AddCommand(NewRunCmd(), newConfigCmd())

	return cmd
}

const rootCmdExample = `  # Upload a JSON array in batches of 50, at most 3 at a time
  bulkload run --input items.json --batch-size 50 --max-concurrent 3

  # Record failed batches to a file and exit non-zero on any failure
  bulkload run --input items.ndjson --log-file errors.log --fail-on-error

  # Write Prometheus textfile metrics for node_exporter
  bulkload run --input items.yaml --metrics-file /var/lib/node_exporter/bulkload.prom

  # Initialize and validate configuration
  bulkload config init
  bulkload config validate`

// newConfigCmd creates the config command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigValidateCmd())
	return cmd
}
