package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the configuration file, with environment overrides applied.

This includes:
- The version must satisfy >= 1.0.0, < 2.0.0
- batch_size, max_concurrent and min_time_ms must be at least 1 when set
- logging.format must be console or json`,
		Example: `  # Validate current configuration
  bulkload config validate

  # Validate and show the effective settings
  bulkload config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show the effective settings")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	cfg := configFromContext(cmd.Context())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cmd.Printf("Configuration is valid\n")

	if verbose {
		u := cfg.Upload
		cmd.Println()
		cmd.Println("Configuration details:")
		cmd.Printf("  File: %s\n", cfg.Path())
		cmd.Printf("  Version: %s\n", cfg.Version)
		cmd.Printf("  Batch size: %d\n", u.GetBatchSize())
		cmd.Printf("  Max concurrent: %d\n", u.GetMaxConcurrent())
		cmd.Printf("  Min time: %s\n", u.GetMinTime())
		cmd.Printf("  Native logging: %t\n", u.GetNativeLogging())
		cmd.Printf("  Await each: %t\n", u.AwaitEach)
		cmd.Printf("  Error log file: %s\n", u.LogFile)
		cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
		cmd.Printf("  Log file: %s\n", cfg.Logging.File)
	}

	return nil
}
