package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/bulkload/internal/config"
	"github.com/rshade/bulkload/internal/logging"
)

// setupLogging configures logging from the loaded configuration and CLI flags.
func setupLogging(cmd *cobra.Command, cfg *config.Config) logging.LogPathResult {
	loggingCfg := cfg.Logging

	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = logging.FormatConsole
		loggingCfg.File = ""
	}

	lc := loggingCfg.ToLoggingConfig()
	lc.Caller = debug
	result := logging.NewLoggerWithPath(lc)
	logger = logging.ComponentLogger(result.Logger, "cli")

	if result.UsingFile {
		logging.PrintLogPathMessage(cmd.ErrOrStderr(), result.FilePath)
	} else if result.FallbackUsed {
		logging.PrintFallbackWarning(cmd.ErrOrStderr(), result.FallbackReason)
	}

	ctx := result.Logger.WithContext(cmd.Context())
	cmd.SetContext(ctx)

	logger.Debug().Str("command", cmd.Name()).Str("config", cfg.Path()).Msg("command started")

	return result
}

// cleanupLogging closes the log file handle.
func cleanupLogging(_ *cobra.Command, logResult *logging.LogPathResult) error {
	if logResult != nil {
		return logResult.Close()
	}
	return nil
}
