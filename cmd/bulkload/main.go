package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rshade/bulkload/internal/cli"
	"github.com/rshade/bulkload/pkg/version"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(version.GetVersion())
	return root.ExecuteContext(ctx)
}

func main() {
	if err := run(); err != nil {
		code := extractExitCode(err)
		var runErr *cli.RunFailedError
		if !errors.As(err, &runErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(code)
	}
}

// extractExitCode returns the exit code carried by a RunFailedError, 1 for any
// other error and 0 for nil.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}
	var runErr *cli.RunFailedError
	if errors.As(err, &runErr) {
		return runErr.ExitCode
	}
	return 1
}
