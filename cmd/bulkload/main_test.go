package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rshade/bulkload/internal/cli"
	"github.com/rshade/bulkload/pkg/version"
)

func TestMainComponents(t *testing.T) {
	t.Run("version available", func(t *testing.T) {
		assert.NotEmpty(t, version.GetVersion())
	})

	t.Run("cli root command", func(t *testing.T) {
		root := cli.NewRootCmd(version.GetVersion())
		if assert.NotNil(t, root) {
			assert.Equal(t, "bulkload", root.Use)
		}
	})
}

func TestExtractExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil error returns 0", err: nil, want: 0},
		{name: "run failure with exit code 2", err: &cli.RunFailedError{ExitCode: 2, Failed: 1, Total: 4}, want: 2},
		{name: "run failure with exit code 0", err: &cli.RunFailedError{ExitCode: 0, Failed: 1, Total: 1}, want: 0},
		{name: "wrapped run failure", err: fmt.Errorf("outer: %w", &cli.RunFailedError{ExitCode: 42}), want: 42},
		{name: "joined run failure", err: errors.Join(errors.New("outer"), &cli.RunFailedError{ExitCode: 3}), want: 3},
		{name: "generic error falls through", err: errors.New("generic error"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractExitCode(tt.err))
		})
	}
}
