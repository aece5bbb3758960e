package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rshade/bulkload/internal/cli"
	"github.com/rshade/bulkload/internal/config"
)

// testEnv isolates commands from the real environment.
func testEnv(extra map[string]string) func(string) (string, bool) {
	env := map[string]string{config.EnvLogLevel: "error"}
	for k, v := range extra {
		env[k] = v
	}
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := cli.NewRootCmdWithEnv("test", testEnv(env))
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
