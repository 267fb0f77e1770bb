package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdFlags(t *testing.T) {
	cmd := rootCmd()

	for _, name := range []string{"config", "data-dir", "addr", "log-level"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{
		"--data-dir", filepath.Join(t.TempDir(), "data"),
		"--addr", "127.0.0.1:0",
		"--log-level", "error",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, cmd.ExecuteContext(ctx))
}

func TestRunRejectsBadConfig(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"--log-level", "loud", "--addr", "127.0.0.1:0", "--data-dir", t.TempDir()})
	assert.Error(t, cmd.Execute())
}
