package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xlockkit/internal/appcfg"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"xlockctl"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_StressSucceeds(t *testing.T) {
	code, stdout, stderr := runCLI(t, "stress", "--workers", "4", "--keys", "2", "--iterations", "50")
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "status:              OK")
	assert.Contains(t, stdout, "operations:          200")
}

func TestRun_StressJSON(t *testing.T) {
	code, stdout, stderr := runCLI(t, "stress", "-w", "2", "-n", "10", "--mode", "try", "--json")
	require.Equal(t, 0, code, "stderr: %s", stderr)

	var rep stressReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.Equal(t, appcfg.ModeTry, rep.Mode)
	assert.Equal(t, uint64(20), rep.Operations+rep.TryExhausted)
	assert.True(t, rep.OK())
}

func TestRun_StressUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad mode", []string{"stress", "--mode", "spin"}},
		{"zero workers", []string{"stress", "--workers", "0"}},
		{"watch without config", []string{"stress", "--watch"}},
		{"unknown flag", []string{"stress", "--bogus"}},
		{"missing config", []string{"--config", "/nonexistent/xlockctl.yaml", "stress"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, 2, code)
		})
	}
}

func TestRun_ConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xlockctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("registry:\n  shard_count: 8\nstress:\n  workers: 3\n"), 0o600))

	code, stdout, stderr := runCLI(t, "-c", path, "config")
	require.Equal(t, 0, code, "stderr: %s", stderr)

	var cfg appcfg.Config
	require.NoError(t, json.Unmarshal([]byte(stdout), &cfg))
	assert.Equal(t, 8, cfg.Registry.ShardCount)
	assert.Equal(t, 3, cfg.Stress.Workers)
	assert.Equal(t, appcfg.Default().Janitor.Schedule, cfg.Janitor.Schedule)
}

func TestRun_ConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xlockctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("registry:\n  shard_count: 3\n"), 0o600))

	code, _, stderr := runCLI(t, "-c", path, "config")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "shard count")
}

func TestBuildLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xlockctl.log")
	logger, cleanup, err := buildLogger(appcfg.LogConfig{
		Level: "info", Format: "json", File: path, MaxSizeMB: 1, MaxBackups: 2,
	}, nil)
	require.NoError(t, err)

	logger.Info(context.Background(), "hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"app":"xlockctl"`)
}

func TestBuildLogger_InvalidFormat(t *testing.T) {
	_, _, err := buildLogger(appcfg.LogConfig{Level: "info", Format: "xml"}, nil)
	assert.Error(t, err)
}

func TestErrorTypes(t *testing.T) {
	inner := errors.New("inner")
	u := &usageError{err: inner}
	assert.ErrorIs(t, u, inner)
	assert.Equal(t, "inner", u.Error())
	assert.Equal(t, "exit status 1", (&exitError{code: 1}).Error())
	assert.True(t, isCLIUsageError(errors.New("flag provided but not defined: -bogus")))
	assert.False(t, isCLIUsageError(errors.New("boom")))
}
