package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/fanout"
	"go.trai.ch/fanout/adapters/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fanout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_OverlaysFileOnDefaults(t *testing.T) {
	path := writeConfig(t, `
max_cache_size: 256
default_ttl: 5m
max_concurrency: 16
max_retries: 4
backoff_base: 1.5
backoff_cap: 10s
attempt_timeout: 30s
overall_deadline: 2m
per_kind_worker_count: 3
queue_poll_timeout: 100ms
`)

	opts, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, 256, opts.MaxCacheSize)
	require.Equal(t, 5*time.Minute, opts.DefaultTTL)
	require.Equal(t, 16, opts.MaxConcurrency)
	require.Equal(t, 4, opts.MaxRetries)
	require.InDelta(t, 1.5, opts.BackoffBase, 1e-9)
	require.Equal(t, 10*time.Second, opts.BackoffCap)
	require.Equal(t, 30*time.Second, opts.AttemptTimeout)
	require.Equal(t, 2*time.Minute, opts.OverallDeadline)
	require.Equal(t, 3, opts.PerKindWorkers)
	require.Equal(t, 100*time.Millisecond, opts.QueuePollTimeout)

	// Untouched fields keep their defaults.
	require.Equal(t, fanout.DefaultOptions().CleanupInterval, opts.CleanupInterval)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "max_concurrency: 2\n")

	opts, err := config.Load(path)
	require.NoError(t, err)

	want := fanout.DefaultOptions()
	want.MaxConcurrency = 2
	require.Equal(t, want, opts)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "failed to read config file")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "max_cache_size: [not an int\n")

	_, err := config.Load(path)
	require.ErrorContains(t, err, "failed to parse config file")
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "default_ttl: quarterly\n")

	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrInvalidDuration)
}

func TestLoad_ValidatesResult(t *testing.T) {
	path := writeConfig(t, "max_concurrency: -1\n")

	_, err := config.Load(path)
	require.ErrorIs(t, err, fanout.ErrInvalidOptions)
}
