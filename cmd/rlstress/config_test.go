package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, defaultConfig().Validate())
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "workers: 3\nspan: 32\nmax_len: 4\nwait_timeout: 2ms\nfair: true\n")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Workers)
	require.Equal(t, 32, cfg.Span)
	require.Equal(t, 4, cfg.MaxLen)
	require.Equal(t, 2*time.Millisecond, cfg.WaitTimeout)
	require.True(t, cfg.Fair)

	// Unset keys keep their defaults.
	require.Equal(t, defaultConfig().Ops, cfg.Ops)
	require.Equal(t, defaultConfig().ReadRatio, cfg.ReadRatio)
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := writeFile(t, "workers: 3\nthreads: 4\n")

	_, err := loadConfig(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*config)
		msg  string
	}{
		{"workers", func(c *config) { c.Workers = 0 }, "workers must be positive, got 0"},
		{"ops", func(c *config) { c.Ops = -1 }, "ops must not be negative, got -1"},
		{"span", func(c *config) { c.Span = 0 }, "span must be positive, got 0"},
		{"max_len", func(c *config) { c.MaxLen = 2048 }, "max_len must be in [1, span=1024], got 2048"},
		{"durations", func(c *config) { c.Hold = -time.Second }, "durations must not be negative"},
		{"ratio", func(c *config) { c.ReadRatio = 1.5 }, "read_ratio must be in [0, 1], got 1.5"},
		{"sum", func(c *config) { c.TryRatio, c.CancelRatio = 0.6, 0.6 },
			"try_ratio + cancel_ratio must not exceed 1, got 1.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mod(&cfg)
			require.EqualError(t, cfg.Validate(), tt.msg)
		})
	}
}
