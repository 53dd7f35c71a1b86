package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestApp_Config(t *testing.T) {
	path := writeFile(t, "workers: 2\nspan: 16\nmax_len: 4\n")
	out := new(bytes.Buffer)

	err := newApp(out).Run([]string{"rlstress", "config", "--config", path, "--workers", "5", "--fair"})
	require.NoError(t, err)

	var cfg config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &cfg))
	require.Equal(t, 5, cfg.Workers)
	require.Equal(t, 16, cfg.Span)
	require.Equal(t, 4, cfg.MaxLen)
	require.True(t, cfg.Fair)
	require.Equal(t, defaultConfig().Seed, cfg.Seed)
}

func TestApp_ConfigInvalid(t *testing.T) {
	err := newApp(new(bytes.Buffer)).Run([]string{"rlstress", "config", "--span", "0"})
	require.EqualError(t, err, "invalid workload: span must be positive, got 0")
}

func TestApp_Run(t *testing.T) {
	out := new(bytes.Buffer)

	err := newApp(out).Run([]string{
		"rlstress", "--log-level", "info", "run",
		"--workers", "4", "--ops", "200", "--span", "64", "--max-len", "8",
		"--wait-timeout", "50us",
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), "workload finished")
}

func TestApp_BadLogLevel(t *testing.T) {
	err := newApp(new(bytes.Buffer)).Run([]string{"rlstress", "--log-level", "loud", "run"})
	require.Error(t, err)
}

func TestRun_Fair(t *testing.T) {
	logger, err := newLogger(new(bytes.Buffer), "warn")
	require.NoError(t, err)

	cfg := defaultConfig()
	cfg.Workers = 4
	cfg.Ops = 200
	cfg.Span = 32
	cfg.MaxLen = 8
	cfg.Fair = true

	err = run(t.Context(), cfg, "", logger)
	require.NoError(t, err)
}

func TestRun_Metrics(t *testing.T) {
	logger, err := newLogger(new(bytes.Buffer), "warn")
	require.NoError(t, err)

	cfg := defaultConfig()
	cfg.Ops = 50

	err = run(t.Context(), cfg, "127.0.0.1:0", logger)
	require.NoError(t, err)
}
