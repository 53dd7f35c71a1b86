package main

import (
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// config describes a stress workload. Zero durations disable the
// corresponding behaviour.
type config struct {
	Workers        int           `yaml:"workers"`
	Ops            int           `yaml:"ops"`
	Span           int           `yaml:"span"`
	MaxLen         int           `yaml:"max_len"`
	ReadRatio      float64       `yaml:"read_ratio"`
	DowngradeRatio float64       `yaml:"downgrade_ratio"`
	TryRatio       float64       `yaml:"try_ratio"`
	CancelRatio    float64       `yaml:"cancel_ratio"`
	WaitTimeout    time.Duration `yaml:"wait_timeout"`
	Hold           time.Duration `yaml:"hold"`
	Fair           bool          `yaml:"fair"`
	Seed           uint64        `yaml:"seed"`
}

func defaultConfig() config {
	return config{
		Workers:        8,
		Ops:            10000,
		Span:           1024,
		MaxLen:         64,
		ReadRatio:      0.7,
		DowngradeRatio: 0.1,
		TryRatio:       0.1,
		CancelRatio:    0.1,
		WaitTimeout:    100 * time.Microsecond,
		Hold:           0,
		Seed:           1,
	}
}

// loadConfig reads a YAML workload file over the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, xerrors.Errorf("failed to read config: %v", err)
	}

	err = yaml.UnmarshalStrict(data, &cfg)
	if err != nil {
		return cfg, xerrors.Errorf("failed to parse config %s: %v", path, err)
	}

	return cfg, nil
}

// Validate rejects workloads that cannot run.
func (c config) Validate() error {
	switch {
	case c.Workers <= 0:
		return xerrors.Errorf("workers must be positive, got %d", c.Workers)
	case c.Ops < 0:
		return xerrors.Errorf("ops must not be negative, got %d", c.Ops)
	case c.Span <= 0:
		return xerrors.Errorf("span must be positive, got %d", c.Span)
	case c.MaxLen <= 0 || c.MaxLen > c.Span:
		return xerrors.Errorf("max_len must be in [1, span=%d], got %d", c.Span, c.MaxLen)
	case c.WaitTimeout < 0 || c.Hold < 0:
		return xerrors.New("durations must not be negative")
	}

	ratios := map[string]float64{
		"read_ratio":      c.ReadRatio,
		"downgrade_ratio": c.DowngradeRatio,
		"try_ratio":       c.TryRatio,
		"cancel_ratio":    c.CancelRatio,
	}
	for name, r := range ratios {
		if r < 0 || r > 1 {
			return xerrors.Errorf("%s must be in [0, 1], got %v", name, r)
		}
	}
	if c.TryRatio+c.CancelRatio > 1 {
		return xerrors.Errorf("try_ratio + cancel_ratio must not exceed 1, got %v",
			c.TryRatio+c.CancelRatio)
	}

	return nil
}

var workloadFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "the path to a yaml workload file",
	},
	&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "number of concurrent workers"},
	&cli.IntFlag{Name: "ops", Aliases: []string{"n"}, Usage: "operations per worker"},
	&cli.IntFlag{Name: "span", Usage: "size of the locked address space"},
	&cli.IntFlag{Name: "max-len", Usage: "maximum length of a locked range"},
	&cli.Float64Flag{Name: "read-ratio", Usage: "fraction of reader acquisitions"},
	&cli.Float64Flag{Name: "downgrade-ratio", Usage: "fraction of writers downgraded while held"},
	&cli.Float64Flag{Name: "try-ratio", Usage: "fraction of acquisitions made with try-lock first"},
	&cli.Float64Flag{Name: "cancel-ratio", Usage: "fraction of acquisitions bounded by --wait-timeout"},
	&cli.DurationFlag{Name: "wait-timeout", Usage: "deadline of cancellable acquisitions"},
	&cli.DurationFlag{Name: "hold", Usage: "time a range is held"},
	&cli.BoolFlag{Name: "fair", Usage: "guard the tree with a fair ticket lock"},
	&cli.Uint64Flag{Name: "seed", Usage: "random seed of the workload"},
}

// configFromContext layers the command line flags over the YAML file, if
// any, and the defaults.
func configFromContext(c *cli.Context) (config, error) {
	cfg := defaultConfig()

	if path := c.String("config"); path != "" {
		var err error
		cfg, err = loadConfig(path)
		if err != nil {
			return cfg, err
		}
	}

	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("ops") {
		cfg.Ops = c.Int("ops")
	}
	if c.IsSet("span") {
		cfg.Span = c.Int("span")
	}
	if c.IsSet("max-len") {
		cfg.MaxLen = c.Int("max-len")
	}
	if c.IsSet("read-ratio") {
		cfg.ReadRatio = c.Float64("read-ratio")
	}
	if c.IsSet("downgrade-ratio") {
		cfg.DowngradeRatio = c.Float64("downgrade-ratio")
	}
	if c.IsSet("try-ratio") {
		cfg.TryRatio = c.Float64("try-ratio")
	}
	if c.IsSet("cancel-ratio") {
		cfg.CancelRatio = c.Float64("cancel-ratio")
	}
	if c.IsSet("wait-timeout") {
		cfg.WaitTimeout = c.Duration("wait-timeout")
	}
	if c.IsSet("hold") {
		cfg.Hold = c.Duration("hold")
	}
	if c.IsSet("fair") {
		cfg.Fair = c.Bool("fair")
	}
	if c.IsSet("seed") {
		cfg.Seed = c.Uint64("seed")
	}

	err := cfg.Validate()
	if err != nil {
		return cfg, xerrors.Errorf("invalid workload: %v", err)
	}

	return cfg, nil
}
