// Command rlstress hammers a range lock tree with a random workload and
// checks that no two conflicting holders ever overlap.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

func main() {
	err := newApp(os.Stdout).Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rlstress: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "rlstress",
		Usage:     "stress a range lock tree",
		UsageText: "rlstress [global options] command [--config FILE] [flags]",
		Description: `Runs concurrent workers that read- and write-lock random ranges of a
shared address space through a single rangelock.Tree. Every holder marks its
range in a shadow map while inside; two conflicting holders overlapping is
reported as a violation and fails the run.

The workload can be described in a yaml file; flags override its values:

workers: 8
ops: 10000
span: 1024
max_len: 64
read_ratio: 0.7
downgrade_ratio: 0.1
try_ratio: 0.1
cancel_ratio: 0.1
wait_timeout: 100us
hold: 0s
fair: false
seed: 1`,
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "one of trace, debug, info, warn, error",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the workload",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "serve prometheus metrics on this address while running",
					},
				}, workloadFlags...),
				Action: func(c *cli.Context) error {
					logger, err := newLogger(out, c.String("log-level"))
					if err != nil {
						return err
					}

					cfg, err := configFromContext(c)
					if err != nil {
						return err
					}

					return run(c.Context, cfg, c.String("metrics-addr"), logger)
				},
			},
			{
				Name:  "config",
				Usage: "print the effective workload as yaml",
				Flags: workloadFlags,
				Action: func(c *cli.Context) error {
					cfg, err := configFromContext(c)
					if err != nil {
						return err
					}

					data, err := yaml.Marshal(cfg)
					if err != nil {
						return xerrors.Errorf("failed to encode config: %v", err)
					}

					_, err = out.Write(data)
					return err
				},
			},
		},
	}
}

// newLogger builds a human-readable console logger at the given level.
func newLogger(out io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), xerrors.Errorf("invalid log level: %v", err)
	}

	logout := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(logout).With().Timestamp().Logger().Level(lvl), nil
}
