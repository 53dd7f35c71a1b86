package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/llxisdsh/rangelock"
	"github.com/llxisdsh/rangelock/internal/check"
	"github.com/llxisdsh/rangelock/metrics"
)

const progressEvery = time.Second

// report summarises a finished workload.
type report struct {
	Stats      rangelock.Stats
	Ops        uint64
	Violations uint64
	Elapsed    time.Duration
}

func run(ctx context.Context, cfg config, metricsAddr string, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	opts := []rangelock.Option{rangelock.WithLogger(logger)}
	if cfg.Fair {
		opts = append(opts, rangelock.WithFairLock())
	}
	tree := rangelock.New(opts...)

	if metricsAddr != "" {
		shutdown, err := serveMetrics(metricsAddr, tree, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	logger.Info().
		Int("workers", cfg.Workers).
		Int("ops", cfg.Ops).
		Int("span", cfg.Span).
		Bool("fair", cfg.Fair).
		Msg("starting workload")

	rep, err := runWorkload(ctx, cfg, tree, logger)

	logger.Info().
		Uint64("ops", rep.Ops).
		Uint64("acquired", rep.Stats.Acquired).
		Uint64("contended", rep.Stats.Contended).
		Uint64("canceled", rep.Stats.Canceled).
		Uint64("try_failed", rep.Stats.TryFailed).
		Uint64("downgraded", rep.Stats.Downgraded).
		Uint64("violations", rep.Violations).
		Dur("elapsed", rep.Elapsed).
		Msg("workload finished")

	return err
}

// runWorkload drives cfg against tree until every worker is done or ctx is
// canceled.
func runWorkload(ctx context.Context, cfg config, tree *rangelock.Tree, logger zerolog.Logger) (report, error) {
	shadow := check.NewShadow(cfg.Span)
	var ops, violations atomic.Uint64

	start := time.Now()
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				st := tree.Stats()
				logger.Debug().
					Uint64("ops", ops.Load()).
					Uint64("acquired", st.Acquired).
					Int("published", st.Published).
					Msg("progress")
			}
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	for w := range cfg.Workers {
		wk := &worker{
			cfg:    cfg,
			tree:   tree,
			shadow: shadow,
			rng:    rand.New(rand.NewPCG(cfg.Seed, uint64(w))),
			log:    logger.With().Int("worker", w).Logger(),
		}
		g.Go(func() error {
			for range cfg.Ops {
				if ctx.Err() != nil {
					return nil
				}
				if err := wk.step(ctx); err != nil {
					violations.Add(1)
					wk.log.Error().Err(err).Msg("exclusion violated")
				}
				ops.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	close(done)

	rep := report{
		Stats:      tree.Stats(),
		Ops:        ops.Load(),
		Violations: violations.Load(),
		Elapsed:    time.Since(start),
	}

	switch {
	case err != nil:
		return rep, xerrors.Errorf("workload failed: %v", err)
	case rep.Violations > 0:
		return rep, xerrors.Errorf("%d exclusion violations", rep.Violations)
	case rep.Stats.Published != 0:
		return rep, xerrors.Errorf("%d ranges left in the tree", rep.Stats.Published)
	case !shadow.Idle():
		return rep, xerrors.New("shadow map not idle after the workload")
	}
	return rep, nil
}

type worker struct {
	cfg    config
	tree   *rangelock.Tree
	shadow *check.Shadow
	rng    *rand.Rand
	node   rangelock.Node
	log    zerolog.Logger
}

// step performs one random acquisition, holds it and releases it. It only
// returns an error for an exclusion violation.
func (w *worker) step(ctx context.Context) error {
	start := w.rng.IntN(w.cfg.Span)
	last := min(w.cfg.Span-1, start+w.rng.IntN(w.cfg.MaxLen))
	reader := w.rng.Float64() < w.cfg.ReadRatio
	n := &w.node
	n.Init(start, last)

	if !w.acquire(ctx, n, reader) {
		return nil
	}

	err := w.shadow.Enter(start, last, reader)
	if err == nil {
		if !reader && w.rng.Float64() < w.cfg.DowngradeRatio {
			w.shadow.Downgrade(start, last)
			w.tree.Downgrade(n)
			reader = true
		}
		if w.cfg.Hold > 0 {
			time.Sleep(w.cfg.Hold)
		}
		w.shadow.Leave(start, last, reader)
	}

	if reader {
		w.tree.RUnlock(n)
	} else {
		w.tree.Unlock(n)
	}
	return err
}

// acquire locks n in one of the ways the workload mixes and reports whether
// it is held.
func (w *worker) acquire(ctx context.Context, n *rangelock.Node, reader bool) bool {
	p := w.rng.Float64()

	if p < w.cfg.TryRatio {
		var ok bool
		if reader {
			ok = w.tree.TryRLock(n)
		} else {
			ok = w.tree.TryLock(n)
		}
		if ok {
			return true
		}
		// Contended: fall back to blocking.
	}

	if p >= w.cfg.TryRatio && p < w.cfg.TryRatio+w.cfg.CancelRatio && w.cfg.WaitTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, w.cfg.WaitTimeout)
		defer cancel()
		var err error
		if reader {
			err = w.tree.RLockContext(ctx, n)
		} else {
			err = w.tree.LockContext(ctx, n)
		}
		if err != nil {
			w.log.Trace().Err(err).Msg("acquisition abandoned")
			return false
		}
		return true
	}

	if reader {
		w.tree.RLock(n)
	} else {
		w.tree.Lock(n)
	}
	return true
}

// serveMetrics exposes the tree statistics on addr until the returned
// function is called.
func serveMetrics(addr string, tree *rangelock.Tree, logger zerolog.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector("rlstress", tree, nil))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, xerrors.Errorf("failed to listen on %s: %v", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}

	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
