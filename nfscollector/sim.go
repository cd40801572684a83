// nfscollector/sim.go
package nfscollector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nfstraffic/probe"
	"nfstraffic/probe/hostsim"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// SimConfig shapes the synthetic workload driven through the in-process
// probe.
type SimConfig struct {
	Interval time.Duration // how often the table is read
	Workers  int           // concurrent hook invocations
	Rate     float64       // operations per second across all workers
	Seed     uint64
	Files    int
	Users    int
	Clients  int
	Orphans  float64 // share of operations without a dentry
}

type simCollector struct {
	logger  *zap.Logger
	cfg     SimConfig
	sinks   Sinks
	probe   *probe.Probe
	limiter *rate.Limiter
}

// NewSimulated returns a collector that calls the probe's handlers from a
// pool of workers, standing in for the kernel hooks.
func NewSimulated(p *probe.Probe, cfg SimConfig, sinks Sinks, logger *zap.Logger) (Collector, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.Rate <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %g", cfg.Rate)
	}
	return &simCollector{
		logger:  logger.Named("sim"),
		cfg:     cfg,
		sinks:   sinks,
		probe:   p,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Workers),
	}, nil
}

// Run drives the workload, drains events and reads the table every
// interval until ctx is canceled.
func (c *simCollector) Run(ctx context.Context) error {
	defer c.Close()
	c.logger.Info("simulating NFS traffic",
		zap.Int("workers", c.cfg.Workers),
		zap.Float64("ops_per_sec", c.cfg.Rate))

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < c.cfg.Workers; i++ {
		w := hostsim.NewWorkload(c.cfg.Seed+uint64(i), c.cfg.Files, c.cfg.Users, c.cfg.Clients, c.cfg.Orphans)
		g.Go(func() error { return c.drive(gctx, w) })
	}

	g.Go(func() error { return c.consume(gctx) })

	g.Go(func() error {
		return pumpSnapshots(gctx, c.cfg.Interval, c.sinks.Snapshots, c.snapshot, c.logger)
	})

	return g.Wait()
}

func (c *simCollector) drive(ctx context.Context, w *hostsim.Workload) error {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			// canceled, or the deadline is closer than the next token
			return nil
		}
		op := w.Next()
		if op.Write {
			c.probe.OnWrite(op.Request, op.State, op.Params)
		} else {
			c.probe.OnRead(op.Request, op.State, op.Params)
		}
	}
}

func (c *simCollector) consume(ctx context.Context) error {
	for {
		ev, err := c.probe.Events().Read(ctx)
		if err != nil {
			if errors.Is(err, probe.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		select {
		case c.sinks.Events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *simCollector) snapshot() (Snapshot, error) {
	return Snapshot{
		Time:    time.Now(),
		Entries: c.probe.Table().Snapshot(),
		Stats:   c.probe.Stats(),
	}, nil
}

// Close stops event delivery from the probe.
func (c *simCollector) Close() {
	c.probe.Close()
}
