// run.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nfstraffic/config"
	"nfstraffic/metrics"
	"nfstraffic/nfscollector"
	"nfstraffic/nfscollector/utility"
	"nfstraffic/probe"
	"nfstraffic/ui"
	"nfstraffic/window"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// source opens the collector that feeds the window.
type source func(cfg *config.Config, sinks nfscollector.Sinks, logger *zap.Logger) (nfscollector.Collector, error)

func kernelSource(cfg *config.Config, sinks nfscollector.Sinks, logger *zap.Logger) (nfscollector.Collector, error) {
	if n, err := utility.CountNfsdThreads(); err != nil {
		logger.Warn("could not count nfsd threads", zap.Error(err))
	} else if n == 0 {
		logger.Warn("no nfsd threads running, nothing will be counted until the NFS server starts")
	} else {
		logger.Info("found nfsd threads", zap.Int("count", n))
	}

	return nfscollector.New(kernelConfig(cfg), sinks, logger)
}

func kernelConfig(cfg *config.Config) nfscollector.Config {
	return nfscollector.Config{
		ObjectPath:  cfg.Kernel.Object,
		Interval:    cfg.Interval,
		ParentNames: cfg.Probe.ParentNames,
	}
}

func simulatedSource(cfg *config.Config, sinks nfscollector.Sinks, logger *zap.Logger) (nfscollector.Collector, error) {
	p, err := probe.New(cfg.Probe.Probe(), logger)
	if err != nil {
		return nil, err
	}
	coll, err := nfscollector.NewSimulated(p, nfscollector.SimConfig{
		Interval: cfg.Interval,
		Workers:  cfg.Sim.Workers,
		Rate:     cfg.Sim.Rate,
		Seed:     cfg.Sim.Seed,
		Files:    cfg.Sim.Files,
		Users:    cfg.Sim.Users,
		Clients:  cfg.Sim.Clients,
		Orphans:  cfg.Sim.Orphans,
	}, sinks, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	return coll, nil
}

// view is what the pump loop drives.
type view interface {
	AddEvent(at time.Time, ev probe.TrafficEvent)
	Refresh()
}

// simpleView renders a text block per snapshot.
type simpleView struct {
	*ui.Simple
	logger *zap.Logger
}

func (v simpleView) Refresh() {
	if err := v.Render(); err != nil {
		v.logger.Warn("render", zap.Error(err))
	}
}

func run(cmd *cobra.Command, configPath string, open source) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	mode := cfg.Mode
	if mode == "" {
		if mode, err = ui.SelectMode(); err != nil {
			return err
		}
	}

	// the dashboard owns the terminal, so logs go to its System Log pane
	var sysChan chan string
	var sink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if mode == config.ModeTUI {
		sysChan = make(chan string, 200)
		sink = ui.ChannelWriter{Ch: sysChan}
	}
	logger, err := ui.NewLogger(cfg.Logging.Level, sink)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if h, err := utility.DescribeHost(); err != nil {
		logger.Warn("describe host", zap.Error(err))
	} else {
		logger.Info("observing " + h.String())
	}

	snaps := make(chan nfscollector.Snapshot, 4)
	events := make(chan probe.TrafficEvent, 256)
	coll, err := open(cfg, nfscollector.Sinks{Snapshots: snaps, Events: events}, logger)
	if err != nil {
		return fmt.Errorf("collector initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	win := window.New()

	g.Go(func() error {
		logger.Debug("collector run loop starting")
		defer logger.Debug("collector run loop finished")
		return coll.Run(ctx)
	})

	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return metrics.Serve(ctx, cfg.Metrics.Addr, metrics.NewExporter(win), logger)
		})
	}

	var v view
	if mode == config.ModeTUI {
		dash := ui.NewDashboard(win, cfg.TopFiles, sysChan, logger)
		v = dash
		g.Go(func() error {
			// quitting the dashboard ends everything else
			defer stop()
			return dash.Run()
		})
		g.Go(func() error {
			<-ctx.Done()
			dash.Stop()
			return nil
		})
	} else {
		v = simpleView{Simple: ui.NewSimple(os.Stdout, win, cfg.TopFiles), logger: logger}
	}

	g.Go(func() error {
		pump(ctx, win, v, snaps, events)
		return nil
	})

	err = g.Wait()
	if mode != config.ModeTUI {
		logger.Info("exiting")
	}
	return err
}

// pump feeds collector output into the window and the view until ctx ends.
func pump(ctx context.Context, win *window.Window, v view, snaps <-chan nfscollector.Snapshot, events <-chan probe.TrafficEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-snaps:
			if ctx.Err() != nil {
				// the view may already be gone
				return
			}
			win.Apply(snap.Time, snap.Entries, snap.Stats)
			v.Refresh()
		case ev := <-events:
			win.Resolve(ev)
			v.AddEvent(time.Now(), ev)
		}
	}
}
