// nfscollector/collector_methods.go
package nfscollector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nfstraffic/probe"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/ringbuf"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run consumes ring-buffer events and reads the table every interval until
// ctx is canceled.
func (c *collector) Run(ctx context.Context) error {
	defer c.Close()
	c.logger.Info("waiting for NFS traffic")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.consume(gctx) })

	// Read blocks without a context, so closing is what ends consume
	g.Go(func() error {
		<-gctx.Done()
		c.rd.Close()
		return nil
	})

	g.Go(func() error {
		return pumpSnapshots(gctx, c.interval, c.sinks.Snapshots, c.snapshot, c.logger)
	})

	return g.Wait()
}

// consume decodes ring-buffer records into events.
func (c *collector) consume(ctx context.Context) error {
	var ev probe.TrafficEvent
	for {
		rec, err := c.rd.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				return nil
			}
			c.logger.Warn("ringbuf read", zap.Error(err))
			continue
		}

		c.buf.Reset()
		c.buf.Write(rec.RawSample)
		if err := ev.UnmarshalBinary(c.buf.Bytes()); err != nil {
			c.logger.Warn("decode event", zap.Error(err))
			continue
		}

		select {
		case c.sinks.Events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// snapshot copies nfs_ops_counts and the drop counters.
func (c *collector) snapshot() (Snapshot, error) {
	snap := Snapshot{Time: time.Now()}

	var (
		key probe.TrafficKey
		val probe.TrafficStats
	)
	it := c.counts.Iterate()
	for it.Next(&key, &val) {
		snap.Entries = append(snap.Entries, probe.Entry{Key: key, Stats: val})
	}
	if err := it.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate nfs_ops_counts: %w", err)
	}

	for idx, dst := range map[uint32]*uint64{
		dropTableFull:  &snap.Stats.Rejected,
		dropEventsFull: &snap.Stats.Dropped,
		dropAborted:    &snap.Stats.Aborted,
	} {
		n, err := sumPerCPU(c.drops, idx)
		if err != nil {
			return Snapshot{}, fmt.Errorf("read drops[%d]: %w", idx, err)
		}
		*dst = n
	}

	for _, e := range snap.Entries {
		snap.Stats.Recorded += e.Stats.Requests()
	}
	snap.Stats.Invocations = snap.Stats.Recorded + snap.Stats.Rejected + snap.Stats.Aborted
	return snap, nil
}

func sumPerCPU(m *ebpf.Map, key uint32) (uint64, error) {
	var percpu []uint64
	if err := m.Lookup(key, &percpu); err != nil {
		return 0, err
	}
	var sum uint64
	for _, v := range percpu {
		sum += v
	}
	return sum, nil
}

// pumpSnapshots sends a snapshot every interval until ctx ends. A failed
// read is logged and retried on the next tick.
func pumpSnapshots(
	ctx context.Context,
	interval time.Duration,
	out chan<- Snapshot,
	read func() (Snapshot, error),
	logger *zap.Logger,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap, err := read()
			if err != nil {
				logger.Warn("read snapshot", zap.Error(err))
				continue
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Close cleans up the ring buffer, links, and collection.
func (c *collector) Close() {
	if c.rd != nil {
		c.rd.Close()
	}
	for _, l := range c.links {
		l.Close()
	}
	c.links = nil
	if c.coll != nil {
		c.coll.Close()
	}
}
