// probe/probe.go
package probe

import (
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Config sizes the probe's shared state.
type Config struct {
	TableCapacity int  // buckets in the aggregation table
	ChannelBytes  int  // byte capacity of the event channel
	RecentEvents  int  // recency filter size, 0 emits every event
	ParentNames   bool // read d_parent's name into events
}

// DefaultConfig mirrors the kernel program's map sizes.
func DefaultConfig() Config {
	return Config{
		TableCapacity: DefaultTableCapacity,
		ChannelBytes:  DefaultChannelBytes,
		ParentNames:   true,
	}
}

// Stats counts handler outcomes.
type Stats struct {
	Invocations uint64 // handler calls
	Aborted     uint64 // calls stopped on a missing dentry or inode
	Recorded    uint64 // counter updates applied
	Rejected    uint64 // counter updates dropped on a full table
	Emitted     uint64 // events that reached the channel
	Dropped     uint64 // events lost on a full channel
	Suppressed  uint64 // events skipped by the recency filter
}

// Probe owns the aggregation table and event channel for one process and
// exposes the write and read hook handlers. All methods are safe for
// concurrent use.
type Probe struct {
	cfg     Config
	logger  *zap.Logger
	table   *Table
	channel *Channel
	emitter *Emitter

	invocations atomic.Uint64
	aborted     atomic.Uint64
	recorded    atomic.Uint64
	emitted     atomic.Uint64
}

// New creates a probe with empty state.
func New(cfg Config, logger *zap.Logger) (*Probe, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	channel, err := NewChannel(cfg.ChannelBytes)
	if err != nil {
		return nil, fmt.Errorf("event channel: %w", err)
	}
	emitter, err := NewEmitter(channel, cfg.RecentEvents)
	if err != nil {
		return nil, err
	}
	p := &Probe{
		cfg:     cfg,
		logger:  logger.Named("probe"),
		table:   NewTable(cfg.TableCapacity),
		channel: channel,
		emitter: emitter,
	}
	p.logger.Debug("probe created",
		zap.Int("table_capacity", p.table.Cap()),
		zap.Int("channel_records", channel.Cap()),
		zap.Int("recent_events", cfg.RecentEvents))
	return p, nil
}

// Table exposes the aggregation table to the consumer.
func (p *Probe) Table() *Table { return p.table }

// Events exposes the event channel to the consumer.
func (p *Probe) Events() *Channel { return p.channel }

// Stats returns the current outcome counters.
func (p *Probe) Stats() Stats {
	return Stats{
		Invocations: p.invocations.Load(),
		Aborted:     p.aborted.Load(),
		Recorded:    p.recorded.Load(),
		Rejected:    p.table.Rejected(),
		Emitted:     p.emitted.Load(),
		Dropped:     p.channel.Dropped(),
		Suppressed:  p.emitter.Suppressed(),
	}
}

// Close stops event delivery. Handlers still running after Close keep
// updating counters; their events are dropped.
func (p *Probe) Close() {
	p.channel.Close()
}
