// nfscollector/collector.go
package nfscollector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"nfstraffic/nfscollector/utility"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
	"go.uber.org/zap"
)

// DefaultObjectName is the compiled kernel program looked up when
// Config.ObjectPath is empty.
const DefaultObjectName = "nfs_traffic.o"

// Collector defines Run/Close behavior.
type Collector interface {
	Run(ctx context.Context) error
	Close()
}

// Config controls the kernel collector.
type Config struct {
	ObjectPath  string        // compiled bpf/nfs_traffic.c
	Interval    time.Duration // how often the table is read
	ParentNames bool          // read d_parent's name into events
}

// New loads the kernel program, attaches the nfsd4_write and nfsd4_read
// tracing programs and opens the event ring buffer.
func New(cfg Config, sinks Sinks, logger *zap.Logger) (Collector, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	logger = logger.Named("kernel")

	obj := cfg.ObjectPath
	if obj == "" {
		found, err := utility.FindObject(DefaultObjectName)
		if err != nil {
			return nil, fmt.Errorf("locate kernel object: %w", err)
		}
		obj = found
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("remove memlock: %w", err)
	}

	spec, err := ebpf.LoadCollectionSpec(obj)
	if err != nil {
		return nil, fmt.Errorf("load spec %s: %w", obj, err)
	}

	if err := setConstants(spec, cfg); err != nil {
		return nil, err
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		var ve *ebpf.VerifierError
		if errors.As(err, &ve) {
			logger.Error("verifier rejected program", zap.String("log", fmt.Sprintf("%+v", ve)))
		}
		return nil, fmt.Errorf("create collection: %w", err)
	}

	c := &collector{
		logger:   logger,
		interval: cfg.Interval,
		sinks:    sinks,
		coll:     coll,
	}

	for _, name := range []string{"nfs_ops_counts", "events", "drops"} {
		if coll.Maps[name] == nil {
			c.Close()
			return nil, fmt.Errorf("map %q missing from %s", name, obj)
		}
	}
	c.counts = coll.Maps["nfs_ops_counts"]
	c.drops = coll.Maps["drops"]

	for _, name := range []string{"write_ops", "read_ops"} {
		prog := coll.Programs[name]
		if prog == nil {
			c.Close()
			return nil, fmt.Errorf("program %q missing from %s", name, obj)
		}
		lnk, err := link.AttachTracing(link.TracingOptions{Program: prog})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("attach %s: %w", name, err)
		}
		c.links = append(c.links, lnk)
	}

	rd, err := ringbuf.NewReader(coll.Maps["events"])
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("ringbuf reader: %w", err)
	}
	c.rd = rd

	logger.Info("kernel probe attached",
		zap.String("object", obj),
		zap.Int("table_capacity", int(c.counts.MaxEntries())))
	return c, nil
}

// setConstants fills the program's read-only settings before load.
func setConstants(spec *ebpf.CollectionSpec, cfg Config) error {
	v, ok := spec.Variables["parent_names"]
	if !ok {
		return errors.New("constant parent_names missing from kernel object")
	}
	if err := v.Set(cfg.ParentNames); err != nil {
		return fmt.Errorf("set parent_names: %w", err)
	}
	return nil
}

type collector struct {
	logger   *zap.Logger
	interval time.Duration
	sinks    Sinks

	coll   *ebpf.Collection // loaded kernel program
	links  []link.Link      // fentry links
	rd     *ringbuf.Reader  // events ring buffer
	counts *ebpf.Map        // nfs_ops_counts
	drops  *ebpf.Map        // per-CPU drop counters
	buf    bytes.Buffer     // raw sample scratch
}
