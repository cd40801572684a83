// probe/table.go
package probe

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"
)

const (
	// DefaultTableCapacity matches max_entries of nfs_ops_counts.
	DefaultTableCapacity = 10240

	shardCount = 64 // power of two
)

// TrafficStats is a point-in-time copy of one bucket. Field order matches
// struct val_t in the kernel program.
type TrafficStats struct {
	WriteRequests uint64
	WriteBytes    uint64
	ReadRequests  uint64
	ReadBytes     uint64
}

// Add returns the field-wise sum of s and o.
func (s TrafficStats) Add(o TrafficStats) TrafficStats {
	return TrafficStats{
		WriteRequests: s.WriteRequests + o.WriteRequests,
		WriteBytes:    s.WriteBytes + o.WriteBytes,
		ReadRequests:  s.ReadRequests + o.ReadRequests,
		ReadBytes:     s.ReadBytes + o.ReadBytes,
	}
}

// Sub returns s-o. Callers use it on monotonic counters where o is an
// earlier reading of the same bucket.
func (s TrafficStats) Sub(o TrafficStats) TrafficStats {
	return TrafficStats{
		WriteRequests: s.WriteRequests - o.WriteRequests,
		WriteBytes:    s.WriteBytes - o.WriteBytes,
		ReadRequests:  s.ReadRequests - o.ReadRequests,
		ReadBytes:     s.ReadBytes - o.ReadBytes,
	}
}

// Bytes is the total I/O volume in both directions.
func (s TrafficStats) Bytes() uint64 { return s.WriteBytes + s.ReadBytes }

// Requests is the total operation count in both directions.
func (s TrafficStats) Requests() uint64 { return s.WriteRequests + s.ReadRequests }

// IsZero reports whether no traffic was counted.
func (s TrafficStats) IsZero() bool { return s == TrafficStats{} }

// Entry is one exported bucket.
type Entry struct {
	Key   TrafficKey
	Stats TrafficStats
}

type counters struct {
	writeRequests atomic.Uint64
	writeBytes    atomic.Uint64
	readRequests  atomic.Uint64
	readBytes     atomic.Uint64
}

func (c *counters) load() TrafficStats {
	return TrafficStats{
		WriteRequests: c.writeRequests.Load(),
		WriteBytes:    c.writeBytes.Load(),
		ReadRequests:  c.readRequests.Load(),
		ReadBytes:     c.readBytes.Load(),
	}
}

type shard struct {
	mu      sync.RWMutex
	buckets map[TrafficKey]*counters
}

// Table is a fixed-capacity concurrent map from TrafficKey to counters.
// Buckets are created on first observation and never removed. Once the
// table is full, contributions for new keys are dropped and counted;
// existing keys keep updating.
type Table struct {
	capacity int64
	size     atomic.Int64
	rejected atomic.Uint64
	shards   [shardCount]shard
}

// NewTable returns an empty table holding at most capacity buckets.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultTableCapacity
	}
	t := &Table{capacity: int64(capacity)}
	for i := range t.shards {
		t.shards[i].buckets = make(map[TrafficKey]*counters)
	}
	return t
}

func (t *Table) shardFor(key TrafficKey) *shard {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], key.Ino)
	binary.LittleEndian.PutUint32(b[8:12], key.UID)
	binary.LittleEndian.PutUint32(b[12:16], key.IPv4)
	return &t.shards[xxhash.Sum64(b[:])&(shardCount-1)]
}

// Record adds one request of n bytes to the write or read counters of key,
// creating the bucket if needed. It reports false when the bucket did not
// exist and the table was full.
func (t *Table) Record(key TrafficKey, isWrite bool, n uint32) bool {
	c := t.findOrInsert(key)
	if c == nil {
		t.rejected.Inc()
		return false
	}
	if isWrite {
		c.writeRequests.Inc()
		c.writeBytes.Add(uint64(n))
	} else {
		c.readRequests.Inc()
		c.readBytes.Add(uint64(n))
	}
	return true
}

func (t *Table) findOrInsert(key TrafficKey) *counters {
	s := t.shardFor(key)

	s.mu.RLock()
	c, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// another caller may have created it between the two locks
	if c, ok := s.buckets[key]; ok {
		return c
	}
	if t.size.Inc() > t.capacity {
		t.size.Dec()
		return nil
	}
	c = &counters{}
	s.buckets[key] = c
	return c
}

// Lookup returns the current counters of key.
func (t *Table) Lookup(key TrafficKey) (TrafficStats, bool) {
	s := t.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.buckets[key]
	if !ok {
		return TrafficStats{}, false
	}
	return c.load(), true
}

// Range calls fn for every bucket until fn returns false. Buckets added
// while Range runs may or may not be visited.
func (t *Table) Range(fn func(TrafficKey, TrafficStats) bool) {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		entries := make([]Entry, 0, len(s.buckets))
		for k, c := range s.buckets {
			entries = append(entries, Entry{k, c.load()})
		}
		s.mu.RUnlock()

		for _, e := range entries {
			if !fn(e.Key, e.Stats) {
				return
			}
		}
	}
}

// Snapshot copies every bucket.
func (t *Table) Snapshot() []Entry {
	out := make([]Entry, 0, t.Len())
	t.Range(func(k TrafficKey, s TrafficStats) bool {
		out = append(out, Entry{k, s})
		return true
	})
	return out
}

// Len is the number of buckets.
func (t *Table) Len() int { return int(t.size.Load()) }

// Cap is the bucket limit.
func (t *Table) Cap() int { return int(t.capacity) }

// Rejected counts contributions dropped because the table was full.
func (t *Table) Rejected() uint64 { return t.rejected.Load() }
