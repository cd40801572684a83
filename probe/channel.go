// probe/channel.go
package probe

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

const (
	// DefaultChannelBytes matches max_entries of the events ring buffer.
	DefaultChannelBytes = 1 << 12

	// EventSize is the wire size of one TrafficEvent.
	EventSize = 8 + 2*NameLen
)

// ErrClosed is returned by Read once the channel is closed and drained.
var ErrClosed = errors.New("event channel closed")

// TrafficEvent carries the names of a file seen by a handler. Layout
// matches struct event in the kernel program.
type TrafficEvent struct {
	Ino        uint64
	Name       [NameLen]byte
	ParentName [NameLen]byte
}

// Path renders "parent/name", or just the name when no parent was read.
func (e TrafficEvent) Path() string {
	name := NameString(e.Name)
	if parent := NameString(e.ParentName); parent != "" {
		return parent + "/" + name
	}
	return name
}

// UnmarshalBinary decodes a little-endian wire record.
func (e *TrafficEvent) UnmarshalBinary(b []byte) error {
	if len(b) < EventSize {
		return fmt.Errorf("short event record: %d bytes, want %d", len(b), EventSize)
	}
	e.Ino = binary.LittleEndian.Uint64(b[0:8])
	copy(e.Name[:], b[8:8+NameLen])
	copy(e.ParentName[:], b[8+NameLen:EventSize])
	return nil
}

// Channel is a bounded FIFO of events sized in bytes. Producers never
// block: a push that does not fit is dropped and counted. There is a
// single consumer.
type Channel struct {
	mu      sync.RWMutex
	closed  bool
	ch      chan TrafficEvent
	dropped atomic.Uint64
}

// NewChannel creates a channel holding capacityBytes/EventSize events.
func NewChannel(capacityBytes int) (*Channel, error) {
	if capacityBytes <= 0 {
		capacityBytes = DefaultChannelBytes
	}
	records := capacityBytes / EventSize
	if records == 0 {
		return nil, fmt.Errorf("channel capacity %d bytes cannot hold a %d byte event", capacityBytes, EventSize)
	}
	return &Channel{ch: make(chan TrafficEvent, records)}, nil
}

// Push enqueues ev without blocking and reports whether it was kept.
func (c *Channel) Push(ev TrafficEvent) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Inc()
		return false
	}
	select {
	case c.ch <- ev:
		return true
	default:
		c.dropped.Inc()
		return false
	}
}

// Read blocks until an event is available, ctx is done, or the channel is
// closed and drained.
func (c *Channel) Read(ctx context.Context) (TrafficEvent, error) {
	select {
	case ev, ok := <-c.ch:
		if !ok {
			return TrafficEvent{}, ErrClosed
		}
		return ev, nil
	case <-ctx.Done():
		return TrafficEvent{}, ctx.Err()
	}
}

// Close stops accepting events. Events already queued stay readable.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Len is the number of queued events.
func (c *Channel) Len() int { return len(c.ch) }

// Cap is the number of events the channel can hold.
func (c *Channel) Cap() int { return cap(c.ch) }

// Dropped counts events that did not fit.
func (c *Channel) Dropped() uint64 { return c.dropped.Load() }
