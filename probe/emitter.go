// probe/emitter.go
package probe

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/atomic"
)

type recentKey struct {
	ino    uint64
	name   [NameLen]byte
	parent [NameLen]byte
}

// Emitter pushes filename events into a Channel. By default every call
// emits; with a recency filter, an event identical to one still in the
// filter is suppressed.
type Emitter struct {
	channel    *Channel
	recent     *lru.Cache[recentKey, struct{}]
	suppressed atomic.Uint64
}

// NewEmitter wraps channel. recentSize > 0 enables the recency filter with
// that many entries.
func NewEmitter(channel *Channel, recentSize int) (*Emitter, error) {
	e := &Emitter{channel: channel}
	if recentSize > 0 {
		cache, err := lru.New[recentKey, struct{}](recentSize)
		if err != nil {
			return nil, fmt.Errorf("create recency filter: %w", err)
		}
		e.recent = cache
	}
	return e, nil
}

// Emit sends one event and reports whether it reached the channel. parent
// may be nil when the handler variant does not read it. With the recency
// filter on, concurrent calls for the same new event may deliver it more
// than once but never suppress it without delivering it.
func (e *Emitter) Emit(ino uint64, name, parent *[NameLen]byte) bool {
	ev := TrafficEvent{Ino: ino}
	if name != nil {
		ev.Name = *name
	}
	if parent != nil {
		ev.ParentName = *parent
	}

	if e.recent == nil {
		return e.channel.Push(ev)
	}

	// only delivered events enter the filter, so a suppressed event always
	// has a delivered twin; concurrent first sightings may both be sent
	k := recentKey{ev.Ino, ev.Name, ev.ParentName}
	if e.recent.Contains(k) {
		e.suppressed.Inc()
		return false
	}
	if !e.channel.Push(ev) {
		return false
	}
	e.recent.Add(k, struct{}{})
	return true
}

// Suppressed counts events skipped by the recency filter.
func (e *Emitter) Suppressed() uint64 { return e.suppressed.Load() }
