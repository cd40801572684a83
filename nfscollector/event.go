// nfscollector/event.go
package nfscollector

import (
	"time"

	"nfstraffic/probe"
)

// Snapshot is one reading of the aggregation table plus the probe's
// outcome counters.
type Snapshot struct {
	Time    time.Time
	Entries []probe.Entry
	Stats   probe.Stats
}

// Sinks receive what a collector reads. Sends on Snapshots and Events
// block, so the consumer must keep draining them until Run returns.
type Sinks struct {
	Snapshots chan<- Snapshot
	Events    chan<- probe.TrafficEvent
}

// Indices of the per-CPU drops map in the kernel program.
const (
	dropTableFull = iota
	dropEventsFull
	dropAborted
)
