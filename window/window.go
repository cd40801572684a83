// window/window.go
// Package window turns cumulative probe snapshots into the per-user,
// per-client and per-file views shown to the operator.
package window

import (
	"os/user"
	"slices"
	"strconv"
	"sync"
	"time"

	"nfstraffic/probe"
)

// Rollup is traffic summed over one user or one client.
type Rollup struct {
	ID    uint32
	Label string
	Stats probe.TrafficStats
	Share float64 // fraction of all bytes, 0..1
}

// FileRow is one aggregation bucket with its resolved names.
type FileRow struct {
	Key    probe.TrafficKey
	Path   string // "parent/name", or the inode number until an event names it
	User   string
	Stats  probe.TrafficStats // since the probe started
	Recent probe.TrafficStats // since the previous snapshot
}

// Filter restricts Files to one user and/or one client.
type Filter struct {
	UID  *uint32
	IPv4 *uint32
}

func (f Filter) match(k probe.TrafficKey) bool {
	if f.UID != nil && *f.UID != k.UID {
		return false
	}
	if f.IPv4 != nil && *f.IPv4 != k.IPv4 {
		return false
	}
	return true
}

// Window holds the latest view of the traffic. Apply and Resolve may be
// called from different goroutines than the readers.
type Window struct {
	mu sync.RWMutex

	lookupUser func(uid uint32) string
	userNames  map[uint32]string

	at      time.Time
	elapsed time.Duration
	last    map[probe.TrafficKey]probe.TrafficStats
	recent  map[probe.TrafficKey]probe.TrafficStats
	paths   map[uint64]string
	users   map[uint32]probe.TrafficStats
	clients map[uint32]probe.TrafficStats
	total   probe.TrafficStats
	stats   probe.Stats
}

// Option customizes a Window.
type Option func(*Window)

// WithUserLookup replaces the os/user based uid resolution.
func WithUserLookup(fn func(uid uint32) string) Option {
	return func(w *Window) { w.lookupUser = fn }
}

// New returns an empty window.
func New(opts ...Option) *Window {
	w := &Window{
		lookupUser: systemUser,
		userNames:  make(map[uint32]string),
		last:       make(map[probe.TrafficKey]probe.TrafficStats),
		recent:     make(map[probe.TrafficKey]probe.TrafficStats),
		paths:      make(map[uint64]string),
		users:      make(map[uint32]probe.TrafficStats),
		clients:    make(map[uint32]probe.TrafficStats),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func systemUser(uid uint32) string {
	id := strconv.FormatUint(uint64(uid), 10)
	u, err := user.LookupId(id)
	if err != nil {
		return id
	}
	return u.Username
}

// Apply replaces the view with a new cumulative snapshot.
func (w *Window) Apply(at time.Time, entries []probe.Entry, stats probe.Stats) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.at.IsZero() {
		w.elapsed = at.Sub(w.at)
	}
	w.at = at
	w.stats = stats

	last := make(map[probe.TrafficKey]probe.TrafficStats, len(entries))
	clear(w.recent)
	clear(w.users)
	clear(w.clients)
	w.total = probe.TrafficStats{}

	for _, e := range entries {
		prev := w.last[e.Key]
		delta := e.Stats.Sub(prev)
		if !covers(e.Stats, prev) {
			// counters went backwards: the table was recreated
			delta = e.Stats
		}
		w.recent[e.Key] = delta
		last[e.Key] = e.Stats

		w.users[e.Key.UID] = w.users[e.Key.UID].Add(e.Stats)
		w.clients[e.Key.IPv4] = w.clients[e.Key.IPv4].Add(e.Stats)
		w.total = w.total.Add(e.Stats)
	}
	w.last = last
}

func covers(cur, prev probe.TrafficStats) bool {
	return cur.WriteRequests >= prev.WriteRequests &&
		cur.WriteBytes >= prev.WriteBytes &&
		cur.ReadRequests >= prev.ReadRequests &&
		cur.ReadBytes >= prev.ReadBytes
}

// Resolve records the path of an inode from a filename event.
func (w *Window) Resolve(ev probe.TrafficEvent) {
	path := ev.Path()
	if path == "" {
		return
	}
	w.mu.Lock()
	w.paths[ev.Ino] = path
	w.mu.Unlock()
}

// Path returns the last known path of ino.
func (w *Window) Path(ino uint64) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.paths[ino]
	return p, ok
}

// userName resolves and caches a uid. Callers hold w.mu.
func (w *Window) userName(uid uint32) string {
	if name, ok := w.userNames[uid]; ok {
		return name
	}
	name := w.lookupUser(uid)
	w.userNames[uid] = name
	return name
}

// Users returns per-uid totals, largest first.
func (w *Window) Users() []Rollup {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rollups(w.users, w.userName)
}

// Clients returns per-address totals, largest first.
func (w *Window) Clients() []Rollup {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rollups(w.clients, probe.FormatIPv4)
}

func (w *Window) rollups(src map[uint32]probe.TrafficStats, label func(uint32) string) []Rollup {
	out := make([]Rollup, 0, len(src))
	all := w.total.Bytes()
	for id, st := range src {
		r := Rollup{ID: id, Label: label(id), Stats: st}
		if all > 0 {
			r.Share = float64(st.Bytes()) / float64(all)
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Rollup) int {
		if c := cmpDesc(a.Stats.Bytes(), b.Stats.Bytes()); c != 0 {
			return c
		}
		return cmpDesc(b.ID, a.ID)
	})
	return out
}

// Files returns up to limit buckets matching f, ordered by total bytes or
// by total requests. limit <= 0 returns all of them.
func (w *Window) Files(byRequests bool, f Filter, limit int) []FileRow {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows := make([]FileRow, 0, len(w.last))
	for k, st := range w.last {
		if !f.match(k) {
			continue
		}
		path, ok := w.paths[k.Ino]
		if !ok {
			path = "ino:" + strconv.FormatUint(k.Ino, 10)
		}
		rows = append(rows, FileRow{
			Key:    k,
			Path:   path,
			User:   w.userName(k.UID),
			Stats:  st,
			Recent: w.recent[k],
		})
	}

	metric := probe.TrafficStats.Bytes
	if byRequests {
		metric = probe.TrafficStats.Requests
	}
	slices.SortFunc(rows, func(a, b FileRow) int {
		if c := cmpDesc(metric(a.Stats), metric(b.Stats)); c != 0 {
			return c
		}
		if c := cmpDesc(b.Key.Ino, a.Key.Ino); c != 0 {
			return c
		}
		if c := cmpDesc(b.Key.UID, a.Key.UID); c != 0 {
			return c
		}
		return cmpDesc(b.Key.IPv4, a.Key.IPv4)
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Summary is the headline numbers of the latest snapshot.
type Summary struct {
	At      time.Time
	Total   probe.TrafficStats
	Recent  probe.TrafficStats
	Elapsed time.Duration // between the last two snapshots
	Buckets int
	Probe   probe.Stats
}

// BytesPerSecond is the recent I/O rate, 0 before two snapshots exist.
func (s Summary) BytesPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Recent.Bytes()) / s.Elapsed.Seconds()
}

// Summary returns the headline numbers.
func (w *Window) Summary() Summary {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := Summary{
		At:      w.at,
		Total:   w.total,
		Elapsed: w.elapsed,
		Buckets: len(w.last),
		Probe:   w.stats,
	}
	for _, d := range w.recent {
		s.Recent = s.Recent.Add(d)
	}
	return s
}

func cmpDesc[T ~uint32 | ~uint64](a, b T) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}
