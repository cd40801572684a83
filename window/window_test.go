package window

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nfstraffic/probe"
)

func fakeUsers(uid uint32) string { return fmt.Sprintf("user%d", uid) }

func event(ino uint64, parent, name string) probe.TrafficEvent {
	ev := probe.TrafficEvent{Ino: ino}
	probe.CopyName(&ev.Name, []byte(name))
	probe.CopyName(&ev.ParentName, []byte(parent))
	return ev
}

func TestApplyComputesRecentDeltas(t *testing.T) {
	w := New(WithUserLookup(fakeUsers))
	k := probe.TrafficKey{Ino: 1, UID: 10, IPv4: 0x0A000001}
	t0 := time.Unix(100, 0)

	w.Apply(t0, []probe.Entry{{Key: k, Stats: probe.TrafficStats{WriteRequests: 2, WriteBytes: 200}}}, probe.Stats{})
	w.Apply(t0.Add(2*time.Second), []probe.Entry{{Key: k, Stats: probe.TrafficStats{WriteRequests: 5, WriteBytes: 500, ReadRequests: 1, ReadBytes: 100}}}, probe.Stats{})

	rows := w.Files(false, Filter{}, 0)
	require.Len(t, rows, 1)
	assert.Equal(t, probe.TrafficStats{WriteRequests: 3, WriteBytes: 300, ReadRequests: 1, ReadBytes: 100}, rows[0].Recent)
	assert.Equal(t, probe.TrafficStats{WriteRequests: 5, WriteBytes: 500, ReadRequests: 1, ReadBytes: 100}, rows[0].Stats)
	assert.Equal(t, "ino:1", rows[0].Path)
	assert.Equal(t, "user10", rows[0].User)

	s := w.Summary()
	assert.Equal(t, 2*time.Second, s.Elapsed)
	assert.InDelta(t, 200.0, s.BytesPerSecond(), 0.001)
	assert.Equal(t, 1, s.Buckets)
}

func TestApplyAfterReset(t *testing.T) {
	w := New(WithUserLookup(fakeUsers))
	k := probe.TrafficKey{Ino: 1}

	w.Apply(time.Unix(1, 0), []probe.Entry{{Key: k, Stats: probe.TrafficStats{ReadRequests: 9, ReadBytes: 900}}}, probe.Stats{})
	w.Apply(time.Unix(2, 0), []probe.Entry{{Key: k, Stats: probe.TrafficStats{ReadRequests: 1, ReadBytes: 10}}}, probe.Stats{})

	rows := w.Files(false, Filter{}, 0)
	require.Len(t, rows, 1)
	assert.Equal(t, probe.TrafficStats{ReadRequests: 1, ReadBytes: 10}, rows[0].Recent)
}

func TestRollupsAndShares(t *testing.T) {
	w := New(WithUserLookup(fakeUsers))
	entries := []probe.Entry{
		{Key: probe.TrafficKey{Ino: 1, UID: 1, IPv4: 1}, Stats: probe.TrafficStats{WriteBytes: 300}},
		{Key: probe.TrafficKey{Ino: 2, UID: 1, IPv4: 2}, Stats: probe.TrafficStats{ReadBytes: 300}},
		{Key: probe.TrafficKey{Ino: 1, UID: 2, IPv4: 2}, Stats: probe.TrafficStats{ReadBytes: 400}},
	}
	w.Apply(time.Now(), entries, probe.Stats{})

	users := w.Users()
	require.Len(t, users, 2)
	assert.Equal(t, "user1", users[0].Label)
	assert.EqualValues(t, 600, users[0].Stats.Bytes())
	assert.InDelta(t, 0.6, users[0].Share, 1e-9)
	assert.InDelta(t, 0.4, users[1].Share, 1e-9)

	clients := w.Clients()
	require.Len(t, clients, 2)
	assert.Equal(t, "0.0.0.2", clients[0].Label)
	assert.EqualValues(t, 700, clients[0].Stats.Bytes())
}

func TestFilesSortFilterLimit(t *testing.T) {
	w := New(WithUserLookup(fakeUsers))
	w.Apply(time.Now(), []probe.Entry{
		{Key: probe.TrafficKey{Ino: 1, UID: 1}, Stats: probe.TrafficStats{WriteRequests: 1, WriteBytes: 1000}},
		{Key: probe.TrafficKey{Ino: 2, UID: 1}, Stats: probe.TrafficStats{ReadRequests: 50, ReadBytes: 50}},
		{Key: probe.TrafficKey{Ino: 3, UID: 2, IPv4: 7}, Stats: probe.TrafficStats{ReadRequests: 5, ReadBytes: 500}},
	}, probe.Stats{})
	w.Resolve(event(2, "home", "notes.txt"))

	byBytes := w.Files(false, Filter{}, 0)
	require.Len(t, byBytes, 3)
	assert.EqualValues(t, []uint64{1, 3, 2}, []uint64{byBytes[0].Key.Ino, byBytes[1].Key.Ino, byBytes[2].Key.Ino})
	assert.Equal(t, "home/notes.txt", byBytes[2].Path)

	byReqs := w.Files(true, Filter{}, 1)
	require.Len(t, byReqs, 1)
	assert.EqualValues(t, 2, byReqs[0].Key.Ino)

	uid := uint32(1)
	assert.Len(t, w.Files(false, Filter{UID: &uid}, 0), 2)

	ip := uint32(7)
	only := w.Files(false, Filter{IPv4: &ip}, 0)
	require.Len(t, only, 1)
	assert.EqualValues(t, 3, only[0].Key.Ino)
}

func TestResolveIgnoresEmptyNames(t *testing.T) {
	w := New()
	w.Resolve(probe.TrafficEvent{Ino: 4})
	_, ok := w.Path(4)
	assert.False(t, ok)

	w.Resolve(event(4, "", "top.txt"))
	p, ok := w.Path(4)
	require.True(t, ok)
	assert.Equal(t, "top.txt", p)
}

func TestUserLookupIsCached(t *testing.T) {
	calls := 0
	w := New(WithUserLookup(func(uid uint32) string {
		calls++
		return "u"
	}))
	w.Apply(time.Now(), []probe.Entry{
		{Key: probe.TrafficKey{Ino: 1, UID: 5}, Stats: probe.TrafficStats{ReadBytes: 1}},
		{Key: probe.TrafficKey{Ino: 2, UID: 5}, Stats: probe.TrafficStats{ReadBytes: 1}},
	}, probe.Stats{})

	w.Files(false, Filter{}, 0)
	w.Users()
	assert.Equal(t, 1, calls)
}
