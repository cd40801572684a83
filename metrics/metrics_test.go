package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nfstraffic/probe"
	"nfstraffic/window"
)

func testWindow() *window.Window {
	w := window.New(window.WithUserLookup(func(uint32) string { return "x" }))
	w.Apply(time.Now(), []probe.Entry{
		{Key: probe.TrafficKey{Ino: 7, UID: 1000, IPv4: 0xC0A80101}, Stats: probe.TrafficStats{WriteRequests: 2, WriteBytes: 12288}},
	}, probe.Stats{Rejected: 3, Dropped: 4})
	return w
}

func resolve(w *window.Window) {
	ev := probe.TrafficEvent{Ino: 7}
	probe.CopyName(&ev.Name, []byte("a.bin"))
	probe.CopyName(&ev.ParentName, []byte("data"))
	w.Resolve(ev)
}

const writeBytes = `
# HELP nfstraffic_write_bytes_total Payload bytes of NFS writes by user, client and file.
# TYPE nfstraffic_write_bytes_total counter
nfstraffic_write_bytes_total{client="192.168.1.1",ino="7",uid="1000"} 12288
`

func TestExporterCollect(t *testing.T) {
	w := testWindow()
	resolve(w)
	e := NewExporter(w)

	expected := writeBytes + `
# HELP nfstraffic_file_info Last known path of an inode, always 1.
# TYPE nfstraffic_file_info gauge
nfstraffic_file_info{ino="7",path="data/a.bin"} 1
# HELP nfstraffic_events_dropped_total Filename events dropped because the event channel was full.
# TYPE nfstraffic_events_dropped_total counter
nfstraffic_events_dropped_total 4
# HELP nfstraffic_table_rejected_total Counter updates dropped because the aggregation table was full.
# TYPE nfstraffic_table_rejected_total counter
nfstraffic_table_rejected_total 3
`
	require.NoError(t, testutil.CollectAndCompare(e, strings.NewReader(expected),
		"nfstraffic_write_bytes_total",
		"nfstraffic_file_info",
		"nfstraffic_events_dropped_total",
		"nfstraffic_table_rejected_total"))

	assert.Equal(t, 4+1+5, testutil.CollectAndCount(e))
}

func TestExporterSeriesSurviveNaming(t *testing.T) {
	w := testWindow()
	e := NewExporter(w)

	require.NoError(t, testutil.CollectAndCompare(e, strings.NewReader(writeBytes), "nfstraffic_write_bytes_total"))
	assert.Zero(t, testutil.CollectAndCount(e, "nfstraffic_file_info"), "no info before the file is named")

	resolve(w)

	require.NoError(t, testutil.CollectAndCompare(e, strings.NewReader(writeBytes), "nfstraffic_write_bytes_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(e, "nfstraffic_file_info"))
}
