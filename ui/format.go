// ui/format.go
package ui

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"
	"time"

	"nfstraffic/probe"
	"nfstraffic/window"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	timeColWidth = 12 // width of the timestamp column
	inoColWidth  = 12 // width of the inode column
)

// pool holds reusable *bytes.Buffer instances
var bufPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

var printer = message.NewPrinter(language.English)

// Count renders n with thousands separators.
func Count(n uint64) string {
	return printer.Sprintf("%d", n)
}

// Bytes renders n in IEC units.
func Bytes(n uint64) string {
	return humanize.IBytes(n)
}

// Percent renders a 0..1 share.
func Percent(share float64) string {
	return strconv.FormatFloat(share*100, 'f', 1, 64) + "%"
}

// FormatEvent builds a fixed-width line for the filename events pane with
// minimal allocations.
func FormatEvent(at time.Time, ev probe.TrafficEvent) string {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()

	writePadded(buf, at.Format("15:04:05.000"), timeColWidth)
	buf.WriteByte(' ')
	writePadded(buf, strconv.FormatUint(ev.Ino, 10), inoColWidth)
	buf.WriteByte(' ')
	buf.WriteString(ev.Path())

	result := buf.String()
	bufPool.Put(buf)
	return result
}

// FormatSummary renders the headline numbers of a window.
func FormatSummary(s window.Summary) string {
	if s.At.IsZero() {
		return "waiting for the first snapshot…"
	}
	return fmt.Sprintf(
		"%s  reads %s (%s)  writes %s (%s)  %s/s  buckets %s\n"+
			"aborted %s  table full %s  events dropped %s  suppressed %s",
		s.At.Format("15:04:05"),
		Count(s.Total.ReadRequests), Bytes(s.Total.ReadBytes),
		Count(s.Total.WriteRequests), Bytes(s.Total.WriteBytes),
		Bytes(uint64(s.BytesPerSecond())),
		Count(uint64(s.Buckets)),
		Count(s.Probe.Aborted), Count(s.Probe.Rejected),
		Count(s.Probe.Dropped), Count(s.Probe.Suppressed),
	)
}

// FormatRollups renders one line per user or client, at most limit lines.
func FormatRollups(rs []window.Rollup, limit int) string {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	for i, r := range rs {
		if limit > 0 && i == limit {
			fmt.Fprintf(buf, "… %d more\n", len(rs)-limit)
			break
		}
		writePadded(buf, r.Label, 16)
		buf.WriteByte(' ')
		writePadded(buf, Bytes(r.Stats.Bytes()), 10)
		buf.WriteByte(' ')
		buf.WriteString(Percent(r.Share))
		buf.WriteByte('\n')
	}
	return buf.String()
}

// FileColumns are the headers of the files table.
var FileColumns = []string{"PATH", "USER", "CLIENT", "READS", "RBYTES", "WRITES", "WBYTES", "RECENT"}

// FileCells renders one files table row.
func FileCells(r window.FileRow) []string {
	return []string{
		r.Path,
		r.User,
		probe.FormatIPv4(r.Key.IPv4),
		Count(r.Stats.ReadRequests),
		Bytes(r.Stats.ReadBytes),
		Count(r.Stats.WriteRequests),
		Bytes(r.Stats.WriteBytes),
		Bytes(r.Recent.Bytes()),
	}
}

// writePadded writes s left-aligned in a field of width w
func writePadded(buf *bytes.Buffer, s string, w int) {
	buf.WriteString(s)
	writePadding(buf, w-len(s))
}

// writePadding writes n spaces (n ≤ 0 → no op)
func writePadding(buf *bytes.Buffer, n int) {
	for n > 0 {
		const chunk = "          " // 10 spaces
		if n >= len(chunk) {
			buf.WriteString(chunk)
			n -= len(chunk)
		} else {
			buf.WriteString(chunk[:n])
			return
		}
	}
}
