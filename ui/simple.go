// ui/simple.go
package ui

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"nfstraffic/probe"
	"nfstraffic/window"
)

// Simple prints the window as plain text, one block per Render call.
type Simple struct {
	out io.Writer
	win *window.Window
	top int

	mu     sync.Mutex
	events []string
}

func NewSimple(out io.Writer, win *window.Window, top int) *Simple {
	return &Simple{out: out, win: win, top: top}
}

// AddEvent queues a filename event for the next Render.
func (s *Simple) AddEvent(at time.Time, ev probe.TrafficEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, FormatEvent(at, ev))
	if len(s.events) > MaxLines {
		s.events = s.events[1:]
	}
}

// Render writes the summary, the rollups, the busiest files and the
// events seen since the previous call.
func (s *Simple) Render() error {
	s.mu.Lock()
	events := s.events
	s.events = nil
	s.mu.Unlock()

	if _, err := fmt.Fprintf(s.out, "== %s\n", FormatSummary(s.win.Summary())); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.out, "-- users\n%s-- clients\n%s",
		FormatRollups(s.win.Users(), rollupLines),
		FormatRollups(s.win.Clients(), rollupLines)); err != nil {
		return err
	}

	rows := s.win.Files(false, window.Filter{}, s.top)
	if len(rows) > 0 {
		tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', tabwriter.AlignRight)
		for _, h := range FileColumns {
			fmt.Fprintf(tw, "%s\t", h)
		}
		fmt.Fprintln(tw)
		for _, r := range rows {
			for _, c := range FileCells(r) {
				fmt.Fprintf(tw, "%s\t", c)
			}
			fmt.Fprintln(tw)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	for _, line := range events {
		if _, err := fmt.Fprintf(s.out, "   %s\n", line); err != nil {
			return err
		}
	}
	return nil
}
