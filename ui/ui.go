// ui/ui.go
// Package ui renders the NFS traffic window either as a tview dashboard
// or as periodic plain text.
package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"nfstraffic/nfscollector/utility"
	"nfstraffic/probe"
	"nfstraffic/window"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const MaxLines = 100 // keep the last 100 entries, exported

// rollupLines caps the users and clients panes.
const rollupLines = 8

// ChannelWriter funnels log lines into the System Log pane. Lines are
// dropped when the pane is not keeping up.
type ChannelWriter struct{ Ch chan string }

// Write implements the io.Writer interface for our channel.
func (w ChannelWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	select {
	case w.Ch <- msg:
	default:
	}
	return len(p), nil
}

// Sync lets ChannelWriter act as a zapcore.WriteSyncer.
func (w ChannelWriter) Sync() error { return nil }

// viewState is what the command line changes.
type viewState struct {
	byRequests bool
	filter     window.Filter
}

// Dashboard is the interactive view: system log, summary, per-user and
// per-client shares, the busiest files, filename events and a command line.
type Dashboard struct {
	app    *tview.Application
	layout *tview.Flex

	sysView     *tview.TextView
	summaryView *tview.TextView
	usersView   *tview.TextView
	clientsView *tview.TextView
	filesView   *tview.Table
	eventView   *tview.TextView
	input       *tview.InputField

	win    *window.Window
	top    int
	logger *zap.Logger

	sysChan   chan string
	eventChan chan string

	// updates feeds the drawer; done is closed once Run returns, after
	// which nothing is queued on the stopped application
	updates  chan func()
	done     chan struct{}
	doneOnce sync.Once

	mu    sync.Mutex
	state viewState
}

// NewDashboard creates and lays out the tview application. sysChan is the
// channel a ChannelWriter feeds log lines into.
func NewDashboard(win *window.Window, top int, sysChan chan string, logger *zap.Logger) *Dashboard {
	app := tview.NewApplication()

	d := &Dashboard{
		app:       app,
		win:       win,
		top:       top,
		logger:    logger.Named("ui"),
		sysChan:   sysChan,
		eventChan: make(chan string, 200),
		updates:   make(chan func(), 16),
		done:      make(chan struct{}),
	}

	d.sysView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	d.sysView.SetBorder(true).SetTitle(" System Log ")

	d.summaryView = tview.NewTextView().
		SetTextAlign(tview.AlignCenter)
	d.summaryView.SetBorder(true).SetTitle(" NFS traffic ")
	d.summaryView.SetText(FormatSummary(window.Summary{}))

	d.usersView = tview.NewTextView()
	d.usersView.SetBorder(true).SetTitle(" Users ")

	d.clientsView = tview.NewTextView()
	d.clientsView.SetBorder(true).SetTitle(" Clients ")

	d.filesView = tview.NewTable().
		SetFixed(1, 0).
		SetSelectable(true, false)
	d.filesView.SetBorder(true).SetTitle(" Files ")
	renderFiles(d.filesView, nil)

	d.eventView = tview.NewTextView().
		SetScrollable(true)
	d.eventView.SetBorder(true).SetTitle(" Filename events ")

	d.input = tview.NewInputField().
		SetLabel("Command: ").
		SetPlaceholder("sort bytes|requests, filter uid N, filter ip A.B.C.D, clear").
		SetFieldWidth(0)
	d.input.SetDoneFunc(d.onCommand)

	rollups := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(d.usersView, 0, 1, false).
		AddItem(d.clientsView, 0, 1, false)

	middle := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(d.filesView, 0, 3, false).
		AddItem(d.eventView, 0, 2, false)

	d.layout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.summaryView, 4, 0, false).
		AddItem(rollups, rollupLines+3, 0, false).
		AddItem(middle, 0, 4, false).
		AddItem(d.sysView, 0, 1, false).
		AddItem(d.input, 1, 0, true)

	return d
}

// Run pumps the log and event panes and blocks until Stop or the user
// quits.
func (d *Dashboard) Run() error {
	defer d.doneOnce.Do(func() { close(d.done) })

	go d.drawLoop()
	go d.pumpTextview(d.sysView, d.sysChan)
	go d.pumpTextview(d.eventView, d.eventChan)

	return d.app.SetRoot(d.layout, true).SetFocus(d.input).Run()
}

// Stop ends Run.
func (d *Dashboard) Stop() { d.app.Stop() }

// Done is closed when Run has returned.
func (d *Dashboard) Done() <-chan struct{} { return d.done }

// draw hands f to the drawer, or drops it once the dashboard is gone.
func (d *Dashboard) draw(f func()) {
	select {
	case d.updates <- f:
	case <-d.done:
	}
}

// drawLoop applies queued updates on the event loop. QueueUpdateDraw waits
// for the loop, so an update in flight when the app stops strands this
// goroutine and nothing else.
func (d *Dashboard) drawLoop() {
	for {
		select {
		case <-d.done:
			return
		case f := <-d.updates:
			d.app.QueueUpdateDraw(f)
		}
	}
}

// AddEvent appends a filename event to the events pane.
func (d *Dashboard) AddEvent(at time.Time, ev probe.TrafficEvent) {
	select {
	case d.eventChan <- FormatEvent(at, ev):
	default:
	}
}

// Refresh redraws every pane from the window.
func (d *Dashboard) Refresh() {
	d.mu.Lock()
	st := d.state
	d.mu.Unlock()

	summary := FormatSummary(d.win.Summary())
	users := FormatRollups(d.win.Users(), rollupLines)
	clients := FormatRollups(d.win.Clients(), rollupLines)
	rows := d.win.Files(st.byRequests, st.filter, d.top)

	d.draw(func() {
		d.summaryView.SetText(summary)
		d.usersView.SetText(users)
		d.clientsView.SetText(clients)
		renderFiles(d.filesView, rows)
		d.filesView.SetTitle(filesTitle(st))
	})
}

func (d *Dashboard) onCommand(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	msg, err := d.Execute(d.input.GetText())
	if err != nil {
		d.logger.Warn("command rejected", zap.Error(err))
	} else {
		d.logger.Info(msg)
	}
	d.input.SetText("")
	go d.Refresh()
}

// Execute applies a typed command to the view and describes the result.
func (d *Dashboard) Execute(text string) (string, error) {
	cmd, err := utility.ParseCommand(text)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.apply(cmd), nil
}

func (s *viewState) apply(cmd *utility.Command) string {
	switch cmd.Op {
	case utility.OpSort:
		s.byRequests = cmd.Sort == utility.SortRequests
		if s.byRequests {
			return "sorting files by requests"
		}
		return "sorting files by bytes"
	case utility.OpFilterUID:
		uid := cmd.UID
		s.filter.UID = &uid
		return fmt.Sprintf("showing uid %d only", uid)
	case utility.OpFilterIP:
		ip := cmd.IPv4
		s.filter.IPv4 = &ip
		return "showing client " + probe.FormatIPv4(ip) + " only"
	case utility.OpClear:
		s.filter = window.Filter{}
		return "filters cleared"
	}
	return "nothing to do"
}

func filesTitle(s viewState) string {
	var b strings.Builder
	b.WriteString(" Files by ")
	if s.byRequests {
		b.WriteString("requests")
	} else {
		b.WriteString("bytes")
	}
	if s.filter.UID != nil {
		fmt.Fprintf(&b, ", uid %d", *s.filter.UID)
	}
	if s.filter.IPv4 != nil {
		b.WriteString(", client " + probe.FormatIPv4(*s.filter.IPv4))
	}
	b.WriteByte(' ')
	return b.String()
}

func renderFiles(t *tview.Table, rows []window.FileRow) {
	t.Clear()
	for col, h := range FileColumns {
		t.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
	for i, r := range rows {
		for col, text := range FileCells(r) {
			cell := tview.NewTableCell(text)
			if col > 2 {
				cell.SetAlign(tview.AlignRight)
			} else {
				cell.SetExpansion(1)
			}
			t.SetCell(i+1, col, cell)
		}
	}
}

// pumpTextview reads lines from a channel and updates a tview.TextView,
// keeping only MaxLines, until the dashboard is done.
func (d *Dashboard) pumpTextview(view *tview.TextView, ch <-chan string) {
	var buffer []string
	for {
		var line string
		select {
		case <-d.done:
			return
		case l, ok := <-ch:
			if !ok {
				return
			}
			line = l
		}

		buffer = append(buffer, line)
		if len(buffer) > MaxLines {
			buffer = buffer[1:]
		}
		text := strings.Join(buffer, "\n")
		d.draw(func() {
			view.SetText(text)
			view.ScrollToEnd()
		})
	}
}
