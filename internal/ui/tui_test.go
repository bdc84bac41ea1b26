package ui

import (
	"testing"
	"time"

	"github.com/icecake0141/paraping/internal/history"
	"github.com/icecake0141/paraping/internal/probe"
	"github.com/icecake0141/paraping/internal/stats"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type fakeASN map[string]string

func (f fakeASN) Lookup(ip string) (string, bool) {
	v, ok := f[ip]
	return v, ok
}

func TestCursorTitle(t *testing.T) {
	if got := cursorTitle(0); got != "paraping [LIVE]" {
		t.Fatalf("live title: got %q", got)
	}
	if got := cursorTitle(4); got != "paraping [history -4]" {
		t.Fatalf("history title: got %q", got)
	}
}

func TestFormatRTT(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "-"},
		{1500 * time.Microsecond, "1.5 ms"},
		{23 * time.Millisecond, "23.0 ms"},
	}
	for _, tt := range tests {
		if got := formatRTT(tt.in); got != tt.want {
			t.Fatalf("formatRTT(%v): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHostColumnWidth(t *testing.T) {
	targets := []Target{
		{Address: "a.example"},
		{Address: "8.8.8.8", Alias: "a-much-longer-alias.example.com"},
	}
	if got := hostColumnWidth(targets); got != len("a-much-longer-alias.example.com") {
		t.Fatalf("width: got %d", got)
	}
	if got := hostColumnWidth(nil); got != minHostColWidth {
		t.Fatalf("empty width: got %d, want %d", got, minHostColWidth)
	}
}

func TestBuildRowSuccess(t *testing.T) {
	tgt := Target{Address: "8.8.8.8", IP: "8.8.8.8"}
	rec := history.Record{
		Host:    "8.8.8.8",
		Outcome: probe.Outcome{Kind: probe.Success, RTT: 12 * time.Millisecond, TTL: 57},
	}
	snap := stats.Compute([]history.Record{rec})
	cells, color := buildRow(tgt, rec, true, snap, fakeASN{"8.8.8.8": "AS15169"})

	if cells[2] != "ok" || color != tcell.ColorGreen {
		t.Fatalf("success row: last=%q color=%v", cells[2], color)
	}
	if cells[3] != "12.0 ms" {
		t.Fatalf("rtt cell: got %q", cells[3])
	}
	if cells[8] != "57" {
		t.Fatalf("ttl cell: got %q", cells[8])
	}
	if cells[9] != "AS15169" {
		t.Fatalf("asn cell: got %q", cells[9])
	}
}

func TestBuildRowTimeoutDistinctFromError(t *testing.T) {
	tgt := Target{Address: "h", IP: "192.0.2.1"}

	timeoutRec := history.Record{Outcome: probe.Outcome{Kind: probe.Timeout}}
	cells, timeoutColor := buildRow(tgt, timeoutRec, true, stats.Snapshot{Total: 1}, nil)
	if cells[2] != "timeout" {
		t.Fatalf("timeout cell: got %q", cells[2])
	}

	errRec := history.Record{Outcome: probe.Outcome{Kind: probe.SocketFailed}}
	errCells, errColor := buildRow(tgt, errRec, true, stats.Snapshot{Total: 1}, nil)
	if errCells[2] != "socket_failed" {
		t.Fatalf("error cell: got %q", errCells[2])
	}
	if timeoutColor == errColor {
		t.Fatal("timeout must render distinctly from errors")
	}
}

func TestBuildRowNoHistory(t *testing.T) {
	cells, _ := buildRow(Target{Address: "h"}, history.Record{}, false, stats.Snapshot{}, nil)
	if cells[2] != "-" || cells[4] != "-" || cells[8] != "-" {
		t.Fatalf("empty row should show placeholders: %v", cells)
	}
}

type fakeDrawApp struct {
	stopped chan struct{}
	drawn   chan struct{}
	// block holds QueueUpdateDraw callers, imitating an event loop that has
	// already returned and no longer drains its queue.
	block chan struct{}
}

func newFakeDrawApp() *fakeDrawApp {
	return &fakeDrawApp{
		stopped: make(chan struct{}),
		drawn:   make(chan struct{}, 16),
	}
}

func (f *fakeDrawApp) QueueUpdateDraw(fn func()) *tview.Application {
	if f.block != nil {
		<-f.block
		return nil
	}
	fn()
	select {
	case f.drawn <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeDrawApp) Stop() {
	close(f.stopped)
}

func TestWatchAndRefreshStopsAppOnQuit(t *testing.T) {
	app := newFakeDrawApp()
	quit := make(chan struct{})
	done := make(chan struct{})
	returned := make(chan struct{})

	go func() {
		watchAndRefresh(app, func() {}, time.Hour, quit, done)
		close(returned)
	}()

	close(quit)
	select {
	case <-app.stopped:
	case <-time.After(time.Second):
		t.Fatal("application not stopped after quit closed")
	}
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("refresh loop still running after quit")
	}
}

func TestWatchAndRefreshExitsWhileDrawPending(t *testing.T) {
	app := newFakeDrawApp()
	app.block = make(chan struct{})
	defer close(app.block)
	done := make(chan struct{})
	returned := make(chan struct{})

	go func() {
		watchAndRefresh(app, func() {}, 5*time.Millisecond, nil, done)
		close(returned)
	}()

	time.Sleep(20 * time.Millisecond) // let a draw hand-off get stuck
	close(done)
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("refresh loop parked behind a dead event loop")
	}
}

func TestWatchAndRefreshRendersOnTick(t *testing.T) {
	app := newFakeDrawApp()
	done := make(chan struct{})
	defer close(done)

	go watchAndRefresh(app, func() {}, 5*time.Millisecond, nil, done)

	select {
	case <-app.drawn:
	case <-time.After(time.Second):
		t.Fatal("no draw observed")
	}
}
