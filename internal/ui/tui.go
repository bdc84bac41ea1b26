// Package ui renders live probe results in a terminal table and drives the
// history time-travel cursor from the keyboard.
package ui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	"github.com/icecake0141/paraping/internal/history"
	"github.com/icecake0141/paraping/internal/probe"
	"github.com/icecake0141/paraping/internal/stats"
)

const (
	minHostColWidth = 12
	statsWindow     = 100
)

var headers = []string{"Host", "Address", "Last", "RTT", "Loss%", "Streak", "Mean", "Stddev", "TTL", "ASN"}

// Target is one row of the table.
type Target struct {
	Address string // probe target as configured
	Alias   string // optional display name
	IP      string // resolved address used for enrichment lookups
}

func (t Target) displayName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Address
}

// ASNSource provides cached enrichment results; the asn.Resolver satisfies it.
type ASNSource interface {
	Lookup(ip string) (string, bool)
}

// Run draws the table until the user quits or quit closes, then calls stop.
// Left/right arrows page the cursor through history; 0 jumps back to live.
// quit may be nil when there is no external lifecycle to watch.
func Run(targets []Target, store *history.Store, asns ASNSource, refresh time.Duration, quit <-chan struct{}, stop func()) error {
	app := tview.NewApplication()
	table := tview.NewTable().SetBorders(false).SetFixed(1, 0)
	table.SetSelectable(false, false)

	frame := tview.NewFrame(table).SetBorders(0, 0, 0, 0, 1, 1)

	render := func() {
		renderTable(table, targets, store, asns)
		frame.Clear()
		frame.AddText(cursorTitle(store.Cursor()), true, tview.AlignLeft, tcell.ColorYellow)
		frame.AddText("arrows: history  0: live  q: quit", false, tview.AlignLeft, tcell.ColorGray)
	}
	render()

	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyLeft:
			store.MoveCursor(1)
			render()
			return nil
		case tcell.KeyRight:
			store.MoveCursor(-1)
			render()
			return nil
		case tcell.KeyEscape:
			app.Stop()
			return nil
		}
		switch ev.Rune() {
		case 'q':
			app.Stop()
			return nil
		case '0':
			store.MoveCursor(-1 << 20)
			render()
			return nil
		}
		return ev
	})

	done := make(chan struct{})
	go watchAndRefresh(app, render, refresh, quit, done)

	err := app.SetRoot(frame, true).Run()
	close(done)
	stop()
	return err
}

// drawQueuer is the slice of tview.Application the refresh loop needs.
type drawQueuer interface {
	QueueUpdateDraw(f func()) *tview.Application
	Stop()
}

// watchAndRefresh redraws on every tick until done closes. A closed quit
// channel stops the application: the probe source has died and the table
// would only go stale. Each draw is handed off on a side goroutine so a
// stopped event loop, which no longer drains its update queue, cannot park
// this loop past close(done).
func watchAndRefresh(app drawQueuer, render func(), refresh time.Duration, quit, done <-chan struct{}) {
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-quit:
			app.Stop()
			return
		case <-ticker.C:
			drawn := make(chan struct{})
			go func() {
				app.QueueUpdateDraw(render)
				close(drawn)
			}()
			select {
			case <-drawn:
			case <-done:
				return
			}
		}
	}
}

func renderTable(table *tview.Table, targets []Target, store *history.Store, asns ASNSource) {
	for col, h := range headers {
		table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorAqua).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}

	offset := store.Cursor()
	hostWidth := hostColumnWidth(targets)
	for row, tgt := range targets {
		rec, ok := store.Read(tgt.Address, offset)
		snap := stats.Compute(store.Window(tgt.Address, offset, statsWindow))
		cells, color := buildRow(tgt, rec, ok, snap, asns)
		for col, text := range cells {
			cell := tview.NewTableCell(text)
			if col == 0 {
				cell.SetMaxWidth(hostWidth)
			}
			if col == 2 {
				cell.SetTextColor(color)
			}
			table.SetCell(row+1, col, cell)
		}
	}
}

// buildRow formats one host line. The Last column color keeps timeouts
// visually distinct from errors: expected silence is not a malfunction.
func buildRow(tgt Target, rec history.Record, ok bool, snap stats.Snapshot, asns ASNSource) ([]string, tcell.Color) {
	last := "-"
	rtt := "-"
	color := tcell.ColorGray
	if ok {
		switch rec.Outcome.Kind {
		case probe.Success:
			last = "ok"
			rtt = formatRTT(rec.Outcome.RTT)
			color = tcell.ColorGreen
		case probe.Timeout:
			last = "timeout"
			color = tcell.ColorYellow
		default:
			last = rec.Outcome.Kind.String()
			color = tcell.ColorRed
		}
	}

	loss := "-"
	if snap.Total > 0 {
		loss = fmt.Sprintf("%.1f", (1-snap.SuccessRate)*100)
	}
	ttl := "-"
	if snap.HasTTL {
		ttl = fmt.Sprintf("%d", snap.LastTTL)
	}
	asnText := "-"
	if asns != nil {
		if v, found := asns.Lookup(tgt.IP); found {
			asnText = v
		}
	}

	return []string{
		tgt.displayName(),
		tgt.IP,
		last,
		rtt,
		loss,
		fmt.Sprintf("%d", snap.FailureStreak),
		formatRTT(snap.RTTMean),
		formatRTT(snap.RTTStddev),
		ttl,
		asnText,
	}, color
}

func formatRTT(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f ms", float64(d)/float64(time.Millisecond))
}

// cursorTitle labels the current history position.
func cursorTitle(offset int) string {
	if offset == 0 {
		return "paraping [LIVE]"
	}
	return fmt.Sprintf("paraping [history -%d]", offset)
}

// hostColumnWidth sizes the host column to the widest display name, bounded
// below so short host sets still align.
func hostColumnWidth(targets []Target) int {
	w := minHostColWidth
	for _, t := range targets {
		if rw := runewidth.StringWidth(t.displayName()); rw > w {
			w = rw
		}
	}
	return w
}
