package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestWatchModelShowsLastGoodTable(t *testing.T) {
	calls := 0
	m := newWatchModel(context.Background(), time.Minute, func(ctx context.Context, w *strings.Builder) error {
		calls++
		w.WriteString("table\n")
		return nil
	})

	msg := m.scanCmd()()
	if calls != 1 {
		t.Fatalf("expected one scan, got %d", calls)
	}
	model, cmd := m.Update(msg)
	m2 := model.(watchModel)
	if cmd == nil {
		t.Fatal("expected a rescan tick after a finished scan")
	}
	if m2.scanning || !strings.Contains(m2.View(), "table") {
		t.Fatalf("expected rendered table, got %q", m2.View())
	}

	model, _ = m2.Update(scanDoneMsg{err: errors.New("disk gone"), at: time.Now()})
	m3 := model.(watchModel)
	view := m3.View()
	if !strings.Contains(view, "table") || !strings.Contains(view, "scan failed: disk gone") {
		t.Fatalf("expected previous table and the error, got %q", view)
	}
}

func TestWatchModelKeys(t *testing.T) {
	m := newWatchModel(context.Background(), time.Minute, func(context.Context, *strings.Builder) error { return nil })
	m.scanning = false

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if !model.(watchModel).scanning || cmd == nil {
		t.Fatal("r should start a rescan")
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q should return tea.Quit")
	}
}

func TestWatchModelDropsStaleRescanTicks(t *testing.T) {
	m := newWatchModel(context.Background(), time.Minute, func(context.Context, *strings.Builder) error { return nil })
	model, _ := m.Update(scanDoneMsg{table: "first\n", at: time.Now()})
	m = model.(watchModel)
	staleGen := m.gen

	// a manual rescan finishes before the first tick fires
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m = model.(watchModel)
	model, _ = m.Update(scanDoneMsg{table: "second\n", at: time.Now()})
	m = model.(watchModel)
	if m.gen == staleGen {
		t.Fatal("a finished scan should advance the tick generation")
	}

	model, cmd := m.Update(rescanMsg{gen: staleGen})
	if cmd != nil || model.(watchModel).scanning {
		t.Fatal("a tick from an earlier scan must not start another scan")
	}

	model, cmd = m.Update(rescanMsg{gen: m.gen})
	if cmd == nil || !model.(watchModel).scanning {
		t.Fatal("the current tick should start a scan")
	}
}
