package cli

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true)
	watchHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	watchErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

type scanFunc func(ctx context.Context, w *strings.Builder) error

type scanDoneMsg struct {
	table string
	err   error
	at    time.Time
}

// rescanMsg carries the generation of the scan that scheduled it.
type rescanMsg struct{ gen int }

type watchModel struct {
	ctx      context.Context
	scan     scanFunc
	interval time.Duration
	spinner  spinner.Model
	scanning bool
	table    string
	err      error
	lastScan time.Time
	gen      int
}

func newWatchModel(ctx context.Context, interval time.Duration, scan scanFunc) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return watchModel{
		ctx:      ctx,
		scan:     scan,
		interval: interval,
		spinner:  sp,
		scanning: true,
	}
}

func (m watchModel) scanCmd() tea.Cmd {
	return func() tea.Msg {
		var b strings.Builder
		err := m.scan(m.ctx, &b)
		return scanDoneMsg{table: b.String(), err: err, at: time.Now()}
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.scanCmd())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			if !m.scanning {
				m.scanning = true
				return m, m.scanCmd()
			}
		}
		return m, nil
	case scanDoneMsg:
		m.scanning = false
		m.lastScan = msg.at
		m.err = msg.err
		if msg.err == nil {
			m.table = msg.table
		}
		m.gen++
		gen := m.gen
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return rescanMsg{gen: gen} })
	case rescanMsg:
		// only the tick from the latest finished scan drives the loop
		if m.scanning || msg.gen != m.gen {
			return m, nil
		}
		m.scanning = true
		return m, m.scanCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render("k2ledger status"))
	if m.scanning {
		b.WriteString("  " + m.spinner.View() + " scanning")
	} else if !m.lastScan.IsZero() {
		b.WriteString("  " + watchHintStyle.Render("updated "+m.lastScan.Format("15:04:05")))
	}
	b.WriteString("\n\n")
	b.WriteString(m.table)
	if m.err != nil {
		b.WriteString("\n" + watchErrStyle.Render("scan failed: "+m.err.Error()) + "\n")
	}
	b.WriteString("\n" + watchHintStyle.Render("r rescan  q quit") + "\n")
	return b.String()
}

func runWatch(ctx context.Context, a *app, interval time.Duration, scan scanFunc) error {
	m := newWatchModel(ctx, interval, scan)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if fm, ok := final.(watchModel); ok && fm.err != nil {
		a.logger.Warn("last scan failed", zap.Error(fm.err))
	}
	return nil
}
