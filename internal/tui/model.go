// Package tui is the terminal shell of the card. It polls the HTTP API and
// keeps its own expansion state.
package tui

import (
	"context"
	"time"

	"github.com/berfenger/meshcard/internal/core/domain"
	"github.com/berfenger/meshcard/internal/core/expansion"
	"github.com/berfenger/meshcard/internal/render"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type SnapshotSource interface {
	Snapshot(ctx context.Context) (domain.ViewSnapshot, error)
}

type keyMap struct {
	Toggle  key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Toggle: key.NewBinding(
		key.WithKeys("n", "enter", " "),
		key.WithHelp("n/enter", "nodes"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

var (
	helpStyle  = lipgloss.NewStyle().Foreground(render.ColorMuted)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
)

type tickMsg time.Time

type snapshotMsg struct {
	snapshot domain.ViewSnapshot
	err      error
}

type Model struct {
	source    SnapshotSource
	interval  time.Duration
	expansion expansion.State
	snapshot  *domain.ViewSnapshot
	err       error
	width     int
	quitting  bool
}

func NewModel(source SnapshotSource, interval time.Duration) Model {
	return Model{
		source:   source,
		interval: interval,
		width:    render.DEFAULT_WIDTH,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Toggle):
			m.expansion.Toggle()
		case key.Matches(msg, keys.Refresh):
			return m, m.fetchCmd()
		}

	case tea.WindowSizeMsg:
		m.width = min(msg.Width, render.DEFAULT_WIDTH)

	case tickMsg:
		return m, tea.Batch(m.fetchCmd(), m.tickCmd())

	case snapshotMsg:
		m.err = msg.err
		if msg.err == nil {
			snapshot := msg.snapshot
			m.snapshot = &snapshot
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var out string
	if m.snapshot == nil {
		out = helpStyle.Render("loading...")
	} else {
		out = render.Card(expansion.Present(*m.snapshot, m.expansion.Expanded()), m.width)
	}
	if m.err != nil {
		out += "\n" + errorStyle.Render(m.err.Error())
	}
	return out + "\n" + helpStyle.Render("n: nodes • r: refresh • q: quit") + "\n"
}

func (m Model) Expanded() bool {
	return m.expansion.Expanded()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetchCmd() tea.Cmd {
	source := m.source
	timeout := m.interval
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		snapshot, err := source.Snapshot(ctx)
		return snapshotMsg{snapshot: snapshot, err: err}
	}
}
