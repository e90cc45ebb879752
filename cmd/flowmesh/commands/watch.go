package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/flowmesh-dev/flowmesh/internal/diagnostics"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// watchModel is the `run --watch` live progress view: one line per
// slot, updated as diagnostics events arrive over eventCh.
type watchModel struct {
	order   []string
	state   map[string]string
	message map[string]string
	started time.Time
	eventCh chan diagnostics.Event
	done    chan struct{}
	quit    bool
}

type watchEventMsg diagnostics.Event
type watchClosedMsg struct{}

func newWatchModel(order []string, eventCh chan diagnostics.Event, done chan struct{}) *watchModel {
	return &watchModel{
		order:   order,
		state:   make(map[string]string, len(order)),
		message: make(map[string]string, len(order)),
		started: time.Now(),
		eventCh: eventCh,
		done:    done,
	}
}

func (m *watchModel) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m *watchModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.eventCh
		if !ok {
			return watchClosedMsg{}
		}
		return watchEventMsg(ev)
	}
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		}
	case watchEventMsg:
		ev := diagnostics.Event(msg)
		if ev.SlotID != "" {
			m.state[ev.SlotID] = ev.State
			if ev.Message != "" {
				m.message[ev.SlotID] = ev.Message
			} else if ev.Err != "" {
				m.message[ev.SlotID] = ev.Err
			}
			if !contains(m.order, ev.SlotID) {
				m.order = append(m.order, ev.SlotID)
			}
		}
		return m, m.waitForEvent()
	case watchClosedMsg:
		return m, tea.Quit
	}
	return m, nil
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func (m *watchModel) View() string {
	sorted := append([]string(nil), m.order...)
	sort.Strings(sorted)

	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).
		Render(fmt.Sprintf("flowmesh — %s elapsed", formatWatchElapsed(time.Since(m.started))))

	var lines []string
	for _, slotID := range sorted {
		state := m.state[slotID]
		icon, style := watchIcon(state)
		line := fmt.Sprintf("%s %-20s %s", icon, slotID, state)
		if msg := m.message[slotID]; msg != "" {
			line += "  " + msg
		}
		lines = append(lines, style.Render(line))
	}
	if len(lines) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render("waiting for events..."))
	}

	footer := lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render("Press: q=quit")

	body := lipgloss.JoinVertical(lipgloss.Left, append([]string{title, ""}, append(lines, "", footer)...)...)
	return lipgloss.NewStyle().Margin(1, 1, 1, 1).Render(body)
}

func watchIcon(state string) (string, lipgloss.Style) {
	switch state {
	case diagnostics.StateFault, diagnostics.StateRejected:
		return "✗", lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	case diagnostics.StateOverflow, diagnostics.StateIsolated, diagnostics.StateTranslateErr:
		return "⚠", lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	case diagnostics.StateRunning, diagnostics.StateAdmitted, diagnostics.StateConstructed, diagnostics.StateInitialised, diagnostics.StateIterated:
		return "✓", lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	case diagnostics.StateTerminated:
		return "—", lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	default:
		return "○", lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	}
}

func formatWatchElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// runWatchTUI drives the Bubble Tea program for the lifetime of a run,
// closing done once the program exits (the event channel closing, or
// the operator pressing q).
func runWatchTUI(order []string, eventCh chan diagnostics.Event, done chan struct{}) {
	defer close(done)
	m := newWatchModel(order, eventCh, done)
	p := tea.NewProgram(m)
	_, _ = p.Run()
}
