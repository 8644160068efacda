// Package monitor is a terminal dashboard over a running Sched and
// syncom.Link: a live-updating table of recent dispatch events plus the
// link's phase and queue depth. It is built the way the example pack's
// TUI-building repo builds cmd/surge's progress view — a bubbletea.Model
// driven by a tick command, rendered with lipgloss styles — generalized
// from "build pipeline progress" to "scheduler dispatch history".
package monitor

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"synsched/sched"
	"synsched/syncom"
)

const tickInterval = 200 * time.Millisecond

type tickMsg time.Time

// Model is the dashboard's bubbletea.Model. Construct with New and run it
// with tea.NewProgram.
type Model struct {
	sch   *sched.Sched
	link  *syncom.Link // nil when the demo being watched has no SynCom link
	width int
}

// New returns a dashboard model watching sch and, optionally, link.
func New(sch *sched.Sched, link *syncom.Link) Model {
	return Model{sch: sch, link: link, width: 80}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		return m, tick()
	}
	return m, nil
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("sched monitor"))
	b.WriteString("\n\n")

	if m.link != nil {
		b.WriteString(headerStyle.Render("link"))
		b.WriteString("  ")
		running := m.link.Running()
		status := okStyle.Render("running")
		if !running {
			status = errStyle.Render("timed out")
		}
		fmt.Fprintf(&b, "%s  pending=%d\n\n", status, m.link.Any())
	}

	if m.sch == nil {
		b.WriteString(lipgloss.NewStyle().Faint(true).Render("no scheduler attached; no dispatch history to show"))
		b.WriteString("\n")
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Faint(true).Render("press q to quit"))
		return b.String()
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-6s %-10s %-10s %-12s %s", "pid", "pin_hits", "poll_val", "lateness_us", "at_us")))
	b.WriteString("\n")
	events := m.sch.RecentEvents()
	for i := len(events) - 1; i >= 0 && i >= len(events)-20; i-- {
		ev := events[i]
		style := okStyle
		if ev.Tuple.LatenessUS > 0 {
			style = warnStyle
		}
		line := fmt.Sprintf("%-6d %-10d %-10d %-12d %d", ev.PID, ev.Tuple.PinHits, ev.Tuple.PollValue, ev.Tuple.LatenessUS, ev.At)
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("press q to quit"))
	return b.String()
}
