package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/strrl/focus-timer/internal/countdown"
	"github.com/strrl/focus-timer/internal/timer"
	"github.com/strrl/focus-timer/pkg/models"
)

const barWidth = 30

type model struct {
	machine *timer.Machine
	keys    keyMap
	help    help.Model
	spinner *Spinner
	width   int
	height  int
}

func initialModel(machine *timer.Machine) model {
	return model{
		machine: machine,
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: NewSpinner(),
	}
}

func (m model) Init() tea.Cmd {
	return waitForEvent(m.machine.Events())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.FocusMsg:
		m.machine.Visible()

	case DriverEventMsg:
		ev := countdown.Event(msg)
		m.machine.Handle(ev)
		if ev.Kind == countdown.KindTick && ev.Generation == m.machine.Generation() {
			m.spinner.Next()
		}
		return m, waitForEvent(m.machine.Events())

	case driverClosedMsg:
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Start):
			m.machine.StartCountdown()
		case key.Matches(msg, m.keys.Reset):
			m.machine.ResetCountdown()
		case key.Matches(msg, m.keys.Next):
			m.machine.NextMode()
		case key.Matches(msg, m.keys.Focus):
			m.machine.SetMode(models.ModeFocus)
		case key.Matches(msg, m.keys.Break):
			m.machine.SetMode(models.ModeBreak)
		case key.Matches(msg, m.keys.LongBreak):
			m.machine.SetMode(models.ModeLongBreak)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}

	return m, nil
}

func (m model) View() string {
	st := m.machine.State()

	var s strings.Builder
	s.WriteString(m.renderHeader(st.Mode) + "\n\n")
	s.WriteString(m.renderClock(st) + "\n\n")
	s.WriteString("  " + renderProgressBar(progressOf(st), barWidth) + "\n\n")
	s.WriteString(m.renderStatus(st) + "\n")
	if st.HasFinished {
		s.WriteString("\n" + m.renderBanner(st.Mode) + "\n")
	}
	s.WriteString("\n" + m.help.View(m.keys))

	if m.width == 0 || m.height == 0 {
		return s.String()
	}
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(s.String())
}

func (m model) renderHeader(current models.Mode) string {
	active := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("63")).
		Padding(0, 1)
	inactive := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Padding(0, 1)

	tabs := make([]string, 0, len(models.Modes()))
	for _, mode := range models.Modes() {
		if mode == current {
			tabs = append(tabs, active.Render(mode.Label()))
		} else {
			tabs = append(tabs, inactive.Render(mode.Label()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m model) renderClock(st models.TimerState) string {
	indicator := " "
	if st.IsActive {
		indicator = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Render(m.spinner.View())
	}

	clockStyle := lipgloss.NewStyle().Bold(true)
	if st.IsActive {
		clockStyle = clockStyle.Foreground(lipgloss.Color("212"))
	} else {
		clockStyle = clockStyle.Foreground(lipgloss.Color("252"))
	}
	return fmt.Sprintf("  %s %s", indicator, clockStyle.Render(formatClock(st.RemainingSeconds)))
}

func (m model) renderStatus(st models.TimerState) string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))
	return style.Render(fmt.Sprintf("  sessions: %d • driver: %s",
		st.CompletedFocusSessions,
		m.machine.DriverName()))
}

func (m model) renderBanner(mode models.Mode) string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("42"))
	return style.Render(fmt.Sprintf("  %s complete! press n for the next mode", mode.Label()))
}

// progressOf returns the elapsed share of the countdown as a percentage
func progressOf(st models.TimerState) float64 {
	total := st.Mode.Duration()
	if total <= 0 {
		return 0
	}
	return float64(total-st.RemainingSeconds) / float64(total) * 100
}

// Run shows the timer until the user quits. The caller owns the machine and
// must call Teardown afterwards.
func Run(machine *timer.Machine) error {
	p := tea.NewProgram(
		initialModel(machine),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)

	_, err := p.Run()
	return err
}
