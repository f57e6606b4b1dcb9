package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/strrl/focus-timer/internal/countdown"
)

// Message types fed into the update loop
type (
	// DriverEventMsg carries one countdown driver event
	DriverEventMsg countdown.Event

	// driverClosedMsg is sent if the driver's event stream ends
	driverClosedMsg struct{}
)

// waitForEvent blocks on the driver stream for exactly one event. It is
// re-issued after every DriverEventMsg so events reach Update in order.
func waitForEvent(events <-chan countdown.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return driverClosedMsg{}
		}
		return DriverEventMsg(ev)
	}
}
