package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/mmcdole/cinesync/internal/notify"
)

// Events is the channel that carries out-of-band updates (bus changes,
// scroll fetches, navigation) into the Bubble Tea loop.
type Events chan tea.Msg

// NewEvents creates a buffered event channel.
func NewEvents() Events {
	return make(Events, 64)
}

// send delivers msg without blocking if the channel is full.
func (e Events) send(msg tea.Msg) {
	select {
	case e <- msg:
	default: // Non-blocking if channel full
	}
}

// Navigator returns a domain.Navigator that asks the program to leave for the
// login prompt.
func (e Events) Navigator() domain.Navigator {
	return domain.NavigatorFunc(func(reason string) {
		e.send(LoginRequiredMsg{Reason: reason})
	})
}

// WatchBus forwards every bus change as a MessagesChangedMsg.
func (e Events) WatchBus(bus *notify.Bus) {
	bus.Subscribe(func(msgs []notify.Message) {
		e.send(MessagesChangedMsg{Messages: msgs})
	})
}

// waitForEvent returns a command that waits for the next event.
func waitForEvent(e Events) tea.Cmd {
	return func() tea.Msg {
		return <-e
	}
}

// Drain discards queued events, such as redirects that raced the previous
// program's exit.
func (e Events) Drain() {
	for {
		select {
		case <-e:
		default:
			return
		}
	}
}
