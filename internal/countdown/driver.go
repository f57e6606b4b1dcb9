// Package countdown hides how countdown ticks are produced. A Driver is either
// the background ticker worker or an in-process polling loop; callers see the
// same events from both and never need to know which one is running.
package countdown

// Kind identifies a driver event
type Kind string

const (
	KindTick      Kind = "tick"
	KindFinished  Kind = "finished"
	KindStopped   Kind = "stopped"
	KindHeartbeat Kind = "heartbeat"
	KindPong      Kind = "pong"
)

// Event is a driver report. Generation is the value passed to the Start call
// that produced it, so receivers can drop events from cancelled countdowns.
type Event struct {
	Kind       Kind
	Remaining  int
	Generation uint64
}

// Driver produces countdown events on its Events channel
type Driver interface {
	// Start begins a countdown of seconds, cancelling any previous one
	Start(generation uint64, seconds int)
	// Stop cancels the running countdown; safe to call when idle
	Stop()
	// Refresh asks for an immediate status report of the running countdown
	Refresh()
	Events() <-chan Event
	// Close releases the driver; no events are delivered afterwards
	Close()
	Name() string
}

const eventBuffer = 64

func send(events chan<- Event, done <-chan struct{}, ev Event) {
	select {
	case events <- ev:
	case <-done:
	}
}
