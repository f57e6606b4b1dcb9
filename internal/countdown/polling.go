package countdown

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
)

// pollingDriver re-arms a one-second callback and recomputes the remaining
// time from the start timestamp on every call
type pollingDriver struct {
	clock  clockwork.Clock
	logger *log.Logger
	events chan Event
	done   chan struct{}
	owned  bool

	closeOnce sync.Once

	mu         sync.Mutex
	generation uint64
	startedAt  time.Time
	seconds    int
	remaining  int
	running    bool
	timer      clockwork.Timer
}

// NewPolling returns a driver that runs entirely on clock callbacks
func NewPolling(clock clockwork.Clock, logger *log.Logger) Driver {
	return newPolling(clock, logger, make(chan Event, eventBuffer), make(chan struct{}), true)
}

func newPolling(clock clockwork.Clock, logger *log.Logger, events chan Event, done chan struct{}, owned bool) *pollingDriver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &pollingDriver{
		clock:  clock,
		logger: logger,
		events: events,
		done:   done,
		owned:  owned,
	}
}

func (d *pollingDriver) Name() string { return "polling" }

func (d *pollingDriver) Events() <-chan Event { return d.events }

func (d *pollingDriver) Start(generation uint64, seconds int) {
	if seconds <= 0 {
		d.logger.Warn("polling driver ignoring non-positive duration", "duration", seconds)
		return
	}
	d.resume(generation, d.clock.Now().Round(0), seconds)
}

// resume runs a countdown that began at startedAt, which may be in the past
func (d *pollingDriver) resume(generation uint64, startedAt time.Time, seconds int) {
	d.mu.Lock()
	d.stopTimerLocked()
	d.generation = generation
	d.startedAt = startedAt
	d.seconds = seconds
	d.running = true
	ev := d.observeLocked()
	d.mu.Unlock()

	send(d.events, d.done, ev)
}

func (d *pollingDriver) Stop() {
	d.mu.Lock()
	d.running = false
	d.stopTimerLocked()
	gen := d.generation
	d.mu.Unlock()

	send(d.events, d.done, Event{Kind: KindStopped, Generation: gen})
}

func (d *pollingDriver) Refresh() {
	d.mu.Lock()
	var ev Event
	if d.running {
		d.stopTimerLocked()
		ev = d.observeLocked()
	} else if d.remaining <= 0 {
		ev = Event{Kind: KindFinished, Generation: d.generation}
	} else {
		ev = Event{Kind: KindTick, Remaining: d.remaining, Generation: d.generation}
	}
	d.mu.Unlock()

	send(d.events, d.done, ev)
}

func (d *pollingDriver) Close() {
	d.mu.Lock()
	d.running = false
	d.stopTimerLocked()
	d.mu.Unlock()

	if d.owned {
		d.closeOnce.Do(func() { close(d.done) })
	}
}

func (d *pollingDriver) poll(generation uint64) {
	d.mu.Lock()
	if !d.running || d.generation != generation {
		d.mu.Unlock()
		return
	}
	ev := d.observeLocked()
	d.mu.Unlock()

	send(d.events, d.done, ev)
}

// observeLocked recomputes the remaining time, re-arms the next callback
// while time is left and turns the countdown off once it reaches zero
func (d *pollingDriver) observeLocked() Event {
	elapsed := d.clock.Now().Round(0).Sub(d.startedAt).Milliseconds()
	remaining := d.seconds - int(elapsed/1000)
	if remaining < 0 {
		remaining = 0
	}
	if remaining > d.seconds {
		remaining = d.seconds
	}
	d.remaining = remaining

	if remaining == 0 {
		d.running = false
		d.timer = nil
		return Event{Kind: KindFinished, Generation: d.generation}
	}

	gen := d.generation
	d.timer = d.clock.AfterFunc(time.Second, func() { d.poll(gen) })
	return Event{Kind: KindTick, Remaining: remaining, Generation: gen}
}

func (d *pollingDriver) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
