// Package timer owns the countdown state and every transition on it.
//
// A Machine is not safe for concurrent use. All calls, including Handle for
// driver events, are expected to come from one goroutine, normally the
// bubbletea update loop.
package timer

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/strrl/focus-timer/internal/countdown"
	"github.com/strrl/focus-timer/internal/metrics"
	"github.com/strrl/focus-timer/internal/notify"
	"github.com/strrl/focus-timer/internal/storage"
	"github.com/strrl/focus-timer/pkg/models"
)

// Phase is the coarse state of the machine
type Phase int

const (
	Idle Phase = iota
	Running
	Finished
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return "idle"
	}
}

// History receives every countdown that reaches zero
type History interface {
	RecordCompletion(models.Completion)
}

// Options wires a Machine to its collaborators. Only Store and Driver are required.
type Options struct {
	Clock    clockwork.Clock
	Store    storage.Store
	Driver   countdown.Driver
	Notify   notify.Func
	// Pending is drained by Teardown so notifications still running are not cut off
	Pending  notify.Waiter
	History  History
	Recorder metrics.Recorder
	Logger   *log.Logger
}

// Machine is the timer state machine
type Machine struct {
	clock    clockwork.Clock
	store    storage.Store
	driver   countdown.Driver
	notify   notify.Func
	pending  notify.Waiter
	history  History
	recorder metrics.Recorder
	logger   *log.Logger

	state      models.TimerState
	generation uint64
	startedAt  time.Time
	initial    int
}

// New returns a machine in the Idle focus state. Call Rehydrate before use to
// pick up a persisted countdown.
func New(opts Options) *Machine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	return &Machine{
		clock:    opts.Clock,
		store:    opts.Store,
		driver:   opts.Driver,
		notify:   notify.Safe(opts.Notify, opts.Logger),
		pending:  opts.Pending,
		history:  opts.History,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		state:    models.NewTimerState(),
	}
}

// State returns a copy of the current state
func (m *Machine) State() models.TimerState {
	return m.state
}

// Phase derives the phase from the state flags
func (m *Machine) Phase() Phase {
	switch {
	case m.state.IsActive:
		return Running
	case m.state.HasFinished:
		return Finished
	default:
		return Idle
	}
}

// Generation identifies the current countdown; driver events carrying any
// other value are ignored
func (m *Machine) Generation() uint64 {
	return m.generation
}

// Events is the driver's event stream, to be fed back into Handle
func (m *Machine) Events() <-chan countdown.Event {
	return m.driver.Events()
}

// DriverName reports which countdown driver is in use
func (m *Machine) DriverName() string {
	return m.driver.Name()
}

// StartCountdown starts the current mode from the remaining time. A finished
// countdown restarts from the full duration. Does nothing while running.
func (m *Machine) StartCountdown() {
	if m.state.IsActive {
		return
	}
	if m.state.HasFinished || m.state.RemainingSeconds <= 0 {
		m.state.HasFinished = false
		m.state.RemainingSeconds = m.state.Mode.Duration()
	}
	m.recorder.CountdownStarted(m.state.Mode)
	m.begin(m.now(), m.state.RemainingSeconds, m.state.RemainingSeconds)
}

// ResetCountdown stops any countdown and restores the full duration of the current mode
func (m *Machine) ResetCountdown() {
	m.cancel()
	m.state.IsActive = false
	m.state.HasFinished = false
	m.state.RemainingSeconds = m.state.Mode.Duration()
	m.clear()
	m.recorder.SetRemaining(m.state.RemainingSeconds)
}

// SetMode stops any countdown and switches to mode at its full duration
func (m *Machine) SetMode(mode models.Mode) {
	if !mode.Valid() {
		m.logger.Warn("ignoring unknown mode", "mode", mode)
		return
	}
	m.cancel()
	m.state.Mode = mode
	m.state.IsActive = false
	m.state.HasFinished = false
	m.state.RemainingSeconds = mode.Duration()
	m.clear()
	m.recorder.SetRemaining(m.state.RemainingSeconds)
}

// NextMode advances the cycle. Leaving focus counts a completed session and
// earns a long break on every fourth one; any break leads back to focus.
func (m *Machine) NextMode() {
	next := models.ModeFocus
	if m.state.Mode == models.ModeFocus {
		m.state.CompletedFocusSessions++
		next = models.ModeBreak
		if m.state.CompletedFocusSessions%models.SessionsPerLongBreak == 0 {
			next = models.ModeLongBreak
		}
	}
	m.SetMode(next)
}

// Handle applies a driver event
func (m *Machine) Handle(ev countdown.Event) {
	if ev.Generation != m.generation || !m.state.IsActive {
		m.logger.Debug("dropping stale driver event", "kind", ev.Kind, "generation", ev.Generation, "current", m.generation)
		return
	}

	switch ev.Kind {
	case countdown.KindTick:
		remaining := ev.Remaining
		if remaining < 0 {
			remaining = 0
		}
		// ticks only ever move the countdown forward
		if remaining > m.state.RemainingSeconds {
			remaining = m.state.RemainingSeconds
		}
		m.state.RemainingSeconds = remaining
		m.recorder.SetRemaining(remaining)
		if remaining == 0 {
			m.finish()
		}
	case countdown.KindFinished:
		m.finish()
	case countdown.KindHeartbeat:
		m.logger.Debug("ticker heartbeat", "remaining", m.state.RemainingSeconds)
	default:
		m.logger.Debug("ignoring driver event", "kind", ev.Kind)
	}
}

// Visible reconciles a running countdown after the terminal regains focus
func (m *Machine) Visible() {
	if m.state.IsActive {
		m.driver.Refresh()
	}
}

// Rehydrate rebuilds the state from the persisted snapshot. A countdown that
// crossed zero while nothing was running finishes immediately.
func (m *Machine) Rehydrate() {
	snap := storage.LoadSnapshot(m.store)
	m.state = models.TimerState{
		Mode:                   snap.Mode,
		RemainingSeconds:       snap.Mode.Duration(),
		CompletedFocusSessions: snap.CompletedFocusSessions,
	}

	if !snap.InFlight() {
		if snap.IsActive {
			m.logger.Warn("persisted countdown is incomplete, restoring mode only", "mode", snap.Mode)
		}
		return
	}

	// the persisted start stays the time base, so repeated restarts never
	// shift the deadline
	now := m.now()
	startedAt := time.UnixMilli(*snap.StartTimestamp)
	initial := min(*snap.InitialDurationSeconds, snap.Mode.Duration())
	elapsed := now.Sub(startedAt).Milliseconds()
	if elapsed < 0 {
		m.logger.Warn("persisted countdown starts in the future, restarting it from now", "start", startedAt)
		startedAt, elapsed = now, 0
	}
	remaining := initial - int(elapsed/1000)

	if remaining <= 0 {
		m.logger.Info("countdown finished while not running", "mode", snap.Mode, "elapsed", time.Duration(elapsed)*time.Millisecond)
		m.state.IsActive = true
		m.finish()
		return
	}

	m.logger.Info("resuming countdown", "mode", snap.Mode, "remaining", remaining)
	m.begin(startedAt, initial, remaining)
}

// Teardown persists a running countdown, releases the driver and waits for
// pending notifications
func (m *Machine) Teardown() {
	if m.state.IsActive {
		m.persist()
	}
	m.driver.Close()
	if m.pending != nil {
		m.pending.Wait()
	}
}

// begin runs a countdown of initial seconds anchored at startedAt, of which
// remaining are still left
func (m *Machine) begin(startedAt time.Time, initial, remaining int) {
	m.generation++
	m.startedAt = startedAt
	m.initial = initial
	m.state.IsActive = true
	m.state.HasFinished = false
	m.state.RemainingSeconds = remaining
	m.persist()
	m.recorder.SetRemaining(remaining)
	m.driver.Start(m.generation, remaining)
}

// cancel invalidates the running countdown so late events from it are dropped
func (m *Machine) cancel() {
	m.generation++
	if m.state.IsActive {
		m.recorder.CountdownCancelled(m.state.Mode)
		m.driver.Stop()
	}
}

// finish performs the single Running to Finished transition
func (m *Machine) finish() {
	if !m.state.IsActive {
		return
	}
	m.state.IsActive = false
	m.state.HasFinished = true
	m.state.RemainingSeconds = 0
	m.clear()

	m.recorder.CountdownCompleted(m.state.Mode)
	m.recorder.SetRemaining(0)
	if m.history != nil {
		m.history.RecordCompletion(models.Completion{
			ID:              uuid.NewString(),
			Mode:            m.state.Mode,
			DurationSeconds: m.state.Mode.Duration(),
			CompletedAt:     m.clock.Now(),
		})
	}
	m.logger.Info("countdown finished", "mode", m.state.Mode, "sessions", m.state.CompletedFocusSessions)
	m.notify()
}

func (m *Machine) persist() {
	start := m.startedAt.UnixMilli()
	initial := m.initial
	storage.SaveSnapshot(m.store, models.Snapshot{
		StartTimestamp:         &start,
		InitialDurationSeconds: &initial,
		Mode:                   m.state.Mode,
		IsActive:               true,
		CompletedFocusSessions: m.state.CompletedFocusSessions,
	})
}

func (m *Machine) clear() {
	storage.ClearCountdown(m.store, m.state.Mode, m.state.CompletedFocusSessions)
}

// now reads the wall clock without the monotonic reading, so host sleep counts
func (m *Machine) now() time.Time {
	return m.clock.Now().Round(0)
}
