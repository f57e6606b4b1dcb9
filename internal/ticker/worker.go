package ticker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
)

const (
	// TickInterval is how often a running countdown reports
	TickInterval = time.Second
	// HeartbeatInterval is how often a running countdown proves liveness
	HeartbeatInterval = 30 * time.Second
)

var (
	// ErrUnsupported means no background worker could be brought up
	ErrUnsupported = errors.New("background ticker unsupported")
	// ErrClosed is returned when posting to a worker that has shut down
	ErrClosed = errors.New("ticker worker closed")
)

// Worker runs countdowns on its own goroutine and talks to the rest of the
// program only through messages
type Worker struct {
	clock  clockwork.Clock
	logger *log.Logger

	inbox     chan Message
	outbox    chan Message
	done      chan struct{}
	closeOnce sync.Once
	startOnce sync.Once

	// owned by the run goroutine
	running    bool
	startedAt  time.Time
	duration   int
	remaining  int
	generation uint64
	ticker     clockwork.Ticker
	heartbeat  clockwork.Ticker
}

// NewWorker creates a worker; call Start to launch it
func NewWorker(clock clockwork.Clock, logger *log.Logger) *Worker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{
		clock:  clock,
		logger: logger,
		inbox:  make(chan Message, 16),
		outbox: make(chan Message, 16),
		done:   make(chan struct{}),
	}
}

// Start launches the worker goroutine
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

// Post delivers an inbound message
func (w *Worker) Post(msg Message) error {
	select {
	case <-w.done:
		return ErrClosed
	default:
	}

	select {
	case w.inbox <- msg:
		return nil
	case <-w.done:
		return ErrClosed
	}
}

// Messages returns the outbound stream
func (w *Worker) Messages() <-chan Message {
	return w.outbox
}

// Done is closed once the worker has been shut down
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Close stops the worker and any countdown it is running
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
	})
}

func (w *Worker) run() {
	defer func() {
		w.stopTickers()
		if r := recover(); r != nil {
			w.logger.Error("ticker worker crashed", "panic", r)
			w.emit(Message{Type: WorkerError, Generation: w.generation, Err: fmt.Sprint(r)})
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case msg := <-w.inbox:
			w.handle(msg)
		case <-chanOf(w.ticker):
			w.tick()
		case <-chanOf(w.heartbeat):
			w.emit(Message{Type: Heartbeat, Generation: w.generation})
		}
	}
}

func (w *Worker) handle(msg Message) {
	switch msg.Type {
	case StartTimer:
		w.startCountdown(msg.Generation, msg.Duration)
	case StopTimer:
		w.stopTickers()
		w.running = false
		w.emit(Message{Type: TimerStopped, Generation: w.generation})
	case GetStatus:
		w.status()
	case Ping:
		w.emit(Message{Type: Pong})
	default:
		w.logger.Warn("ticker worker ignoring message", "type", msg.Type)
	}
}

func (w *Worker) startCountdown(generation uint64, seconds int) {
	if seconds <= 0 {
		w.logger.Warn("ticker worker ignoring non-positive duration", "duration", seconds)
		return
	}

	// cancel whatever was running first
	w.stopTickers()

	// wall clock so that host sleep counts as elapsed time
	w.startedAt = w.clock.Now().Round(0)
	w.duration = seconds
	w.remaining = seconds
	w.generation = generation
	w.running = true
	w.ticker = w.clock.NewTicker(TickInterval)
	w.heartbeat = w.clock.NewTicker(HeartbeatInterval)

	w.emit(Message{Type: TimerTick, Remaining: seconds, Generation: generation})
}

func (w *Worker) tick() {
	if !w.running {
		return
	}
	w.remaining = w.computeRemaining()
	if w.remaining <= 0 {
		w.finish()
		return
	}
	w.emit(Message{Type: TimerTick, Remaining: w.remaining, Generation: w.generation})
}

func (w *Worker) status() {
	if w.running {
		w.remaining = w.computeRemaining()
		if w.remaining <= 0 {
			w.finish()
			return
		}
	}
	if w.remaining <= 0 {
		w.emit(Message{Type: TimerFinished, Remaining: 0, Generation: w.generation})
		return
	}
	w.emit(Message{Type: TimerTick, Remaining: w.remaining, Generation: w.generation})
}

// finish flips running off in the same step as the emission, so nothing else
// handled by this goroutine can observe a running countdown at zero
func (w *Worker) finish() {
	w.running = false
	w.remaining = 0
	w.stopTickers()
	w.emit(Message{Type: TimerFinished, Remaining: 0, Generation: w.generation})
}

func (w *Worker) computeRemaining() int {
	elapsed := w.clock.Now().Round(0).Sub(w.startedAt).Milliseconds()
	left := int64(w.duration)*1000 - elapsed
	if left <= 0 {
		return 0
	}
	return int((left + 999) / 1000)
}

func (w *Worker) stopTickers() {
	if w.ticker != nil {
		w.ticker.Stop()
		w.ticker = nil
	}
	if w.heartbeat != nil {
		w.heartbeat.Stop()
		w.heartbeat = nil
	}
}

func (w *Worker) emit(msg Message) {
	select {
	case w.outbox <- msg:
	case <-w.done:
	}
}

func chanOf(t clockwork.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.Chan()
}
