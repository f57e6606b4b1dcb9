package countdown

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/strrl/focus-timer/internal/ticker"
)

// Background is the message interface of a ticker worker
type Background interface {
	Start()
	Post(ticker.Message) error
	Messages() <-chan ticker.Message
	Close()
}

// workerDriver relays countdowns to a background worker. If the worker dies
// mid-countdown the driver carries on with a polling driver from the original
// start time.
type workerDriver struct {
	worker   Background
	clock    clockwork.Clock
	logger   *log.Logger
	onFailed func(reason string)

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	generation uint64
	startedAt  time.Time
	seconds    int
	running    bool
	fallback   *pollingDriver
}

func newWorkerDriver(worker Background, clock clockwork.Clock, logger *log.Logger, onFailed func(string)) *workerDriver {
	d := &workerDriver{
		worker:   worker,
		clock:    clock,
		logger:   logger,
		onFailed: onFailed,
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
	}
	go d.forward()
	return d
}

func (d *workerDriver) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fallback != nil {
		return d.fallback.Name()
	}
	return "worker"
}

func (d *workerDriver) Events() <-chan Event { return d.events }

func (d *workerDriver) Start(generation uint64, seconds int) {
	d.mu.Lock()
	d.generation = generation
	d.startedAt = d.clock.Now().Round(0)
	d.seconds = seconds
	d.running = seconds > 0
	fallback := d.fallback
	d.mu.Unlock()

	if fallback != nil {
		fallback.Start(generation, seconds)
		return
	}
	if err := d.worker.Post(ticker.Start(generation, seconds)); err != nil {
		d.failover("post start: " + err.Error())
	}
}

func (d *workerDriver) Stop() {
	d.mu.Lock()
	d.running = false
	fallback := d.fallback
	d.mu.Unlock()

	if fallback != nil {
		fallback.Stop()
		return
	}
	if err := d.worker.Post(ticker.Message{Type: ticker.StopTimer}); err != nil {
		d.logger.Debug("stop not delivered to ticker worker", "err", err)
	}
}

func (d *workerDriver) Refresh() {
	d.mu.Lock()
	fallback := d.fallback
	d.mu.Unlock()

	if fallback != nil {
		fallback.Refresh()
		return
	}
	if err := d.worker.Post(ticker.Message{Type: ticker.GetStatus}); err != nil {
		d.failover("post status: " + err.Error())
	}
}

func (d *workerDriver) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		fallback := d.fallback
		d.mu.Unlock()
		if fallback != nil {
			fallback.Close()
		}
		d.worker.Close()
		close(d.done)
	})
}

func (d *workerDriver) forward() {
	for {
		select {
		case <-d.done:
			return
		case msg := <-d.worker.Messages():
			if msg.Type == ticker.WorkerError {
				d.failover("worker error: " + msg.Err)
				return
			}
			if ev, ok := translate(msg); ok {
				if ev.Kind == KindFinished {
					d.mu.Lock()
					if ev.Generation == d.generation {
						d.running = false
					}
					d.mu.Unlock()
				}
				send(d.events, d.done, ev)
			}
		}
	}
}

// failover swaps in a polling driver that shares this driver's event channel
// and resumes any running countdown from its original start time
func (d *workerDriver) failover(reason string) {
	d.mu.Lock()
	if d.fallback != nil {
		d.mu.Unlock()
		return
	}
	d.fallback = newPolling(d.clock, d.logger, d.events, d.done, false)
	fallback := d.fallback
	running := d.running
	gen, startedAt, seconds := d.generation, d.startedAt, d.seconds
	d.mu.Unlock()

	d.logger.Warn("ticker worker failed, falling back to in-process polling", "reason", reason)
	if d.onFailed != nil {
		d.onFailed(reason)
	}
	if running {
		fallback.resume(gen, startedAt, seconds)
	}
}

func translate(msg ticker.Message) (Event, bool) {
	switch msg.Type {
	case ticker.TimerTick:
		return Event{Kind: KindTick, Remaining: msg.Remaining, Generation: msg.Generation}, true
	case ticker.TimerFinished:
		return Event{Kind: KindFinished, Generation: msg.Generation}, true
	case ticker.TimerStopped:
		return Event{Kind: KindStopped, Generation: msg.Generation}, true
	case ticker.Heartbeat:
		return Event{Kind: KindHeartbeat, Generation: msg.Generation}, true
	case ticker.Pong:
		return Event{Kind: KindPong}, true
	default:
		return Event{}, false
	}
}
