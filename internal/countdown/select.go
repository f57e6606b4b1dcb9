package countdown

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/strrl/focus-timer/internal/metrics"
	"github.com/strrl/focus-timer/internal/ticker"
)

// Driver selection modes
const (
	ModeAuto    = "auto"
	ModeWorker  = "worker"
	ModePolling = "polling"
)

const defaultHandshakeTimeout = time.Second

// Options configures Select
type Options struct {
	Mode             string
	Clock            clockwork.Clock
	Logger           *log.Logger
	Recorder         metrics.Recorder
	HandshakeTimeout time.Duration
	// Spawn creates the background worker; defaults to a ticker.Worker
	Spawn func(clockwork.Clock, *log.Logger) (Background, error)
}

// Select picks the driver once for the lifetime of the process. The background
// worker is preferred; it must answer a ping before it is trusted, otherwise
// the in-process polling driver is used.
func Select(opts Options) Driver {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.Spawn == nil {
		opts.Spawn = func(clock clockwork.Clock, logger *log.Logger) (Background, error) {
			return ticker.NewWorker(clock, logger), nil
		}
	}

	switch opts.Mode {
	case ModePolling:
		opts.Logger.Info("using polling countdown driver")
		opts.Recorder.DriverSelected(ModePolling)
		return NewPolling(opts.Clock, opts.Logger)
	case ModeAuto, ModeWorker, "":
	default:
		opts.Logger.Warn("unknown driver mode, using auto", "mode", opts.Mode)
	}

	worker, err := handshake(opts)
	if err != nil {
		opts.Logger.Warn("background ticker unavailable, falling back to in-process polling", "err", err)
		opts.Recorder.DriverFallback("handshake")
		opts.Recorder.DriverSelected(ModePolling)
		return NewPolling(opts.Clock, opts.Logger)
	}

	opts.Logger.Info("using background ticker worker")
	opts.Recorder.DriverSelected(ModeWorker)
	return newWorkerDriver(worker, opts.Clock, opts.Logger, func(string) {
		opts.Recorder.DriverFallback("crash")
	})
}

func handshake(opts Options) (bg Background, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: spawn panicked: %v", ticker.ErrUnsupported, r)
		}
	}()

	bg, err = opts.Spawn(opts.Clock, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ticker.ErrUnsupported, err)
	}
	bg.Start()

	if err := bg.Post(ticker.Message{Type: ticker.Ping}); err != nil {
		bg.Close()
		return nil, fmt.Errorf("%w: %v", ticker.ErrUnsupported, err)
	}

	deadline := time.After(opts.HandshakeTimeout)
	for {
		select {
		case msg := <-bg.Messages():
			switch msg.Type {
			case ticker.Pong:
				return bg, nil
			case ticker.WorkerError:
				bg.Close()
				return nil, fmt.Errorf("%w: %s", ticker.ErrUnsupported, msg.Err)
			}
		case <-deadline:
			bg.Close()
			return nil, fmt.Errorf("%w: no reply to ping within %s", ticker.ErrUnsupported, opts.HandshakeTimeout)
		}
	}
}
