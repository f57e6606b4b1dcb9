// Package notify builds the callbacks fired when a countdown reaches zero.
package notify

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Func is a zero-argument completion callback
type Func func()

// DefaultCommandTimeout bounds a notification command when no timeout is configured
const DefaultCommandTimeout = 10 * time.Second

// Safe wraps fn so that a panic is logged instead of propagating to the caller.
// A nil fn becomes a no-op.
func Safe(fn Func, logger *log.Logger) Func {
	if logger == nil {
		logger = log.Default()
	}
	if fn == nil {
		return func() {}
	}
	return func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("completion notifier panicked", "panic", r)
			}
		}()
		fn()
	}
}

// Bell rings the terminal bell on w
func Bell(w io.Writer) Func {
	return func() {
		_, _ = io.WriteString(w, "\a")
	}
}

// Waiter is implemented by notifiers that may still be working after they return
type Waiter interface {
	// Wait blocks until outstanding work is done or its own bound passes,
	// reporting whether everything finished
	Wait() bool
}

// Runner starts a shell command in the background on every Notify
type Runner struct {
	command string
	timeout time.Duration
	logger  *log.Logger
	wg      sync.WaitGroup
}

// Command returns a Runner for command. Each run is killed after timeout.
func Command(command string, timeout time.Duration, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Runner{command: command, timeout: timeout, logger: logger}
}

// Notify starts the command and returns without waiting for it
func (r *Runner) Notify() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := runCommand(ctx, r.command); err != nil {
			r.logger.Warn("notification command failed", "command", r.command, "err", err)
		}
	}()
}

// Wait blocks until every started command has exited, giving up after the
// command timeout plus a short grace period
func (r *Runner) Wait() bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(r.timeout + time.Second):
		r.logger.Warn("notification command still running at exit", "command", r.command)
		return false
	}
}

func runCommand(ctx context.Context, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	// children of a killed shell may keep the output pipe open
	cmd.WaitDelay = time.Second
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, output)
	}
	return nil
}

// Multi calls every non-nil fn in order
func Multi(fns ...Func) Func {
	return func() {
		for _, fn := range fns {
			if fn != nil {
				fn()
			}
		}
	}
}
