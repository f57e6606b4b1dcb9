package metrics

import "github.com/strrl/focus-timer/pkg/models"

// Recorder defines observability hooks for the timer. Implementations may
// forward to Prometheus; NoopRecorder is the default when metrics are off.
type Recorder interface {
	CountdownStarted(mode models.Mode)
	CountdownCompleted(mode models.Mode)
	CountdownCancelled(mode models.Mode)
	SetRemaining(seconds int)
	DriverSelected(name string)
	DriverFallback(reason string)
}

// NoopRecorder is a Recorder that does nothing
type NoopRecorder struct{}

func (NoopRecorder) CountdownStarted(models.Mode)   {}
func (NoopRecorder) CountdownCompleted(models.Mode) {}
func (NoopRecorder) CountdownCancelled(models.Mode) {}
func (NoopRecorder) SetRemaining(int)               {}
func (NoopRecorder) DriverSelected(string)          {}
func (NoopRecorder) DriverFallback(string)          {}
