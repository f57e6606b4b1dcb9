package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/strrl/focus-timer/pkg/models"
)

const namespace = "focus_timer"

// PrometheusRecorder implements Recorder using Prometheus metrics
type PrometheusRecorder struct {
	started   *prom.CounterVec
	completed *prom.CounterVec
	cancelled *prom.CounterVec
	remaining prom.Gauge
	driver    *prom.GaugeVec
	fallbacks *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the timer metrics
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		started: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "countdowns_started_total",
			Help:      "Countdowns started by mode",
		}, []string{"mode"}),
		completed: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "countdowns_completed_total",
			Help:      "Countdowns that reached zero by mode",
		}, []string{"mode"}),
		cancelled: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "countdowns_cancelled_total",
			Help:      "Countdowns reset or abandoned by a mode switch",
		}, []string{"mode"}),
		remaining: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "remaining_seconds",
			Help:      "Seconds left in the current countdown",
		}),
		driver: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "driver_info",
			Help:      "Countdown driver in use (1 for the active one)",
		}, []string{"driver"}),
		fallbacks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "driver_fallbacks_total",
			Help:      "Times the background ticker was abandoned for polling",
		}, []string{"reason"}),
	}
	reg.MustRegister(pr.started, pr.completed, pr.cancelled, pr.remaining, pr.driver, pr.fallbacks)
	return pr
}

func (p *PrometheusRecorder) CountdownStarted(mode models.Mode) {
	if p == nil {
		return
	}
	p.started.WithLabelValues(string(mode)).Inc()
}

func (p *PrometheusRecorder) CountdownCompleted(mode models.Mode) {
	if p == nil {
		return
	}
	p.completed.WithLabelValues(string(mode)).Inc()
}

func (p *PrometheusRecorder) CountdownCancelled(mode models.Mode) {
	if p == nil {
		return
	}
	p.cancelled.WithLabelValues(string(mode)).Inc()
}

func (p *PrometheusRecorder) SetRemaining(seconds int) {
	if p == nil {
		return
	}
	p.remaining.Set(float64(seconds))
}

func (p *PrometheusRecorder) DriverSelected(name string) {
	if p == nil {
		return
	}
	p.driver.Reset()
	p.driver.WithLabelValues(name).Set(1)
}

func (p *PrometheusRecorder) DriverFallback(reason string) {
	if p == nil {
		return
	}
	p.fallbacks.WithLabelValues(reason).Inc()
}

// Serve exposes the registry on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, reg *prom.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
