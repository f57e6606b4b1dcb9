package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/strrl/focus-timer/internal/config"
	"github.com/strrl/focus-timer/internal/countdown"
	"github.com/strrl/focus-timer/internal/logging"
	"github.com/strrl/focus-timer/internal/metrics"
	"github.com/strrl/focus-timer/internal/notify"
	"github.com/strrl/focus-timer/internal/storage"
	"github.com/strrl/focus-timer/internal/timer"
)

// loadConfig resolves the config file and environment, then applies any
// flags the user set explicitly
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	override("driver", &cfg.Driver, driverMode)
	override("storage", &cfg.StorageDriver, storageDriver)
	override("db", &cfg.StoragePath, dbPath)
	override("log-level", &cfg.LogLevel, logLevel)
	override("log-file", &cfg.LogFile, logFile)
	override("metrics-addr", &cfg.MetricsAddr, metricsAddr)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// headlessLogger is used by commands that do not take over the terminal
func headlessLogger(cfg config.Config) *log.Logger {
	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return log.Default()
	}
	return logger
}

func openStore(cfg config.Config, logger *log.Logger) *storage.KV {
	return storage.Open(storage.Options{Driver: cfg.StorageDriver, Path: cfg.StoragePath}, logger)
}

func newMachine(cfg config.Config, kv *storage.KV, logger *log.Logger, recorder metrics.Recorder) *timer.Machine {
	driver := countdown.Select(countdown.Options{
		Mode:     cfg.Driver,
		Logger:   logger,
		Recorder: recorder,
	})
	notifier, pending := buildNotifier(cfg, logger)
	return timer.New(timer.Options{
		Store:    kv,
		Driver:   driver,
		Notify:   notifier,
		Pending:  pending,
		History:  kv,
		Recorder: recorder,
		Logger:   logger,
	})
}

// buildNotifier composes the completion callbacks. The Waiter is non-nil only
// when a notification command runs in the background.
func buildNotifier(cfg config.Config, logger *log.Logger) (notify.Func, notify.Waiter) {
	var (
		fns     []notify.Func
		pending notify.Waiter
	)
	if cfg.Bell {
		fns = append(fns, notify.Safe(notify.Bell(os.Stderr), logger))
	}
	if cfg.NotifyCommand != "" {
		runner := notify.Command(cfg.NotifyCommand, cfg.NotifyTimeout, logger)
		fns = append(fns, notify.Safe(runner.Notify, logger))
		pending = runner
	}
	return notify.Multi(fns...), pending
}

// startMetrics serves Prometheus metrics when an address is configured. The
// returned stop func shuts the server down.
func startMetrics(ctx context.Context, cfg config.Config, logger *log.Logger) (metrics.Recorder, func()) {
	if cfg.MetricsAddr == "" {
		return metrics.NoopRecorder{}, func() {}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	reg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
		if err := metrics.Serve(ctx, cfg.MetricsAddr, reg); err != nil {
			logger.Warn("metrics server stopped", "err", err)
		}
	}()
	return recorder, cancel
}

func defaultConfigHint() string {
	return config.DefaultPath()
}
