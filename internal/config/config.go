// Package config resolves focus-timer settings from defaults, a YAML file,
// a .env file and FOCUS_TIMER_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/strrl/focus-timer/internal/countdown"
	"github.com/strrl/focus-timer/internal/storage"
)

const (
	appName        = "focus-timer"
	configFileName = "config.yaml"
	envPrefix      = "FOCUS_TIMER_"
)

// ErrInvalid marks a setting with an unusable value
var ErrInvalid = errors.New("invalid configuration")

// Config is the resolved runtime configuration
type Config struct {
	Driver        string
	StorageDriver string
	StoragePath   string
	LogLevel      string
	LogFile       string
	MetricsAddr   string
	Bell          bool
	NotifyCommand string
	NotifyTimeout time.Duration
}

type yamlConfig struct {
	Driver  string `yaml:"driver"`
	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Notify struct {
		Bell           *bool  `yaml:"bell"`
		Command        string `yaml:"command"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"notify"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Driver:        countdown.ModeAuto,
		StorageDriver: storage.DriverSQLite,
		StoragePath:   filepath.Join(dataDir(), "focus-timer.db"),
		LogLevel:      "info",
		LogFile:       filepath.Join(cacheDir(), "focus-timer.log"),
		Bell:          true,
	}
}

// DefaultPath is where the config file is looked up when none is given
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(dir, appName, configFileName)
}

// Load resolves the configuration. An empty path means DefaultPath, which may
// be missing; an explicit path must exist. The result is not validated, since
// flags applied afterwards take precedence; call Validate once they are in.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := applyFile(&cfg, path, explicit); err != nil {
		return cfg, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks enumerated settings
func (c Config) Validate() error {
	switch c.Driver {
	case countdown.ModeAuto, countdown.ModeWorker, countdown.ModePolling:
	default:
		return fmt.Errorf("%w: driver %q (want auto, worker or polling)", ErrInvalid, c.Driver)
	}
	switch c.StorageDriver {
	case storage.DriverSQLite, storage.DriverDuckDB, storage.DriverMemory:
	default:
		return fmt.Errorf("%w: storage driver %q (want sqlite, duckdb or memory)", ErrInvalid, c.StorageDriver)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.LogLevel)
	}
	return nil
}

func applyFile(cfg *Config, path string, explicit bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var file yamlConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	setString(&cfg.Driver, file.Driver)
	setString(&cfg.StorageDriver, file.Storage.Driver)
	setString(&cfg.StoragePath, expandHome(file.Storage.Path))
	setString(&cfg.LogLevel, file.Log.Level)
	setString(&cfg.LogFile, expandHome(file.Log.File))
	setString(&cfg.MetricsAddr, file.Metrics.Addr)
	setString(&cfg.NotifyCommand, file.Notify.Command)
	if file.Notify.Bell != nil {
		cfg.Bell = *file.Notify.Bell
	}
	if file.Notify.TimeoutSeconds > 0 {
		cfg.NotifyTimeout = time.Duration(file.Notify.TimeoutSeconds) * time.Second
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) string {
		v, _ := lookup(envPrefix + name)
		return strings.TrimSpace(v)
	}

	setString(&cfg.Driver, get("DRIVER"))
	setString(&cfg.StorageDriver, get("STORAGE"))
	setString(&cfg.StoragePath, expandHome(get("DB")))
	setString(&cfg.LogLevel, get("LOG_LEVEL"))
	setString(&cfg.LogFile, expandHome(get("LOG_FILE")))
	setString(&cfg.MetricsAddr, get("METRICS_ADDR"))
	setString(&cfg.NotifyCommand, get("NOTIFY_COMMAND"))

	if v := get("BELL"); v != "" {
		bell, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sBELL=%q", ErrInvalid, envPrefix, v)
		}
		cfg.Bell = bell
	}
	if v := get("NOTIFY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %sNOTIFY_TIMEOUT=%q", ErrInvalid, envPrefix, v)
		}
		cfg.NotifyTimeout = d
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func dataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", appName)
	}
	return "."
}

func cacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, appName)
	}
	return "."
}
