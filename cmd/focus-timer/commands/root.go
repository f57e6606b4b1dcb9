package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strrl/focus-timer/internal/config"
	"github.com/strrl/focus-timer/internal/logging"
	"github.com/strrl/focus-timer/internal/tui"
)

var (
	debugMode     bool
	configPath    string
	driverMode    string
	storageDriver string
	dbPath        string
	logLevel      string
	logFile       string
	metricsAddr   string
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "focus-timer",
		Short: "A Pomodoro timer for the terminal",
		Long: `focus-timer cycles through focus sessions, short breaks and long breaks.
A running countdown survives restarts: quit at any time and it picks up where it left off.`,
		SilenceUsage: true,
		RunE:         runTUI,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default "+defaultConfigHint()+")")
	flags.StringVar(&driverMode, "driver", "", "Countdown driver: auto, worker or polling")
	flags.StringVar(&storageDriver, "storage", "", "Storage backend: sqlite, duckdb or memory")
	flags.StringVar(&dbPath, "db", "", "Database file for persisted state")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&logFile, "log-file", "", "Log file used while the TUI is running")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.BoolVar(&debugMode, "debug", false, "Run in debug mode (print the restored state without TUI)")

	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewDebugCommand())
	rootCmd.AddCommand(NewResetCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Debug mode: print the restored state and raw storage without TUI
	if debugMode {
		return runDebugMode(cmd, cfg)
	}

	// the TUI owns the terminal, so logs go to a file
	logger, closer, err := logging.NewFile(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closer.Close()

	recorder, stopMetrics := startMetrics(cmd.Context(), cfg, logger)
	defer stopMetrics()

	kv := openStore(cfg, logger)
	defer kv.Close()

	machine := newMachine(cfg, kv, logger, recorder)
	machine.Rehydrate()
	defer machine.Teardown()

	if err := tui.Run(machine); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func runDebugMode(cmd *cobra.Command, cfg config.Config) error {
	fmt.Fprintln(cmd.OutOrStdout(), "=== Debug Mode: Restored State ===")
	if err := printStatus(cmd, cfg); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return printStorage(cmd, cfg)
}
