package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/strrl/focus-timer/internal/config"
	"github.com/strrl/focus-timer/internal/countdown"
	"github.com/strrl/focus-timer/internal/timer"
	"github.com/strrl/focus-timer/pkg/models"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current timer state without TUI",
		Long: `Show the timer state as the TUI would restore it.
A countdown that is still running keeps running; one that crossed zero while
nothing was watching is recorded as finished.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return printStatus(cmd, cfg)
}

func printStatus(cmd *cobra.Command, cfg config.Config) error {
	logger := headlessLogger(cfg)
	kv := openStore(cfg, logger)
	defer kv.Close()

	machine := timer.New(timer.Options{
		Store:   kv,
		Driver:  countdown.NewPolling(nil, logger),
		History: kv,
		Logger:  logger,
	})
	machine.Rehydrate()
	defer machine.Teardown()

	writeStatus(cmd.OutOrStdout(), machine.State(), machine.Phase())
	if !kv.Available() {
		fmt.Fprintln(cmd.OutOrStdout(), "Storage:   unavailable (state is not persisted)")
	}
	return nil
}

func writeStatus(w io.Writer, st models.TimerState, phase timer.Phase) {
	fmt.Fprintf(w, "Mode:      %s\n", st.Mode.Label())
	fmt.Fprintf(w, "Phase:     %s\n", phase)
	fmt.Fprintf(w, "Remaining: %02d:%02d\n", st.RemainingSeconds/60, st.RemainingSeconds%60)
	fmt.Fprintf(w, "Sessions:  %d\n", st.CompletedFocusSessions)
}
