package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewResetCommand creates the reset command
func NewResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the persisted countdown, mode and session count",
		Long: `Clear every persisted timer key. The next start begins in focus mode
with no completed sessions. Completion history is kept.`,
		Args: cobra.NoArgs,
		RunE: runReset,
	}
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	kv := openStore(cfg, headlessLogger(cfg))
	defer kv.Close()

	if !kv.Available() {
		return fmt.Errorf("storage %s is unavailable", cfg.StoragePath)
	}
	kv.ClearAll()
	fmt.Fprintln(cmd.OutOrStdout(), "Timer state cleared")
	return nil
}
