package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strrl/focus-timer/internal/config"
)

// NewDebugCommand creates the debug-storage command
func NewDebugCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "debug-storage",
		Short: "Dump the raw persisted key/value pairs",
		Args:  cobra.NoArgs,
		RunE:  runDebugStorage,
	}
}

func runDebugStorage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return printStorage(cmd, cfg)
}

func printStorage(cmd *cobra.Command, cfg config.Config) error {
	kv := openStore(cfg, headlessLogger(cfg))
	defer kv.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Storage: %s (%s)\n", cfg.StoragePath, cfg.StorageDriver)
	fmt.Fprintln(out, "==========================================")

	entries, err := kv.Entries()
	if err != nil {
		return fmt.Errorf("failed to read storage: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No persisted state")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s = %s\n", e.Key, e.Value)
	}
	return nil
}
