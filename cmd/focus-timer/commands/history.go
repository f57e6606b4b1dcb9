package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently completed countdowns",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of completions to show")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	kv := openStore(cfg, headlessLogger(cfg))
	defer kv.Close()

	completions, err := kv.Completions(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(completions) == 0 {
		fmt.Fprintln(out, "No completed countdowns yet")
		return nil
	}

	fmt.Fprintln(out, "Completed countdowns:")
	fmt.Fprintln(out, "=====================")
	for i, c := range completions {
		fmt.Fprintf(out, "%d. %s  %-10s %2d min  (%s)\n",
			i+1,
			c.CompletedAt.Format("2006-01-02 15:04"),
			c.Mode.Label(),
			c.DurationSeconds/60,
			shortID(c.ID))
	}
	return nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
