package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var flagLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent submissions",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if a.history == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "History is disabled.")
			return nil
		}

		entries, err := a.history.Recent(cmd.Context(), flagLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FINISHED\tSTATUS\tDURATION\tCHARS\tCATEGORIES\tCUSTOM\tERROR")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%t\t%s\n",
				time.UnixMilli(e.FinishedAt).Format(time.RFC3339),
				e.Status,
				e.Duration(),
				e.TextLength,
				e.Categories,
				e.CustomRule == 1,
				e.ErrorMessage,
			)
		}
		return tw.Flush()
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show submission statistics",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if a.history == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "History is disabled.")
			return nil
		}

		stats, err := a.history.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading history stats: %w", err)
		}
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "Number of entries to show")
	historyCmd.AddCommand(historyStatsCmd)
}
