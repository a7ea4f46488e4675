package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haukigw/resumeup/internal/config"
	"github.com/haukigw/resumeup/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Display recent upload outcomes",
		RunE:  runHistory,
	}

	cmd.Flags().Int("limit", 20, "maximum number of records to display")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	limit, _ := cmd.Flags().GetInt("limit")

	store, err := history.Open(config.DefaultHistoryDBPath(), cc.Logger)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer store.Close()

	records, err := store.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "No upload history recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "STATUS\tBYTES\tFINISHED\tSOURCE\tTARGET")

	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			r.Status, r.TotalBytes, r.FinishedAt.Format("2006-01-02 15:04:05"), r.Source, r.TargetPath)
	}

	return nil
}
