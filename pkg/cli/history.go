package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderpilot/renderpilot/pkg/infra/store"
	"github.com/renderpilot/renderpilot/pkg/pipeline"
)

func NewHistoryCommand(root *RootCommand) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), root, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")

	return cmd
}

func runHistory(ctx context.Context, root *RootCommand, limit int) error {
	cfg := root.Config()
	opts := root.OutputOptions()

	if !cfg.History.Enabled {
		return fmt.Errorf("run history is disabled (history.enabled = false)")
	}

	s, err := store.NewSQLiteRunStore(cfg.History.DBPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	records, err := s.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	return opts.Print(records, func(w io.Writer) {
		printHistoryTable(w, records)
	})
}

func printHistoryTable(w io.Writer, records []pipeline.RunRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "STARTED\tSTORY\tEPISODE\tBEATS\tRESULT\tDURATION\tERROR")
	for _, r := range records {
		result := string(r.FinalPhase)
		duration := r.FinishedAt.Sub(r.StartedAt).Round(time.Second)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.StoryID,
			r.EpisodeNumber,
			r.TotalBeats,
			result,
			duration,
			r.Error,
		)
	}
}
