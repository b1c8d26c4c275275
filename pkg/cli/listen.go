package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderpilot/renderpilot/pkg/planner"
)

func NewListenCommand(root *RootCommand) *cobra.Command {
	var (
		session  string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Wait in the background for a session's prompts to become ready",
		Long: `Poll the planner out of band and report when derived image prompts
become ready for the session. Unlike run, this does not drive the
pipeline; it only watches.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.Config()

			pollInterval := cfg.Planner.NotifyIntervalD
			if interval > 0 {
				pollInterval = interval
			}

			client := planner.NewClient(cfg.Planner.BaseURL, cfg.Planner.RequestTimeoutD)
			listener := planner.NewListener(client, session, pollInterval)

			ready := make(chan struct{})
			if err := listener.StartNotificationPolling(func() { close(ready) }); err != nil {
				return err
			}
			defer listener.StopNotificationPolling()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			fmt.Fprintf(os.Stderr, "listening for prompts on session %s (every %s)\n", session, pollInterval)

			select {
			case <-ready:
				fmt.Fprintf(os.Stderr, "prompts ready for session %s\n", session)
				return nil
			case <-sigCh:
				fmt.Fprintln(os.Stderr, "stopped")
				return nil
			case <-cmd.Context().Done():
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "Session timestamp (required)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Override the poll interval")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}
