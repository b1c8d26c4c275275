package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderpilot/renderpilot/pkg/config"
	"github.com/renderpilot/renderpilot/pkg/infra/eventbus"
	"github.com/renderpilot/renderpilot/pkg/infra/gpu/nvidia"
	"github.com/renderpilot/renderpilot/pkg/infra/logger"
	"github.com/renderpilot/renderpilot/pkg/infra/store"
	"github.com/renderpilot/renderpilot/pkg/pipeline"
	"github.com/renderpilot/renderpilot/pkg/planner"
)

func NewRunCommand(root *RootCommand) *cobra.Command {
	var (
		storyID   string
		episode   int
		beats     int
		session   string
		noGPUWait bool
		noStart   bool
		noTrigger bool
		maxWait   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the automation pipeline for one episode",
		Long: `Run the full automation pipeline: notify the planner that beats are
ready, wait for derived image prompts, gate on GPU readiness, ensure
the render backend is running, and trigger image generation.

Ctrl-C cancels the run at the next wait boundary.`,
		Example: `  # Run with config defaults
  renderpilot run --story story-42 --episode 3 --beats 12

  # Check readiness but leave generation to the operator
  renderpilot run --story story-42 --episode 3 --beats 12 --no-trigger`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if session == "" {
				session = time.Now().UTC().Format("20060102-150405")
			}
			sess := pipeline.Session{
				SessionTimestamp: session,
				StoryID:          storyID,
				EpisodeNumber:    episode,
				TotalBeats:       beats,
			}

			cfg := root.Config()
			runCfg := pipelineConfig(cfg)
			if noGPUWait {
				runCfg.WaitForGPU = false
			}
			if noStart {
				runCfg.AutoStartBackend = false
			}
			if noTrigger {
				runCfg.AutoTrigger = false
			}
			if maxWait > 0 {
				runCfg.MaxWait = maxWait
			}

			return runPipeline(cmd.Context(), root, runCfg, sess)
		},
	}

	cmd.Flags().StringVar(&storyID, "story", "", "Story ID (required)")
	cmd.Flags().IntVar(&episode, "episode", 0, "Episode number (required)")
	cmd.Flags().IntVar(&beats, "beats", 0, "Total beats in the episode (required)")
	cmd.Flags().StringVar(&session, "session", "", "Session timestamp (default: now)")
	cmd.Flags().BoolVar(&noGPUWait, "no-gpu-wait", false, "Skip the GPU readiness gate")
	cmd.Flags().BoolVar(&noStart, "no-autostart", false, "Check the backend instead of starting it")
	cmd.Flags().BoolVar(&noTrigger, "no-trigger", false, "Stop before triggering generation")
	cmd.Flags().DurationVar(&maxWait, "max-wait", 0, "Override the prompt wait bound")
	_ = cmd.MarkFlagRequired("story")
	_ = cmd.MarkFlagRequired("episode")
	_ = cmd.MarkFlagRequired("beats")

	return cmd
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		Enabled:          cfg.Pipeline.Enabled,
		WaitForGPU:       cfg.Pipeline.WaitForGPU,
		AutoStartBackend: cfg.Pipeline.AutoStartBackend,
		AutoTrigger:      cfg.Pipeline.AutoTrigger,
		MaxWait:          cfg.Pipeline.MaxWaitD,
		PollInterval:     cfg.Pipeline.PollIntervalD,
	}
}

func runPipeline(ctx context.Context, root *RootCommand, runCfg pipeline.Config, sess pipeline.Session) error {
	cfg := root.Config()
	opts := root.OutputOptions()

	client := planner.NewClient(cfg.Planner.BaseURL, cfg.Planner.RequestTimeoutD)
	listener := planner.NewListener(client, sess.SessionTimestamp, cfg.Planner.NotifyIntervalD)
	oracle := nvidia.NewOracle(cfg.GPU.SMIPath, cfg.GPU.DeviceIndex)

	manager, err := newBackendManager(cfg)
	if err != nil {
		return err
	}

	bus := eventbus.New()
	defer bus.Close()
	_, err = bus.Subscribe(func(ev pipeline.Event) {
		logger.Debug("pipeline event",
			"type", ev.Type, "run_id", ev.RunID, "phase", ev.Phase, "progress", ev.Progress)
	})
	if err != nil {
		return err
	}

	runnerOpts := []pipeline.RunnerOption{
		pipeline.WithListener(listener),
		pipeline.WithEventSink(bus),
	}
	history, err := openHistory(cfg)
	if err != nil {
		logger.Warn("history store unavailable, using memory", "error", err)
		history = pipeline.NewMemoryRunStore()
	}
	if closer, ok := history.(io.Closer); ok {
		defer closer.Close()
	}
	runnerOpts = append(runnerOpts, pipeline.WithHistory(history))

	runner := pipeline.NewRunner(client, client, oracle, manager, runnerOpts...)

	if !opts.Quiet && opts.Format == OutputTable {
		runner.SetStatusObserver(func(s pipeline.Status) {
			fmt.Fprintf(os.Stderr, "[%3d%%] %-20s %s\n", s.Progress, s.Phase, s.Message)
		})
	}

	// Ctrl-C cancels between poll sleeps; a second signal kills the process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			fmt.Fprintln(os.Stderr, "cancelling...")
			runner.Cancel()
		}
	}()

	trigger := func(ctx context.Context) error {
		return client.TriggerGeneration(ctx, sess.SessionTimestamp)
	}

	report, err := runner.Run(ctx, runCfg, sess, trigger)
	if err != nil {
		if errors.Is(err, pipeline.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "run cancelled")
			return nil
		}
		return err
	}

	return opts.Print(report, func(w io.Writer) {
		fmt.Fprintf(w, "Run %s finished: %s\n", report.RunID, report.FinalPhase)
	})
}

func openHistory(cfg *config.Config) (pipeline.RunStore, error) {
	if !cfg.History.Enabled {
		return pipeline.NewMemoryRunStore(), nil
	}
	return store.NewSQLiteRunStore(cfg.History.DBPath)
}
