package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderpilot/renderpilot/pkg/config"
	"github.com/renderpilot/renderpilot/pkg/infra/backend"
	"github.com/renderpilot/renderpilot/pkg/infra/logger"
)

// backendStopTimeout is the graceful shutdown window before docker
// falls back to SIGKILL.
const backendStopTimeout = 30 * time.Second

func NewBackendCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Manage the render backend container",
	}

	cmd.AddCommand(NewBackendStartCommand(root))
	cmd.AddCommand(NewBackendStopCommand(root))

	return cmd
}

func NewBackendStartCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the render backend and wait until it responds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newBackendManager(root.Config())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), root.Config().Backend.StartTimeoutD+time.Minute)
			defer cancel()

			if err := manager.EnsureRunning(ctx); err != nil {
				return fmt.Errorf("start backend: %w", err)
			}

			status, err := manager.Check(ctx)
			if err != nil {
				return err
			}
			return root.OutputOptions().Print(status, func(w io.Writer) {
				fmt.Fprintf(w, "Backend %s (responsive: %v)\n", status.ContainerState, status.Responsive)
			})
		},
	}
}

func NewBackendStopCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop and remove the render backend container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newBackendManager(root.Config())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			if err := manager.Stop(ctx, int(backendStopTimeout.Seconds())); err != nil {
				return fmt.Errorf("stop backend: %w", err)
			}

			if !root.OutputOptions().Quiet {
				fmt.Fprintln(root.OutputOptions().Writer, "Backend stopped")
			}
			return nil
		},
	}
}

// backendManager adds the CLI-only Stop operation to the pipeline's
// Manager contract.
type backendManager interface {
	backend.Manager
	Stop(ctx context.Context, timeoutSec int) error
}

func newBackendManager(cfg *config.Config) (backendManager, error) {
	opts := backend.Options{
		ContainerName: cfg.Backend.ContainerName,
		Image:         cfg.Backend.Image,
		Port:          cfg.Backend.Port,
		HealthURL:     cfg.Backend.HealthURL,
		StartTimeout:  cfg.Backend.StartTimeoutD,
		UseGPU:        cfg.Backend.UseGPU,
	}

	manager, err := backend.NewDockerManager(opts)
	if err != nil {
		logger.Warn("docker sdk client unavailable, falling back to docker cli", "error", err)
		return backend.NewCLIManager(opts), nil
	}
	return manager, nil
}
