package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderpilot/renderpilot/pkg/infra/backend"
	"github.com/renderpilot/renderpilot/pkg/infra/gpu"
	"github.com/renderpilot/renderpilot/pkg/infra/gpu/nvidia"
	"github.com/renderpilot/renderpilot/pkg/infra/hoststats"
	"github.com/renderpilot/renderpilot/pkg/infra/logger"
)

// statusReport is the one-shot environment snapshot printed by the
// status command.
type statusReport struct {
	GPU      gpu.Status          `json:"gpu"`
	GPUReady bool                `json:"gpu_ready"`
	Backend  backend.Status      `json:"backend"`
	Host     *hoststats.Snapshot `json:"host,omitempty"`
}

func NewStatusCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show GPU, backend and host status",
		Long: `Snapshot the rendering environment without running the pipeline:
GPU readiness against the generation thresholds, render backend
responsiveness, and host memory/load.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), root)
		},
	}

	return cmd
}

func runStatus(ctx context.Context, root *RootCommand) error {
	cfg := root.Config()
	opts := root.OutputOptions()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var report statusReport

	oracle := nvidia.NewOracle(cfg.GPU.SMIPath, cfg.GPU.DeviceIndex)
	gpuStatus, err := oracle.Status(ctx)
	if err != nil {
		logger.Warn("gpu status unavailable", "error", err)
	} else {
		report.GPU = gpuStatus
		report.GPUReady = gpuStatus.ReadyForGeneration()
	}

	manager, err := newBackendManager(cfg)
	if err != nil {
		logger.Warn("docker unavailable", "error", err)
		report.Backend = backend.Status{ContainerState: "unknown"}
	} else {
		backendStatus, err := manager.Check(ctx)
		if err != nil {
			logger.Warn("backend check failed", "error", err)
			report.Backend = backend.Status{ContainerState: "unknown"}
		} else {
			report.Backend = backendStatus
		}
	}

	if snap, err := hoststats.Collect(); err == nil {
		report.Host = &snap
	}

	return opts.Print(report, func(w io.Writer) {
		printStatusTable(w, report)
	})
}

func printStatusTable(w io.Writer, report statusReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	if report.GPU.Available {
		fmt.Fprintf(tw, "GPU\t%s\n", report.GPU.Name)
		fmt.Fprintf(tw, "  Utilization\t%.0f%%\n", report.GPU.UtilizationPct)
		fmt.Fprintf(tw, "  Memory free\t%d / %d MB\n", report.GPU.MemoryFreeMB, report.GPU.MemoryTotalMB)
		fmt.Fprintf(tw, "  Temperature\t%.0f C\n", report.GPU.TemperatureC)
		fmt.Fprintf(tw, "  Ready\t%v\n", report.GPUReady)
	} else {
		fmt.Fprintln(tw, "GPU\tnot available")
	}

	fmt.Fprintf(tw, "Backend\t%s\n", report.Backend.ContainerState)
	fmt.Fprintf(tw, "  Responsive\t%v\n", report.Backend.Responsive)

	if report.Host != nil {
		fmt.Fprintf(tw, "Host memory\t%d / %d MB free\n", report.Host.MemoryFreeMB, report.Host.MemoryTotalMB)
		fmt.Fprintf(tw, "  Load (1m)\t%.2f\n", report.Host.Load1)
	}
}
