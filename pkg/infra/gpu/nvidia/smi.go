package nvidia

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/renderpilot/renderpilot/pkg/infra/gpu"
)

const (
	defaultSMIPath = "nvidia-smi"

	// queryFields is the CSV column list requested from nvidia-smi.
	// Order must match parseRow.
	queryFields = "name,utilization.gpu,memory.free,memory.total,temperature.gpu"
)

// SMI shells out to nvidia-smi for device queries.
type SMI struct {
	path    string
	timeout time.Duration
}

func NewSMI(path string) *SMI {
	if path == "" {
		path = defaultSMIPath
	}
	return &SMI{
		path:    path,
		timeout: 10 * time.Second,
	}
}

func (s *SMI) SetTimeout(d time.Duration) {
	s.timeout = d
}

// Available reports whether nvidia-smi can be executed at all.
func (s *SMI) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.path, "--version")
	return cmd.Run() == nil
}

// QueryDevice returns the status of a single GPU by index.
func (s *SMI) QueryDevice(ctx context.Context, index int) (gpu.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.path,
		"-i", strconv.Itoa(index),
		"--query-gpu="+queryFields,
		"--format=csv,noheader,nounits")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return gpu.Status{}, gpu.ErrCommandFailed.WithCause(
				fmt.Errorf("nvidia-smi exited with code %d: %s", exitErr.ExitCode(), string(exitErr.Stderr)))
		}
		return gpu.Status{}, gpu.ErrCommandFailed.WithCause(err)
	}

	line := strings.TrimSpace(string(output))
	if line == "" {
		return gpu.Status{}, gpu.ErrNotAvailable
	}

	status, err := parseRow(line)
	if err != nil {
		return gpu.Status{}, gpu.ErrCommandFailed.WithCause(
			fmt.Errorf("parse nvidia-smi output: %w", err))
	}

	return status, nil
}

// parseRow parses one CSV row in queryFields order.
func parseRow(line string) (gpu.Status, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return gpu.Status{}, fmt.Errorf("expected 5 fields, got %d: %q", len(fields), line)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	util, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return gpu.Status{}, fmt.Errorf("utilization %q: %w", fields[1], err)
	}

	memFree, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return gpu.Status{}, fmt.Errorf("memory.free %q: %w", fields[2], err)
	}

	memTotal, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return gpu.Status{}, fmt.Errorf("memory.total %q: %w", fields[3], err)
	}

	temp, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return gpu.Status{}, fmt.Errorf("temperature %q: %w", fields[4], err)
	}

	return gpu.Status{
		Available:      true,
		Name:           fields[0],
		UtilizationPct: util,
		MemoryFreeMB:   memFree,
		MemoryTotalMB:  memTotal,
		TemperatureC:   temp,
	}, nil
}
