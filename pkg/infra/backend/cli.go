package backend

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CLIManager drives the render backend through the docker CLI. It is
// the fallback when the SDK client cannot be built, for example when
// DOCKER_HOST points at an unreachable daemon config.
type CLIManager struct {
	httpClient *http.Client
	opts       Options
}

func NewCLIManager(opts Options) *CLIManager {
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 2 * time.Minute
	}
	return &CLIManager{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		opts:       opts,
	}
}

// Check probes the backend without changing its state.
func (m *CLIManager) Check(ctx context.Context) (Status, error) {
	state, _, err := m.containerState(ctx)
	if err != nil {
		return Status{}, err
	}

	status := Status{ContainerState: state}
	if state == "running" {
		status.Responsive = probeHealth(ctx, m.httpClient, m.opts.HealthURL)
	}
	return status, nil
}

// EnsureRunning brings the backend up via the docker CLI and waits
// for it to answer health probes.
func (m *CLIManager) EnsureRunning(ctx context.Context) error {
	state, id, err := m.containerState(ctx)
	if err != nil {
		return err
	}

	switch state {
	case "running":
		if probeHealth(ctx, m.httpClient, m.opts.HealthURL) {
			return nil
		}
	case ContainerStateMissing:
		if err := m.runContainer(ctx); err != nil {
			return err
		}
	default:
		out, err := exec.CommandContext(ctx, "docker", "start", id).CombinedOutput()
		if err != nil {
			return fmt.Errorf("docker start: %w\noutput: %s", err, string(out))
		}
	}

	return waitResponsive(ctx, m.httpClient, m.opts.HealthURL, m.opts.StartTimeout)
}

// Stop stops and removes the backend container.
func (m *CLIManager) Stop(ctx context.Context, timeoutSec int) error {
	state, id, err := m.containerState(ctx)
	if err != nil {
		return err
	}
	if state == ContainerStateMissing {
		return nil
	}

	// Ignore stop errors, the container might already be stopped.
	_ = exec.CommandContext(ctx, "docker", "stop", "-t", strconv.Itoa(timeoutSec), id).Run()

	// Remove with a fresh context: the request context may have expired
	// while docker stop was running.
	out, err := exec.CommandContext(context.Background(), "docker", "rm", "-f", id).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker rm: %w\noutput: %s", err, string(out))
	}
	return nil
}

func (m *CLIManager) containerState(ctx context.Context) (state, id string, err error) {
	out, err := exec.CommandContext(ctx, "docker", "ps", "-a",
		"--filter", "name="+m.opts.ContainerName,
		"--format", "{{.ID}}\t{{.State}}").CombinedOutput()
	if err != nil {
		return "", "", fmt.Errorf("docker ps: %w\noutput: %s", err, string(out))
	}
	return parsePSOutput(string(out))
}

func (m *CLIManager) runContainer(ctx context.Context) error {
	port := strconv.Itoa(m.opts.Port)
	args := []string{
		"run", "-d",
		"--name", m.opts.ContainerName,
		"-p", port + ":" + port,
		"--label", "renderpilot.managed=true",
	}
	if m.opts.UseGPU {
		args = append(args, "--gpus", "all")
	}
	args = append(args, m.opts.Image)

	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker run: %w\noutput: %s", err, string(out))
	}
	return nil
}

// parsePSOutput reads the first "{{.ID}}\t{{.State}}" line of docker
// ps output. Empty output means no matching container.
func parsePSOutput(out string) (state, id string, err error) {
	line := strings.TrimSpace(out)
	if line == "" {
		return ContainerStateMissing, "", nil
	}
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	parts := strings.SplitN(line, "\t", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("unexpected docker ps output: %q", line)
	}
	return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[0]), nil
}

var _ Manager = (*CLIManager)(nil)
