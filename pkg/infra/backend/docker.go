package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/renderpilot/renderpilot/pkg/infra/logger"
)

// ContainerStateMissing is reported when no container with the
// configured name exists.
const ContainerStateMissing = "missing"

// DockerManager runs the rendering backend as a docker container.
type DockerManager struct {
	cli        *dockerclient.Client
	httpClient *http.Client
	opts       Options
}

// NewDockerManager creates a manager configured from environment
// variables (DOCKER_HOST, DOCKER_TLS_VERIFY, DOCKER_CERT_PATH,
// DOCKER_API_VERSION).
func NewDockerManager(opts Options) (*DockerManager, error) {
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker sdk client: %w", err)
	}

	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 2 * time.Minute
	}

	return &DockerManager{
		cli:        cli,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		opts:       opts,
	}, nil
}

// SetHTTPClient replaces the health-probe client. Used by tests.
func (m *DockerManager) SetHTTPClient(c *http.Client) {
	m.httpClient = c
}

// Check probes the backend without changing its state.
func (m *DockerManager) Check(ctx context.Context) (Status, error) {
	state, _, err := m.containerState(ctx)
	if err != nil {
		return Status{}, err
	}

	status := Status{ContainerState: state}
	if state == "running" {
		status.Responsive = m.probeHealth(ctx)
	}
	return status, nil
}

// EnsureRunning brings the backend up and waits for it to answer
// health probes. The existing container is reused when present;
// otherwise the configured image is pulled and started.
func (m *DockerManager) EnsureRunning(ctx context.Context) error {
	state, id, err := m.containerState(ctx)
	if err != nil {
		return err
	}

	switch state {
	case "running":
		if m.probeHealth(ctx) {
			return nil
		}
		logger.Info("backend container running but not responsive yet", "container", m.opts.ContainerName)
	case ContainerStateMissing:
		if id, err = m.createContainer(ctx); err != nil {
			return err
		}
		fallthrough
	default:
		// Created, exited, paused: (re)start it.
		if err := m.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
			return fmt.Errorf("docker ContainerStart: %w", err)
		}
	}

	return m.waitResponsive(ctx)
}

func (m *DockerManager) containerState(ctx context.Context) (state, id string, err error) {
	f := filters.NewArgs()
	f.Add("name", m.opts.ContainerName)

	containers, err := m.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return "", "", fmt.Errorf("docker ContainerList: %w", err)
	}
	if len(containers) == 0 {
		return ContainerStateMissing, "", nil
	}
	return containers[0].State, containers[0].ID, nil
}

func (m *DockerManager) createContainer(ctx context.Context) (string, error) {
	logger.Info("pulling backend image", "image", m.opts.Image)
	rc, err := m.cli.ImagePull(ctx, m.opts.Image, image.PullOptions{})
	if err != nil {
		return "", fmt.Errorf("docker ImagePull %s: %w", m.opts.Image, err)
	}
	// Drain the reader to complete the pull; output is JSON progress (discarded).
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()

	port := nat.Port(strconv.Itoa(m.opts.Port) + "/tcp")
	cfg := &container.Config{
		Image:        m.opts.Image,
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels:       map[string]string{"renderpilot.managed": "true"},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostPort: strconv.Itoa(m.opts.Port)}},
		},
	}
	if m.opts.UseGPU {
		hostCfg.DeviceRequests = []container.DeviceRequest{
			{
				Driver:       "nvidia",
				Count:        -1, // all GPUs
				Capabilities: [][]string{{"gpu"}},
			},
		}
	}

	resp, err := m.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, m.opts.ContainerName)
	if err != nil {
		return "", fmt.Errorf("docker ContainerCreate: %w", err)
	}
	return resp.ID, nil
}

// Stop stops and removes the backend container. Not used by the
// pipeline itself; exposed for the CLI.
func (m *DockerManager) Stop(ctx context.Context, timeoutSec int) error {
	state, id, err := m.containerState(ctx)
	if err != nil {
		return err
	}
	if state == ContainerStateMissing {
		return nil
	}

	stopOpts := container.StopOptions{Timeout: &timeoutSec}
	if err := m.cli.ContainerStop(ctx, id, stopOpts); err != nil {
		if !cerrdefs.IsNotFound(err) {
			return fmt.Errorf("docker ContainerStop: %w", err)
		}
	}
	if err := m.cli.ContainerRemove(context.Background(), id, container.RemoveOptions{Force: true}); err != nil {
		if !cerrdefs.IsNotFound(err) {
			return fmt.Errorf("docker ContainerRemove: %w", err)
		}
	}
	return nil
}

func (m *DockerManager) probeHealth(ctx context.Context) bool {
	return probeHealth(ctx, m.httpClient, m.opts.HealthURL)
}

func (m *DockerManager) waitResponsive(ctx context.Context) error {
	return waitResponsive(ctx, m.httpClient, m.opts.HealthURL, m.opts.StartTimeout)
}

var _ Manager = (*DockerManager)(nil)
