// Package backend manages the lifecycle of the external rendering
// backend (a ComfyUI-style image generation server). The pipeline
// either actively ensures it is running or passively checks that it
// responds, depending on configuration.
package backend

import (
	"context"
	"time"
)

// Status reports the observed state of the rendering backend.
type Status struct {
	// Responsive is true when the health endpoint answered.
	Responsive bool `json:"responsive"`
	// ContainerState is the docker state string when known
	// (e.g. "running", "exited", "missing").
	ContainerState string `json:"container_state,omitempty"`
}

// Manager is the lifecycle contract consumed by the pipeline.
type Manager interface {
	// EnsureRunning starts the backend if necessary and waits until it
	// answers health probes.
	EnsureRunning(ctx context.Context) error
	// Check probes the backend without changing its state.
	Check(ctx context.Context) (Status, error)
}

// Options configures a docker-backed Manager.
type Options struct {
	ContainerName string
	Image         string
	Port          int
	HealthURL     string
	StartTimeout  time.Duration
	UseGPU        bool
}
