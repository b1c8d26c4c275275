package pipeline

import (
	"context"
	"time"
)

// Phase is one named step of the sequential automation state machine.
// Phases advance strictly in declaration order on the happy path;
// PhaseError is absorbing and cancellation resets to PhaseIdle.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseWaitingForPrompts Phase = "waiting_for_prompts"
	PhaseCheckingGPU       Phase = "checking_gpu"
	PhaseStartingBackend   Phase = "starting_backend"
	PhaseGeneratingImages  Phase = "generating_images"
	PhaseComplete          Phase = "complete"
	PhaseError             Phase = "error"
)

// Terminal reports whether no further transitions can occur without a
// new run.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// Status is the externally visible pipeline state. A new snapshot is
// published on every phase transition.
type Status struct {
	Phase       Phase  `json:"phase"`
	Message     string `json:"message"`
	Progress    int    `json:"progress"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// Session identifies one episode's worth of narrative material. The
// pipeline passes it through to collaborators and attaches it to run
// records; it carries no other meaning here.
type Session struct {
	SessionTimestamp string `json:"session_timestamp"`
	StoryID          string `json:"story_id"`
	EpisodeNumber    int    `json:"episode_number"`
	TotalBeats       int    `json:"total_beats"`
}

// Config controls which phases run and how long waits are allowed
// to take. It is immutable for the duration of a run.
type Config struct {
	// Enabled gates the whole pipeline; Run rejects when false.
	Enabled bool
	// WaitForGPU gates generation on GPU readiness.
	WaitForGPU bool
	// AutoStartBackend actively starts the render backend; when false
	// an unresponsive backend fails the run instead.
	AutoStartBackend bool
	// AutoTrigger invokes generation at the end of the pipeline. When
	// false the run still completes: ready-for-manual-generation is a
	// valid terminal outcome.
	AutoTrigger bool
	// MaxWait bounds the wait for derived prompts. Must be positive.
	MaxWait time.Duration
	// PollInterval is the delay between prompt-readiness probes.
	// Defaults to 10s when zero.
	PollInterval time.Duration

	// GPUWait and GPUPollInterval bound the busy-GPU wait. They
	// default to 5m and 5s when zero.
	GPUWait         time.Duration
	GPUPollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.GPUWait <= 0 {
		c.GPUWait = 5 * time.Minute
	}
	if c.GPUPollInterval <= 0 {
		c.GPUPollInterval = 5 * time.Second
	}
	return c
}

// Trigger is the caller-supplied generation action invoked at most
// once per run when Config.AutoTrigger is set.
type Trigger func(ctx context.Context) error

// RunReport summarizes a finished run for the caller.
type RunReport struct {
	RunID      string    `json:"run_id"`
	Session    Session   `json:"session"`
	FinalPhase Phase     `json:"final_phase"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
