package pipeline

import (
	"context"

	"github.com/renderpilot/renderpilot/pkg/infra/backend"
	"github.com/renderpilot/renderpilot/pkg/infra/gpu"
)

// Collaborator contracts consumed by the runner. Transport, retries
// and thresholds are the collaborators' concern; the runner only
// sequences calls and interprets outcomes.

// Notifier tells the planning service that new beats are ready.
// Failure is explicitly non-critical: the prompt-readiness poll is the
// real gate, so the runner logs and continues.
type Notifier interface {
	NotifyBeatsReady(ctx context.Context, session Session) error
}

// PromptGate reports whether derived prompts exist for a session. It
// is an idempotent probe, safe to call repeatedly; implementations
// encode transient errors as false.
type PromptGate interface {
	PromptsReady(ctx context.Context, sessionTimestamp string) bool
}

// Listener is the independent out-of-band readiness channel. It is
// only touched by the cancellation path, which stops it; the phase
// wait never uses it.
type Listener interface {
	StartNotificationPolling(onReady func()) error
	StopNotificationPolling()
}

// GPUOracle answers point-in-time GPU readiness queries.
type GPUOracle interface {
	Status(ctx context.Context) (gpu.Status, error)
}

// Backend manages the rendering backend process.
type Backend interface {
	EnsureRunning(ctx context.Context) error
	Check(ctx context.Context) (backend.Status, error)
}
