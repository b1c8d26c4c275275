// Package pipeline contains the automation core: the runner that
// sequences the content-production phases, the bounded poller it waits
// with, and the status publisher observers subscribe to. Everything
// the runner calls is a collaborator behind an interface; the runner
// owns ordering, timeouts and failure semantics, nothing else.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/renderpilot/renderpilot/pkg/infra/logger"
)

// Runner drives one pipeline run at a time through its phases. A
// Runner is safe for concurrent use: Run from one goroutine, Cancel
// and CurrentStatus from any other.
type Runner struct {
	publisher *StatusPublisher
	notifier  Notifier
	prompts   PromptGate
	gpu       GPUOracle
	backend   Backend
	listener  Listener
	sink      EventSink
	history   RunStore

	mu        sync.Mutex
	active    bool
	cancelRun context.CancelFunc
}

// RunnerOption configures optional collaborators.
type RunnerOption func(*Runner)

// WithListener attaches the out-of-band notification listener that
// Cancel stops.
func WithListener(l Listener) RunnerOption {
	return func(r *Runner) { r.listener = l }
}

// WithEventSink attaches a telemetry sink for run lifecycle events.
func WithEventSink(s EventSink) RunnerOption {
	return func(r *Runner) { r.sink = s }
}

// WithHistory attaches a journal that finished runs are appended to.
func WithHistory(s RunStore) RunnerOption {
	return func(r *Runner) { r.history = s }
}

func NewRunner(notifier Notifier, prompts PromptGate, gpu GPUOracle, backend Backend, opts ...RunnerOption) *Runner {
	r := &Runner{
		publisher: NewStatusPublisher(),
		notifier:  notifier,
		prompts:   prompts,
		gpu:       gpu,
		backend:   backend,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetStatusObserver registers the sole status observer.
func (r *Runner) SetStatusObserver(cb Observer) {
	r.publisher.SetObserver(cb)
}

// CurrentStatus returns the last published status snapshot.
func (r *Runner) CurrentStatus() Status {
	return r.publisher.Current()
}

// Run executes the pipeline for one session, blocking until it
// reaches a terminal outcome. A failed run is a normal outcome, not a
// panic: the report and error describe what happened, and the same
// message was published to the status observer.
//
// A second Run while one is active is rejected with ErrRunActive.
func (r *Runner) Run(ctx context.Context, cfg Config, session Session, trigger Trigger) (*RunReport, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.MaxWait <= 0 {
		return nil, NewError(KindConfigRejected, "max wait must be positive")
	}
	cfg = cfg.withDefaults()

	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return nil, ErrRunActive
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.active = true
	r.cancelRun = cancel
	r.mu.Unlock()

	defer func() {
		cancel()
		r.mu.Lock()
		r.active = false
		r.cancelRun = nil
		r.mu.Unlock()
	}()

	report := &RunReport{
		RunID:     uuid.New().String(),
		Session:   session,
		StartedAt: time.Now(),
	}

	runCtx = logger.SetRunID(runCtx, report.RunID)
	runCtx = logger.SetStoryID(runCtx, session.StoryID)

	perr := r.execute(runCtx, cfg, session, trigger, report)
	report.FinishedAt = time.Now()

	switch {
	case perr == nil:
		report.FinalPhase = PhaseComplete
	case perr.Kind == KindCancelled:
		report.FinalPhase = PhaseIdle
		report.Error = perr.Error()
		status := Status{Phase: PhaseIdle, Message: "Automation cancelled", Progress: 0}
		r.publish(logger.SetPhase(runCtx, string(PhaseIdle)), session, status, EventTypeRunCancelled)
	default:
		report.FinalPhase = PhaseError
		report.Error = perr.Error()
		status := Status{
			Phase:       PhaseError,
			Message:     perr.Message,
			Progress:    0,
			ErrorDetail: perr.Error(),
		}
		r.publish(logger.SetPhase(runCtx, string(PhaseError)), session, status, EventTypeRunFailed)
	}

	r.appendHistory(report)

	if perr != nil {
		return report, perr
	}
	return report, nil
}

// Cancel aborts the active run, if any, and stops the out-of-band
// notification listener. Cancellation is advisory: a collaborator
// call already in flight completes before it takes effect, so the
// run winds down at the next poll sleep or phase boundary. With no
// active run, Cancel still resets the published status to idle.
func (r *Runner) Cancel() {
	r.mu.Lock()
	cancel := r.cancelRun
	active := r.active
	r.mu.Unlock()

	if r.listener != nil {
		r.listener.StopNotificationPolling()
	}

	if active && cancel != nil {
		cancel()
		return
	}

	r.publisher.Publish(Status{Phase: PhaseIdle, Message: "Automation cancelled", Progress: 0})
}

// execute runs the phases in order and returns the first fatal
// condition, which aborts everything after it. It publishes each
// transition before doing the phase's work.
func (r *Runner) execute(ctx context.Context, cfg Config, session Session, trigger Trigger, report *RunReport) *Error {
	ctx = logger.SetPhase(ctx, string(PhaseWaitingForPrompts))
	r.publish(ctx, session, Status{
		Phase:    PhaseWaitingForPrompts,
		Message:  "Waiting for image prompts",
		Progress: 10,
	}, EventTypeRunStarted)

	// Best-effort: the readiness poll below is the real gate, so a
	// failed notification must not abort the run.
	if err := r.notifier.NotifyBeatsReady(ctx, session); err != nil {
		logger.WithContext(ctx).Warn("beat notification failed, continuing", "error", err)
	}

	outcome := WaitUntil(ctx, func() bool {
		return r.prompts.PromptsReady(ctx, session.SessionTimestamp)
	}, cfg.MaxWait, cfg.PollInterval)
	switch outcome {
	case WaitCancelled:
		return ErrCancelled
	case WaitTimedOut:
		return ErrTimeout.WithMessage("Timeout waiting for prompts")
	}

	r.publish(ctx, session, Status{
		Phase:    PhaseWaitingForPrompts,
		Message:  "Prompts ready",
		Progress: 40,
	}, EventTypePhaseChanged)

	gpuMessage := "Checking GPU readiness"
	if !cfg.WaitForGPU {
		gpuMessage = "GPU check skipped"
	}
	ctx = logger.SetPhase(ctx, string(PhaseCheckingGPU))
	r.publish(ctx, session, Status{
		Phase:    PhaseCheckingGPU,
		Message:  gpuMessage,
		Progress: 60,
	}, EventTypePhaseChanged)

	if cfg.WaitForGPU {
		if perr := r.gateOnGPU(ctx, cfg); perr != nil {
			return perr
		}
	}

	backendMessage := "Starting render backend"
	if !cfg.AutoStartBackend {
		backendMessage = "Checking render backend"
	}
	ctx = logger.SetPhase(ctx, string(PhaseStartingBackend))
	r.publish(ctx, session, Status{
		Phase:    PhaseStartingBackend,
		Message:  backendMessage,
		Progress: 80,
	}, EventTypePhaseChanged)

	if cfg.AutoStartBackend {
		if err := r.backend.EnsureRunning(ctx); err != nil {
			if ctx.Err() != nil {
				return ErrCancelled
			}
			return CollaboratorFailure("failed to start render backend", err)
		}
	} else {
		status, err := r.backend.Check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ErrCancelled
			}
			return CollaboratorFailure("backend status check failed", err)
		}
		if !status.Responsive {
			return ErrUnavailable.WithMessage("Render backend is not responding")
		}
	}

	if ctx.Err() != nil {
		return ErrCancelled
	}

	if !cfg.AutoTrigger {
		r.publish(logger.SetPhase(ctx, string(PhaseComplete)), session, Status{
			Phase:    PhaseComplete,
			Message:  "Ready for manual generation",
			Progress: 100,
		}, EventTypeRunCompleted)
		return nil
	}

	ctx = logger.SetPhase(ctx, string(PhaseGeneratingImages))
	r.publish(ctx, session, Status{
		Phase:    PhaseGeneratingImages,
		Message:  "Triggering image generation",
		Progress: 90,
	}, EventTypePhaseChanged)

	if trigger == nil {
		return NewError(KindConfigRejected, "auto trigger enabled but no trigger supplied")
	}
	if err := trigger(ctx); err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return CollaboratorFailure("generation trigger failed", err)
	}

	r.publish(logger.SetPhase(ctx, string(PhaseComplete)), session, Status{
		Phase:    PhaseComplete,
		Message:  "Pipeline complete",
		Progress: 100,
	}, EventTypeRunCompleted)
	return nil
}

// gateOnGPU fails fast on a missing GPU and waits out a busy one.
// Unavailable means no hardware, not load, so there is no point
// polling for it.
func (r *Runner) gateOnGPU(ctx context.Context, cfg Config) *Error {
	status, err := r.gpu.Status(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return CollaboratorFailure("GPU status query failed", err)
	}
	if !status.Available {
		return ErrUnavailable.WithMessage("GPU not available")
	}
	if status.ReadyForGeneration() {
		return nil
	}

	outcome := WaitUntil(ctx, func() bool {
		s, err := r.gpu.Status(ctx)
		return err == nil && s.ReadyForGeneration()
	}, cfg.GPUWait, cfg.GPUPollInterval)
	switch outcome {
	case WaitCancelled:
		return ErrCancelled
	case WaitTimedOut:
		return ErrTimeout.WithMessage("Timeout waiting for GPU to be ready")
	}
	return nil
}

// publish logs the transition with the context's run correlation
// (run_id, story_id, phase), updates the status publisher, and emits
// the lifecycle event.
func (r *Runner) publish(ctx context.Context, session Session, status Status, eventType string) {
	logger.WithContext(ctx).Info("pipeline status",
		"progress", status.Progress,
		"message", status.Message)

	r.publisher.Publish(status)

	if r.sink != nil {
		r.sink.Publish(newEvent(eventType, logger.GetRunID(ctx), session, status))
	}
}

func (r *Runner) appendHistory(report *RunReport) {
	if r.history == nil {
		return
	}

	record := RunRecord{
		ID:               report.RunID,
		SessionTimestamp: report.Session.SessionTimestamp,
		StoryID:          report.Session.StoryID,
		EpisodeNumber:    report.Session.EpisodeNumber,
		TotalBeats:       report.Session.TotalBeats,
		FinalPhase:       report.FinalPhase,
		Error:            report.Error,
		StartedAt:        report.StartedAt,
		FinishedAt:       report.FinishedAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.history.Append(ctx, record); err != nil {
		logger.Warn("failed to record run history", "run_id", report.RunID, "error", err)
	}
}
