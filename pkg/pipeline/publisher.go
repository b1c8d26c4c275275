package pipeline

import (
	"sync"

	"github.com/renderpilot/renderpilot/pkg/infra/logger"
)

// Observer receives every status snapshot, synchronously and in
// publication order.
type Observer func(Status)

// idleStatus is what Current returns before anything was published.
var idleStatus = Status{
	Phase:    PhaseIdle,
	Message:  "Automation not active",
	Progress: 0,
}

// StatusPublisher is the single point of truth for pipeline status.
// One writer (the runner) publishes; any goroutine may read Current.
// At most one observer is registered at a time; setting a new one
// replaces the previous (this is a single-operator tool).
type StatusPublisher struct {
	mu        sync.Mutex
	current   Status
	published bool
	observer  Observer
}

func NewStatusPublisher() *StatusPublisher {
	return &StatusPublisher{}
}

// SetObserver registers cb as the sole observer, replacing any
// previous one. A nil cb removes the observer.
func (p *StatusPublisher) SetObserver(cb Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = cb
}

// Current returns the last published status, or the idle placeholder
// if nothing was published yet.
func (p *StatusPublisher) Current() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.published {
		return idleStatus
	}
	return p.current
}

// Publish stores the snapshot and invokes the observer synchronously.
// The observer sees snapshots in exact publication order; a slow
// observer therefore stalls the pipeline, which is the accepted
// tradeoff for ordered delivery. Observer panics are recovered and
// logged, never propagated into the runner.
func (p *StatusPublisher) Publish(status Status) {
	p.mu.Lock()
	p.current = status
	p.published = true
	observer := p.observer
	p.mu.Unlock()

	if observer == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("status observer panicked", "phase", status.Phase, "panic", r)
		}
	}()
	observer(status)
}
