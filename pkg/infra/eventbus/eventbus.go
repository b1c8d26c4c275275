// Package eventbus is an in-process fan-out for pipeline run events.
// Delivery is asynchronous and unordered; the pipeline's synchronous
// status observer is the channel with ordering guarantees, the bus is
// for telemetry consumers that must not stall a run.
package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/renderpilot/renderpilot/pkg/pipeline"
)

type SubscriptionID string

type EventHandler func(event pipeline.Event)

type EventFilter func(event pipeline.Event) bool

// Bus dispatches pipeline events to subscribers from a worker pool.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[SubscriptionID]*subscription
	eventChan   chan pipeline.Event
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	closed      bool
}

type subscription struct {
	handler EventHandler
	filters []EventFilter
}

type config struct {
	bufferSize  int
	workerCount int
}

type Option func(*config)

func WithBufferSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

func WithWorkerCount(count int) Option {
	return func(c *config) {
		if count > 0 {
			c.workerCount = count
		}
	}
}

func New(opts ...Option) *Bus {
	cfg := &config{
		bufferSize:  256,
		workerCount: 2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := &Bus{
		subscribers: make(map[SubscriptionID]*subscription),
		eventChan:   make(chan pipeline.Event, cfg.bufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}

	for i := 0; i < cfg.workerCount; i++ {
		bus.wg.Add(1)
		go bus.worker()
	}

	return bus
}

// Publish enqueues an event for dispatch. It satisfies
// pipeline.EventSink; a full buffer drops the event rather than block
// the runner.
func (b *Bus) Publish(event pipeline.Event) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return
	}

	select {
	case b.eventChan <- event:
	case <-b.ctx.Done():
	default:
	}
}

func (b *Bus) Subscribe(handler EventHandler, filters ...EventFilter) (SubscriptionID, error) {
	if handler == nil {
		return "", fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", fmt.Errorf("eventbus is closed")
	}

	id := SubscriptionID(uuid.New().String())
	b.subscribers[id] = &subscription{handler: handler, filters: filters}
	return id, nil
}

func (b *Bus) Unsubscribe(id SubscriptionID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return fmt.Errorf("subscription %s not found", id)
	}
	delete(b.subscribers, id)
	return nil
}

// Close stops dispatch after draining queued events.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.eventChan)
	b.wg.Wait()
	b.cancel()

	b.mu.Lock()
	b.subscribers = make(map[SubscriptionID]*subscription)
	b.mu.Unlock()
	return nil
}

func (b *Bus) worker() {
	defer b.wg.Done()

	for event := range b.eventChan {
		b.dispatch(event)
	}
}

func (b *Bus) dispatch(event pipeline.Event) {
	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if !matchFilters(event, sub.filters) {
			continue
		}
		sub.handler(event)
	}
}

func matchFilters(event pipeline.Event, filters []EventFilter) bool {
	for _, filter := range filters {
		if !filter(event) {
			return false
		}
	}
	return true
}

// FilterByType matches a single event type.
func FilterByType(eventType string) EventFilter {
	return func(event pipeline.Event) bool {
		return event.Type == eventType
	}
}

// FilterByRun matches events for one run ID.
func FilterByRun(runID string) EventFilter {
	return func(event pipeline.Event) bool {
		return event.RunID == runID
	}
}

var _ pipeline.EventSink = (*Bus)(nil)
