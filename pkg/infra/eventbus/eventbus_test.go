package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderpilot/renderpilot/pkg/pipeline"
)

type collector struct {
	mu     sync.Mutex
	events []pipeline.Event
}

func (c *collector) handle(event pipeline.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := New()
	defer bus.Close()

	c := &collector{}
	_, err := bus.Subscribe(c.handle)
	require.NoError(t, err)

	bus.Publish(pipeline.Event{Type: pipeline.EventTypeRunStarted, RunID: "run-1"})
	bus.Publish(pipeline.Event{Type: pipeline.EventTypeRunCompleted, RunID: "run-1"})

	require.Eventually(t, func() bool { return c.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestBusFilters(t *testing.T) {
	bus := New()
	defer bus.Close()

	failures := &collector{}
	_, err := bus.Subscribe(failures.handle, FilterByType(pipeline.EventTypeRunFailed))
	require.NoError(t, err)

	runScoped := &collector{}
	_, err = bus.Subscribe(runScoped.handle, FilterByRun("run-2"))
	require.NoError(t, err)

	bus.Publish(pipeline.Event{Type: pipeline.EventTypeRunStarted, RunID: "run-1"})
	bus.Publish(pipeline.Event{Type: pipeline.EventTypeRunFailed, RunID: "run-1"})
	bus.Publish(pipeline.Event{Type: pipeline.EventTypeRunStarted, RunID: "run-2"})

	require.Eventually(t, func() bool {
		return failures.count() == 1 && runScoped.count() == 1
	}, time.Second, 5*time.Millisecond)

	failures.mu.Lock()
	assert.Equal(t, pipeline.EventTypeRunFailed, failures.events[0].Type)
	failures.mu.Unlock()

	runScoped.mu.Lock()
	assert.Equal(t, "run-2", runScoped.events[0].RunID)
	runScoped.mu.Unlock()
}

func TestBusUnsubscribe(t *testing.T) {
	bus := New()
	defer bus.Close()

	c := &collector{}
	id, err := bus.Subscribe(c.handle)
	require.NoError(t, err)

	bus.Publish(pipeline.Event{Type: pipeline.EventTypeRunStarted})
	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Unsubscribe(id))
	assert.Error(t, bus.Unsubscribe(id), "double unsubscribe")

	bus.Publish(pipeline.Event{Type: pipeline.EventTypeRunStarted})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, c.count())
}

func TestBusRejectsNilHandler(t *testing.T) {
	bus := New()
	defer bus.Close()

	_, err := bus.Subscribe(nil)
	assert.Error(t, err)
}

func TestBusCloseDrainsQueue(t *testing.T) {
	bus := New(WithWorkerCount(1))

	c := &collector{}
	_, err := bus.Subscribe(c.handle)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		bus.Publish(pipeline.Event{Type: pipeline.EventTypePhaseChanged})
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, 10, c.count())

	// Publishing and subscribing after Close are no-ops.
	bus.Publish(pipeline.Event{Type: pipeline.EventTypeRunStarted})
	_, err = bus.Subscribe(c.handle)
	assert.Error(t, err)

	require.NoError(t, bus.Close(), "double close")
}
