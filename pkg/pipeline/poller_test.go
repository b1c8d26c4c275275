package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitUntilReadyImmediately(t *testing.T) {
	start := time.Now()
	outcome := WaitUntil(context.Background(), func() bool { return true }, time.Minute, 10*time.Second)

	assert.Equal(t, WaitReady, outcome)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "a true first probe must not sleep")
}

func TestWaitUntilReadyAfterRetries(t *testing.T) {
	calls := 0
	outcome := WaitUntil(context.Background(), func() bool {
		calls++
		return calls >= 3
	}, time.Minute, 5*time.Millisecond)

	assert.Equal(t, WaitReady, outcome)
	assert.Equal(t, 3, calls)
}

func TestWaitUntilTimeout(t *testing.T) {
	calls := 0
	start := time.Now()
	outcome := WaitUntil(context.Background(), func() bool {
		calls++
		return false
	}, 60*time.Millisecond, 20*time.Millisecond)
	elapsed := time.Since(start)

	assert.Equal(t, WaitTimedOut, outcome)
	assert.GreaterOrEqual(t, calls, 1)
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond, "must not overshoot by a full interval")
}

func TestWaitUntilTinyTimeoutLargeInterval(t *testing.T) {
	// The final sleep is capped at the remaining time, so a 1ms bound
	// with a 10s interval still fails in well under a second.
	start := time.Now()
	outcome := WaitUntil(context.Background(), func() bool { return false }, time.Millisecond, 10*time.Second)

	assert.Equal(t, WaitTimedOut, outcome)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitUntilCancelledBeforeFirstProbe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	outcome := WaitUntil(ctx, func() bool {
		calls++
		return true
	}, time.Minute, time.Second)

	assert.Equal(t, WaitCancelled, outcome)
	assert.Zero(t, calls, "no probe after cancellation")
}

func TestWaitUntilCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome := WaitUntil(ctx, func() bool { return false }, time.Minute, 10*time.Second)

	require.Equal(t, WaitCancelled, outcome)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must interrupt the sleep")
}

func TestWaitOutcomeString(t *testing.T) {
	assert.Equal(t, "ready", WaitReady.String())
	assert.Equal(t, "timed_out", WaitTimedOut.String())
	assert.Equal(t, "cancelled", WaitCancelled.String())
	assert.Equal(t, "unknown", WaitOutcome(42).String())
}
