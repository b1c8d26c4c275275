package pipeline

import (
	"context"
	"time"
)

// WaitOutcome is the result of a bounded wait. Cancellation is
// distinguished from timeout so callers can report the right terminal
// status.
type WaitOutcome int

const (
	WaitReady WaitOutcome = iota
	WaitTimedOut
	WaitCancelled
)

func (o WaitOutcome) String() string {
	switch o {
	case WaitReady:
		return "ready"
	case WaitTimedOut:
		return "timed_out"
	case WaitCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// WaitUntil repeatedly evaluates check until it reports true or the
// timeout elapses, sleeping interval between probes.
//
// The deadline is computed once at call time. A true check returns
// immediately with no trailing sleep. Once the deadline has passed no
// further check is issued. The final sleep is shortened so the total
// wait never overshoots the timeout by more than scheduling jitter.
//
// Predicate errors are the caller's responsibility to encode as false;
// WaitUntil itself never fails on a probe. Cancellation via ctx is
// observed between sleeps, never mid-probe.
func WaitUntil(ctx context.Context, check func() bool, timeout, interval time.Duration) WaitOutcome {
	deadline := time.Now().Add(timeout)

	for {
		if ctx.Err() != nil {
			return WaitCancelled
		}
		if check() {
			return WaitReady
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return WaitTimedOut
		}

		sleep := interval
		if remaining < sleep {
			sleep = remaining
		}

		select {
		case <-ctx.Done():
			return WaitCancelled
		case <-time.After(sleep):
		}

		if time.Until(deadline) <= 0 {
			return WaitTimedOut
		}
	}
}
