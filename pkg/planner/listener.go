package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/renderpilot/renderpilot/pkg/infra/logger"
	"github.com/renderpilot/renderpilot/pkg/pipeline"
)

// ErrListenerActive is returned when polling is started twice.
var ErrListenerActive = errors.New("notification polling already active")

// Listener polls the planner out-of-band and fires a callback the
// first time prompts become ready for its session. It is independent
// of the pipeline's phase wait; the pipeline only stops it on
// cancellation.
type Listener struct {
	client           *Client
	sessionTimestamp string
	interval         time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewListener(client *Client, sessionTimestamp string, interval time.Duration) *Listener {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Listener{
		client:           client,
		sessionTimestamp: sessionTimestamp,
		interval:         interval,
	}
}

// StartNotificationPolling begins the background poll. onReady is
// invoked once, from the polling goroutine, after which polling stops
// on its own and the listener can be started again.
func (l *Listener) StartNotificationPolling(onReady func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return ErrListenerActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	go l.poll(ctx, cancel, done, onReady)
	return nil
}

// StopNotificationPolling stops the background poll and waits for the
// goroutine to exit. Safe to call when polling was never started.
func (l *Listener) StopNotificationPolling() {
	l.mu.Lock()
	cancel := l.cancel
	done := l.done
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *Listener) poll(ctx context.Context, cancel context.CancelFunc, done chan struct{}, onReady func()) {
	// On self-termination, release the slot so the listener can be
	// restarted. Skipped when Stop already claimed the state.
	defer func() {
		close(done)
		cancel()
		l.mu.Lock()
		if l.done == done {
			l.cancel = nil
			l.done = nil
		}
		l.mu.Unlock()
	}()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if l.client.PromptsReady(ctx, l.sessionTimestamp) {
				logger.Info("prompts ready notification", "session", l.sessionTimestamp)
				if onReady != nil {
					onReady()
				}
				return
			}
		}
	}
}

var _ pipeline.Listener = (*Listener)(nil)
