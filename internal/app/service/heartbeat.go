package service

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
)

// Heartbeat repeatedly runs an action on a fixed interval. The timer re-arms
// only after the action returns, so a slow action stretches the cycle rather
// than stacking firings. Action failures are logged and the loop continues.
//
// Start and Stop are idempotent. Stop cancels a pending wait and joins the
// loop goroutine; it does not interrupt an action already running, it waits
// for it. Changing the interval requires Stop, SetInterval, Start.
type Heartbeat struct {
	clock  quartz.Clock
	action func(context.Context) error
	logger zerolog.Logger

	mu       sync.Mutex
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHeartbeat(clock quartz.Clock, interval time.Duration, action func(context.Context) error, logger zerolog.Logger) *Heartbeat {
	return &Heartbeat{
		clock:    clock,
		interval: interval,
		action:   action,
		logger:   logger,
	}
}

// Running reports whether the loop is currently armed.
func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancel != nil
}

// Interval returns the configured interval.
func (h *Heartbeat) Interval() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interval
}

// SetInterval changes the interval used by the next Start. It has no effect
// on a loop that is already running; callers Stop first.
func (h *Heartbeat) SetInterval(d time.Duration) {
	h.mu.Lock()
	h.interval = d
	h.mu.Unlock()
}

func (h *Heartbeat) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.cancel = cancel
	h.done = done
	go h.run(ctx, h.interval, done)
}

// Stop cancels the pending wait and returns once no further firing will
// occur. An action in flight is allowed to complete first.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (h *Heartbeat) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	for {
		t := h.clock.NewTimer(interval, "heartbeat")
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		// The action gets a fresh context: stopping the heartbeat cancels
		// the wait above, never a cycle that already began.
		if err := h.action(context.Background()); err != nil {
			h.logger.Warn().Err(err).Msg("Heartbeat action failed")
		}
	}
}
