package client

import (
	"context"
	"errors"
	"sync"
)

// ErrLoopStopped is returned when posting to a loop that has stopped.
var ErrLoopStopped = errors.New("control loop stopped")

// Loop runs posted functions one at a time on a single goroutine.
//
// Post never blocks, so transport goroutines and prompt replies can hand
// work to the loop while it is busy, including while it is itself waiting
// on a transport teardown.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	stopped bool
}

// NewLoop creates a loop. Nothing runs until Run or RunPending is called.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn. It reports false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to return.
// It must not be called from the loop itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunPending runs queued functions, including any they post, until the
// queue is empty. It returns how many ran.
func (l *Loop) RunPending() int {
	ran := 0
	for {
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			return ran
		}
		for _, fn := range batch {
			fn()
			ran++
		}
	}
}

// Run processes posted functions until ctx is cancelled. Functions still
// queued at that point are dropped and later posts are refused.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.pending = nil
			l.mu.Unlock()
			return ctx.Err()
		case <-l.wake:
		}
	}
}
