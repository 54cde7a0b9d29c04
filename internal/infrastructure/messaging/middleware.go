package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/learnpath/learnpath-lms/pkg/retry"
)

// Middleware wraps an event handler.
type Middleware func(shared.EventHandler) shared.EventHandler

// Chain applies middlewares so the first one is outermost.
func Chain(handler shared.EventHandler, middlewares ...Middleware) shared.EventHandler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// Retry re-runs a failing handler with backoff. Handlers must be idempotent
// or fail before their side effect.
func Retry(opts ...retry.Option) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			return retry.Do(context.Background(), func(context.Context) error {
				return next(event)
			}, opts...)
		}
	}
}

// Timeout stops waiting for a handler after d. The handler keeps running in
// the background; its result is discarded.
func Timeout(d time.Duration) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			done := make(chan error, 1)
			go func() { done <- safeCall(event, next) }()

			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case err := <-done:
				return err
			case <-timer.C:
				return fmt.Errorf("event handler timed out after %s", d)
			}
		}
	}
}

// DeadLetter records events whose handler still failed after the inner
// middlewares gave up. The error is passed through.
func DeadLetter(q *DeadLetterQueue, name string) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			err := next(event)
			if err != nil {
				q.Add(DeadLetterEntry{Event: event, Handler: name, Err: err, FailedAt: time.Now()})
			}
			return err
		}
	}
}

// DeadLetterEntry is one event that could not be handled.
type DeadLetterEntry struct {
	Event    shared.Event
	Handler  string
	Err      error
	FailedAt time.Time
}

// DeadLetterQueue keeps the most recent failures, dropping the oldest when full.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
	maxSize int
}

func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{maxSize: maxSize}
}

func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy, oldest first.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetterEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *DeadLetterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
