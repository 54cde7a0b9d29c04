package gamification

import (
	"context"
	"sync"
	"time"

	"github.com/learnpath/learnpath-lms/internal/domain/changeset"
	"github.com/learnpath/learnpath-lms/internal/domain/gamification"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// DefaultMaxInFlight bounds concurrent reactions per Factory.
const DefaultMaxInFlight = 16

// Config configures an Interceptor.
type Config struct {
	EventTimeout time.Duration
	Capture      CapturePolicy

	// MaxInFlight bounds how many committed saves are reacted to at once.
	// Further reactions wait for a slot in the background.
	MaxInFlight int
}

// inflight runs reactions off the saving goroutine and lets shutdown wait
// for them.
type inflight struct {
	wg    sync.WaitGroup
	slots chan struct{}
}

func newInflight(limit int) *inflight {
	if limit <= 0 {
		limit = DefaultMaxInFlight
	}
	return &inflight{slots: make(chan struct{}, limit)}
}

func (f *inflight) run(fn func()) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.slots <- struct{}{}
		defer func() { <-f.slots }()
		fn()
	}()
}

func (f *inflight) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Interceptor hooks one unit of work. Create a new one per save cycle;
// the buffer is owned by the instance.
type Interceptor struct {
	policy  CapturePolicy
	reactor *Reactor
	log     *logger.Logger
	async   *inflight

	mu      sync.Mutex
	pending []ProgressChangeEvent
}

var _ changeset.Interceptor = (*Interceptor)(nil)

// NewInterceptor creates a standalone interceptor for one unit of work.
// Use Wait to block until its reactions finished.
func NewInterceptor(evaluator gamification.Evaluator, log *logger.Logger, cfg Config) *Interceptor {
	return newInterceptor(evaluator, log, cfg, newInflight(cfg.MaxInFlight))
}

func newInterceptor(evaluator gamification.Evaluator, log *logger.Logger, cfg Config, async *inflight) *Interceptor {
	if log == nil {
		log = logger.Nop()
	}
	return &Interceptor{
		policy:  cfg.Capture,
		reactor: NewReactor(evaluator, log, ReactorConfig{EventTimeout: cfg.EventTimeout}),
		log:     log.With(logger.Component("gamification_interceptor")),
		async:   async,
	}
}

// SavingChanges buffers the completions among changes. It never fails the save.
func (i *Interceptor) SavingChanges(_ context.Context, changes []changeset.Change) error {
	events := Capture(changes, i.policy)
	if len(events) == 0 {
		return nil
	}
	i.mu.Lock()
	i.pending = append(i.pending, events...)
	i.mu.Unlock()
	return nil
}

// SavedChanges clears the buffer and reacts to its events in the
// background; it returns without waiting on the evaluation API.
func (i *Interceptor) SavedChanges(ctx context.Context, _ changeset.SaveResult) {
	events := i.drain()
	if len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	i.async.run(func() {
		sum := i.reactor.React(ctx, events)
		i.log.Debug("progress events processed",
			logger.Int("processed", sum.Processed),
			logger.Int("failed", sum.Failed),
		)
	})
}

// Wait blocks until every reaction started by this interceptor (or, for
// one built by a Factory, by any sibling) finished, or ctx is done.
func (i *Interceptor) Wait(ctx context.Context) error { return i.async.wait(ctx) }

// SaveFailed discards the buffer.
func (i *Interceptor) SaveFailed(_ context.Context, err error) {
	if n := len(i.drain()); n > 0 {
		i.log.Debug("save failed, progress events discarded", logger.Int("discarded", n), logger.Err(err))
	}
}

// Pending returns a copy of the buffered events.
func (i *Interceptor) Pending() []ProgressChangeEvent {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]ProgressChangeEvent, len(i.pending))
	copy(out, i.pending)
	return out
}

func (i *Interceptor) drain() []ProgressChangeEvent {
	i.mu.Lock()
	defer i.mu.Unlock()
	events := i.pending
	i.pending = nil
	return events
}

// Factory builds interceptors with shared dependencies. Reactions of all
// its interceptors share one concurrency bound.
type Factory struct {
	evaluator gamification.Evaluator
	log       *logger.Logger
	cfg       Config
	async     *inflight
}

// NewFactory creates a factory.
func NewFactory(evaluator gamification.Evaluator, log *logger.Logger, cfg Config) *Factory {
	return &Factory{evaluator: evaluator, log: log, cfg: cfg, async: newInflight(cfg.MaxInFlight)}
}

// New returns a fresh interceptor for one unit of work.
func (f *Factory) New() changeset.Interceptor {
	return newInterceptor(f.evaluator, f.log, f.cfg, f.async)
}

// Wait blocks until every reaction started so far finished, or ctx is done.
// Call it on shutdown before closing what the evaluator depends on.
func (f *Factory) Wait(ctx context.Context) error { return f.async.wait(ctx) }
