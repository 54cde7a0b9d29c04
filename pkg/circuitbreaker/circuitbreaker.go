// Package circuitbreaker stops calling a failing dependency for a while so
// callers fall back quickly instead of waiting on timeouts.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down elapses.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling the dependency while the breaker is
// open or its half-open probes are exhausted.
var ErrOpen = errors.New("circuit breaker is open")

// Config configures a breaker.
type Config struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int

	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int

	// CoolDown is how long the breaker stays open.
	CoolDown time.Duration

	// MaxProbes bounds concurrent calls in the half-open state.
	MaxProbes int

	// IsFailure classifies errors. Nil counts every error except context
	// cancellation by the caller.
	IsFailure func(error) bool

	// OnStateChange is called with the breaker lock held; keep it short.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig suits a cache: trip fast, probe again soon.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		CoolDown:         10 * time.Second,
		MaxProbes:        1,
	}
}

// Counts are cumulative call statistics.
type Counts struct {
	Requests  int64
	Failures  int64
	Rejected  int64
	Successes int64
}

// CircuitBreaker guards calls to one dependency.
type CircuitBreaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu          sync.Mutex
	state       State
	openedAt    time.Time
	consecutive int // failures when closed, successes when half-open
	probes      int
	counts      Counts
}

// New creates a breaker. Zero config fields take DefaultConfig values.
func New(name string, cfg Config) *CircuitBreaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = def.CoolDown
	}
	if cfg.MaxProbes <= 0 {
		cfg.MaxProbes = def.MaxProbes
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	return &CircuitBreaker{name: name, cfg: cfg, now: time.Now}
}

// Execute calls fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.before()
	if err != nil {
		return err
	}
	err = fn(ctx)
	cb.after(probe, err)
	return err
}

// Do is Execute for calls that return a value.
func Do[T any](ctx context.Context, cb *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

func (cb *CircuitBreaker) before() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++
	switch cb.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.CoolDown {
			cb.counts.Rejected++
			return false, ErrOpen
		}
		cb.setState(StateHalfOpen)
	}

	if cb.probes >= cb.cfg.MaxProbes {
		cb.counts.Rejected++
		return false, ErrOpen
	}
	cb.probes++
	return true, nil
}

func (cb *CircuitBreaker) after(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe && cb.probes > 0 {
		cb.probes--
	}
	failed := err != nil && cb.cfg.IsFailure(err)
	if failed {
		cb.counts.Failures++
	} else {
		cb.counts.Successes++
	}

	switch cb.state {
	case StateClosed:
		if !failed {
			cb.consecutive = 0
			return
		}
		cb.consecutive++
		if cb.consecutive >= cb.cfg.FailureThreshold {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		if failed {
			cb.setState(StateOpen)
			return
		}
		cb.consecutive++
		if cb.consecutive >= cb.cfg.SuccessThreshold {
			cb.setState(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.consecutive = 0
	cb.probes = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns cumulative statistics.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string { return cb.name }
