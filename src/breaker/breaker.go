// Package breaker implements a circuit breaker used to shed load from
// failing dependencies. It tracks consecutive failures and cools down for a
// recovery window before letting a probe call through.
package breaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Call without invoking the wrapped function
// while the breaker is cooling down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State of the breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

const (
	defaultFailureThreshold = 5
	defaultRecoveryTimeout  = 60 * time.Second
)

// Breaker is shared by every request going through a given client instance.
// It is a coarse load-shedding mechanism, not a correctness primitive.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	recoveryTimeout  time.Duration
	logger           *slog.Logger
	now              func() time.Time

	state        State
	failureCount int
	lastFailure  time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets the consecutive-failure count that opens the
// circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) { b.failureThreshold = n }
}

// WithRecoveryTimeout sets how long the circuit stays open before a probe
// call is allowed through.
func WithRecoveryTimeout(d time.Duration) Option {
	return func(b *Breaker) { b.recoveryTimeout = d }
}

// WithLogger sets the logger used for state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Breaker) { b.logger = logger }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New creates a closed breaker with the default thresholds.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		failureThreshold: defaultFailureThreshold,
		recoveryTimeout:  defaultRecoveryTimeout,
		logger:           slog.Default(),
		now:              time.Now,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "circuit_breaker")
	return b
}

// Call executes fn under breaker protection. While the circuit is open it
// returns ErrCircuitOpen immediately. In half-open state exactly the next
// call is let through: success closes the circuit, failure reopens it.
func (b *Breaker) Call(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) < b.recoveryTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.logger.Info("circuit breaker half-open, probing")
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the current consecutive-failure count.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

func (b *Breaker) onSuccess() {
	b.failureCount = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.logger.Info("circuit breaker closed after successful recovery")
	}
}

func (b *Breaker) onFailure() {
	b.failureCount++
	b.lastFailure = b.now()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.logger.Warn("circuit breaker reopened after failed probe")
		return
	}
	if b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		b.logger.Warn("circuit breaker opened", "failure_count", b.failureCount)
	}
}
