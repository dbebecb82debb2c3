// Package circuitbreaker stops a session from hammering an exchange that is
// failing at the transport level. Only failures the exchange cannot be
// blamed on the caller for are counted: network errors, timeouts and 5xx.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"graviex/pkg/core"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	FailThreshold    int           `json:"fail_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Timeout          time.Duration `json:"timeout"`
}

type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	openedAt         time.Time
	failThreshold    int
	successThreshold int
	timeout          time.Duration
	now              func() time.Time
	logger           zerolog.Logger
	onChange         func(from, to State)
	stats            Stats
}

// Stats is a point in time copy of the breaker counters.
type Stats struct {
	Allowed      int64
	Rejected     int64
	Failures     int64
	StateChanges int64
}

type Option func(*Breaker)

func WithLogger(l zerolog.Logger) Option {
	return func(b *Breaker) {
		b.logger = l
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// OnStateChange registers fn to run after every transition, under the lock.
func OnStateChange(fn func(from, to State)) Option {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

func New(config Config, opts ...Option) *Breaker {
	b := &Breaker{
		state:            StateClosed,
		failThreshold:    max(config.FailThreshold, 1),
		successThreshold: max(config.SuccessThreshold, 1),
		timeout:          config.Timeout,
		now:              time.Now,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a call may proceed. An open breaker lets a probe
// through once Timeout has passed since it opened.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.timeout {
			b.stats.Rejected++
			return false
		}
		b.transitionTo(StateHalfOpen)
	}
	b.stats.Allowed++
	return true
}

// Record feeds the outcome of an allowed call back into the breaker.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !success {
		b.stats.Failures++
	}

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.failThreshold {
			b.open()
		}
	case StateHalfOpen:
		if !success {
			b.open()
			return
		}
		b.successes++
		if b.successes >= b.successThreshold {
			b.failures = 0
			b.successes = 0
			b.transitionTo(StateClosed)
		}
	case StateOpen:
		// A call allowed before the breaker opened finished late.
	}
}

// RecordError classifies err with IsFailure and records the result. A call
// the caller canceled says nothing about the exchange and is not recorded.
func (b *Breaker) RecordError(err error) {
	if core.IsCanceledError(err) {
		return
	}
	b.Record(!IsFailure(err))
}

// IsFailure reports whether err should count against the exchange: a
// transport failure or a 5xx answer. A nil error and every 4xx count as
// success because the exchange answered.
func IsFailure(err error) bool {
	if err == nil {
		return false
	}
	var reqErr *core.RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	switch reqErr.Type {
	case core.ErrorTypeNetwork, core.ErrorTypeTimeout, core.ErrorTypeServerError:
		return true
	}
	return false
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.successes = 0
	b.transitionTo(StateOpen)
}

func (b *Breaker) transitionTo(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.stats.StateChanges++

	b.logger.Warn().
		Str("from", from.String()).
		Str("to", to.String()).
		Int("failures", b.failures).
		Msg("circuit breaker state change")

	if b.onChange != nil {
		b.onChange(from, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.successes = 0
	b.transitionTo(StateClosed)
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) Successes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.successes
}

func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
