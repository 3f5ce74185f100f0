package clients

import (
	"sync"
	"time"

	"github.com/jsamuelsen/quotes-api/internal/platform/config"
)

// BreakerState is the position of a Breaker.
type BreakerState string

// Breaker states.
const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// Breaker stops calls to an upstream that keeps failing.
//
// A closed breaker opens after MaxFailures consecutive failed calls. Once
// Timeout has elapsed it lets up to HalfOpenLimit probe calls through; that
// many successes close it again and any failure reopens it.
type Breaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	probes    int
	openedAt  time.Time

	cfg      config.CircuitBreakerConfig
	onChange func(from, to BreakerState)
	now      func() time.Time
}

// NewBreaker returns a closed breaker. onChange, when non-nil, is called after
// every state transition, outside the breaker's lock.
func NewBreaker(cfg config.CircuitBreakerConfig, onChange func(from, to BreakerState)) *Breaker {
	return &Breaker{
		state:    BreakerClosed,
		cfg:      cfg,
		onChange: onChange,
		now:      time.Now,
	}
}

// Acquire admits one call or returns ErrCircuitOpen.
// Every admitted call must be followed by exactly one Report.
func (b *Breaker) Acquire() error {
	b.mu.Lock()
	from := b.state
	err := b.acquireLocked()
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)

	return err
}

func (b *Breaker) acquireLocked() error {
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Timeout {
			return ErrCircuitOpen
		}

		b.setState(BreakerHalfOpen)

		fallthrough
	case BreakerHalfOpen:
		if b.probes >= b.probeLimit() {
			return ErrCircuitOpen
		}

		b.probes++
	}

	return nil
}

// Report records the outcome of an admitted call. A nil error is a success.
func (b *Breaker) Report(err error) {
	b.mu.Lock()
	from := b.state
	b.reportLocked(err)
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *Breaker) reportLocked(err error) {
	if b.state == BreakerHalfOpen && b.probes > 0 {
		b.probes--
	}

	if err != nil {
		b.failures++
		if b.state == BreakerHalfOpen || b.failures >= b.maxFailures() {
			b.openedAt = b.now()
			b.setState(BreakerOpen)
		}

		return
	}

	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.probeLimit() {
			b.setState(BreakerClosed)
		}
	}
}

// Release returns an admitted call's slot without recording an outcome.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen && b.probes > 0 {
		b.probes--
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// setState moves to a new state and clears the counters. Caller holds mu.
func (b *Breaker) setState(to BreakerState) {
	if b.state == to {
		return
	}

	b.state = to
	b.failures = 0
	b.successes = 0
	b.probes = 0
}

func (b *Breaker) notify(from, to BreakerState) {
	if from != to && b.onChange != nil {
		b.onChange(from, to)
	}
}

func (b *Breaker) maxFailures() int {
	return max(b.cfg.MaxFailures, 1)
}

func (b *Breaker) probeLimit() int {
	return max(b.cfg.HalfOpenLimit, 1)
}
