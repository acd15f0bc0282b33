// Package resilience shields the translation path from failing backends.
//
// [Breaker] is a three-state circuit breaker (closed, open, half-open).
// [Chain] composes several translate providers behind one, each guarded by
// its own breaker, so an unreachable primary is bypassed in favour of the
// next healthy fallback.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Allow] while the breaker rejects calls.
var ErrOpen = errors.New("resilience: breaker open")

// breakerState is the operating mode of a Breaker.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// Threshold is the number of consecutive counted failures before the
	// breaker opens. Default: 3.
	Threshold int

	// Cooldown is how long the breaker stays open before letting a single
	// probe call through. Default: 30s.
	Cooldown time.Duration
}

// Breaker is a three-state circuit breaker. While closed it counts
// consecutive failures; at the threshold it opens and rejects calls for the
// cooldown, after which one probe call is let through. A successful probe
// closes the breaker, a failed one re-opens it.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a Breaker, replacing zero config fields with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. It returns [ErrOpen] while the
// breaker is open; once the cooldown elapses it admits exactly one probe at a
// time in the half-open state. Every admitted call must be matched with a
// Record call.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = stateHalfOpen
		b.probing = true
		slog.Info("breaker half-open, admitting probe", "breaker", b.name)
		return nil

	case stateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	}
	return nil
}

// Record reports the outcome of an admitted call. Failures marked counted
// move the breaker toward open; uncounted failures (request-level problems
// that say nothing about backend health) leave it untouched.
func (b *Breaker) Record(failed, counted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.probing = false
		if failed && counted {
			b.state = stateOpen
			b.openedAt = b.now()
			slog.Warn("breaker re-opened after failed probe", "breaker", b.name)
			return
		}
		if !failed {
			b.state = stateClosed
			b.failures = 0
			slog.Info("breaker closed after successful probe", "breaker", b.name)
		}
		return
	}

	if !failed {
		b.failures = 0
		return
	}
	if !counted {
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = stateOpen
		b.openedAt = b.now()
		slog.Warn("breaker opened",
			"breaker", b.name,
			"consecutive_failures", b.failures)
	}
}

// Reset forces the breaker back to closed, clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
	b.probing = false
}
