package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/interloq/interloq/pkg/translate"
)

// Compile-time assertion that Chain satisfies the translate interface.
var _ translate.Provider = (*Chain)(nil)

// ErrNoProvider is returned when every provider in a [Chain] failed or had an
// open breaker.
var ErrNoProvider = errors.New("resilience: no provider available")

// chainEntry pairs a provider with its dedicated breaker.
type chainEntry struct {
	provider translate.Provider
	breaker  *Breaker
}

// Chain is a translate.Provider that tries its members in registration order.
// Members whose breaker is open are skipped. Audio-quality rejections stop
// the chain immediately: they describe the recording, not the backend, so a
// fallback would fail the same way. They also never count against a breaker.
type Chain struct {
	entries []chainEntry
}

// NewChain builds a chain over the given providers, first entry first. Each
// provider gets its own breaker derived from cfg.
func NewChain(cfg BreakerConfig, providers ...translate.Provider) *Chain {
	c := &Chain{}
	for _, p := range providers {
		bc := cfg
		bc.Name = p.Name()
		c.entries = append(c.entries, chainEntry{
			provider: p,
			breaker:  NewBreaker(bc),
		})
	}
	return c
}

// Name implements translate.Provider.
func (c *Chain) Name() string { return "chain" }

// Translate implements translate.Provider.
func (c *Chain) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	var lastErr error
	for _, e := range c.entries {
		if err := e.breaker.Allow(); err != nil {
			slog.Debug("skipping provider, breaker open", "provider", e.provider.Name())
			lastErr = err
			continue
		}

		res, err := e.provider.Translate(ctx, req)
		counted := countsAgainstBreaker(err)
		e.breaker.Record(err != nil, counted)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return translate.Result{}, ctx.Err()
		}
		if !counted {
			// Request-level failure: every provider would reject the same
			// input, so surface it to the caller unchanged.
			return translate.Result{}, err
		}

		slog.Warn("provider failed, trying next",
			"provider", e.provider.Name(),
			"error", err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = ErrNoProvider
	}
	return translate.Result{}, translate.NewError(translate.CodeUnavailable,
		"all providers failed", fmt.Errorf("%w: %w", ErrNoProvider, lastErr))
}

// countsAgainstBreaker reports whether err indicates backend ill health
// rather than a problem with the request itself.
func countsAgainstBreaker(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch translate.CodeOf(err) {
	case translate.CodeAudioQuality, translate.CodeInvalidRequest:
		return false
	}
	return true
}
