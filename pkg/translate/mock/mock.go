// Package mock provides test doubles for the translate package interfaces.
//
// Use Provider to script per-call results or errors and inspect the requests
// the caller submitted.
//
// Example:
//
//	p := &mock.Provider{
//	    Results: []mock.Outcome{
//	        {Err: translate.NewError(translate.CodeAudioQuality, "garbled", nil)},
//	        {Result: translate.Result{TranslatedText: "hola"}},
//	    },
//	}
package mock

import (
	"context"
	"sync"

	"github.com/interloq/interloq/pkg/translate"
)

// Compile-time assertion that Provider satisfies the translate interface.
var _ translate.Provider = (*Provider)(nil)

// Outcome is the scripted response for one Translate call.
type Outcome struct {
	Result translate.Result
	Err    error

	// Delay, if non-nil, is closed by the test to release the call. The call
	// blocks on it (or on ctx) before returning.
	Delay <-chan struct{}
}

// Provider is a mock implementation of translate.Provider.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Results are consumed one per Translate call. When exhausted, the last
	// entry is reused; with no entries at all, a zero Result is returned.
	Results []Outcome

	// Requests records every request passed to Translate.
	Requests []translate.Request

	calls int
}

// Name implements translate.Provider.
func (p *Provider) Name() string {
	if p.ProviderName != "" {
		return p.ProviderName
	}
	return "mock"
}

// Translate records the request and returns the next scripted outcome.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	var out Outcome
	if n := len(p.Results); n > 0 {
		i := p.calls
		if i >= n {
			i = n - 1
		}
		out = p.Results[i]
	}
	p.calls++
	p.mu.Unlock()

	if out.Delay != nil {
		select {
		case <-out.Delay:
		case <-ctx.Done():
			return translate.Result{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return translate.Result{}, err
	}
	return out.Result, out.Err
}

// Recorded returns a snapshot of the requests received so far.
func (p *Provider) Recorded() []translate.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]translate.Request, len(p.Requests))
	copy(out, p.Requests)
	return out
}

// Calls returns the number of Translate invocations so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
