// Package mock provides a test double for the playback package.
//
// Use Sink to record the clips a caller plays and to script completion: by
// default Play returns immediately, or set Block to hold each call until the
// test releases it.
package mock

import (
	"context"
	"sync"

	"github.com/interloq/interloq/pkg/playback"
)

// Compile-time assertion that Sink satisfies the playback interface.
var _ playback.Sink = (*Sink)(nil)

// PlayCall records a single invocation of Sink.Play.
type PlayCall struct {
	Data []byte
	MIME string
}

// Sink is a mock implementation of playback.Sink.
type Sink struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned from every Play call.
	PlayErr error

	// Block, if non-nil, holds each Play call until the channel is closed or
	// the call's context is cancelled.
	Block <-chan struct{}

	// PlayCalls records every call to Play.
	PlayCalls []PlayCall
}

// Play records the call and returns PlayErr after any scripted blocking.
func (s *Sink) Play(ctx context.Context, data []byte, mime string) error {
	s.mu.Lock()
	s.PlayCalls = append(s.PlayCalls, PlayCall{Data: data, MIME: mime})
	block := s.Block
	err := s.PlayErr
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return err
}

// Calls returns the number of Play invocations so far.
func (s *Sink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.PlayCalls)
}
