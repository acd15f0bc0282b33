// Package mock provides test doubles for the capture package interfaces.
//
// Use Device to verify that the caller starts capture with the expected
// Config and to feed controlled PCM frames through a scripted Stream.
package mock

import (
	"context"
	"sync"

	"github.com/interloq/interloq/pkg/audio"
	"github.com/interloq/interloq/pkg/capture"
)

// StartCall records a single invocation of Device.Start.
type StartCall struct {
	Ctx context.Context
	Cfg capture.Config
}

// Device is a mock implementation of capture.Device.
type Device struct {
	mu sync.Mutex

	// Stream is returned by Start. If nil, Start returns a new empty Stream.
	Stream *Stream

	// StartErr, if non-nil, is returned as the error from Start.
	StartErr error

	// StartCalls records every call to Start.
	StartCalls []StartCall
}

// Start records the call and returns Stream, StartErr.
func (d *Device) Start(ctx context.Context, cfg capture.Config) (capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.StartCalls = append(d.StartCalls, StartCall{Ctx: ctx, Cfg: cfg})
	if d.StartErr != nil {
		return nil, d.StartErr
	}
	if d.Stream == nil {
		d.Stream = NewStream(0)
	}
	return d.Stream, nil
}

// Calls returns a snapshot of recorded Start invocations.
func (d *Device) Calls() []StartCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]StartCall, len(d.StartCalls))
	copy(out, d.StartCalls)
	return out
}

// Stream is a scripted capture.Stream fed through [Stream.Push].
type Stream struct {
	frames chan audio.Frame

	mu        sync.Mutex
	stopped   bool
	StopCalls int

	// StopErr is returned by the first Stop call.
	StopErr error
}

// NewStream creates a Stream with the given frame buffer (0 means 16).
func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = 16
	}
	return &Stream{frames: make(chan audio.Frame, buffer)}
}

// Push delivers a frame to the consumer. Returns false once the stream has
// been stopped.
func (s *Stream) Push(f audio.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.frames <- f
	return true
}

// PushPCM is a convenience wrapper encoding normalized samples at rate Hz.
func (s *Stream) PushPCM(samples []float64, rate int) bool {
	return s.Push(audio.Frame{
		Data:       audio.EncodePCM16(samples),
		SampleRate: rate,
		Channels:   1,
	})
}

// Frames implements capture.Stream.
func (s *Stream) Frames() <-chan audio.Frame { return s.frames }

// Stop implements capture.Stream. The frame channel closes on first call.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCalls++
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.frames)
	return s.StopErr
}
