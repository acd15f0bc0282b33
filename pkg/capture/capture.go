// Package capture defines the interfaces for live microphone input.
//
// A [Device] is the platform-specific capture primitive (ffmpeg subprocess,
// sound API binding, test double). Starting it yields a [Stream] of raw PCM
// frames. The higher-level amplitude monitor owns the stream exclusively:
// callers never share a Stream across recording cycles.
//
// This package lives under pkg/ because external code is expected to
// implement [Device] for platforms the built-in adapters do not cover.
package capture

import (
	"context"
	"errors"

	"github.com/interloq/interloq/pkg/audio"
)

// ErrUnavailable is returned by [Device.Start] when no input device exists or
// permission to use it was denied. Fatal for the recording cycle; the
// orchestrator surfaces it without auto-retry.
var ErrUnavailable = errors.New("capture device unavailable")

// Config holds the capture parameters for one stream.
type Config struct {
	// SampleRate in Hz. Default 16000.
	SampleRate int

	// Channels to capture. Default 1.
	Channels int

	// InputFormat is the platform input driver (e.g. "pulse", "alsa",
	// "avfoundation"). Adapter-specific; empty selects the adapter default.
	InputFormat string

	// InputDevice names the input source. Empty selects the default device.
	InputDevice string

	// FrameSize is the number of samples per delivered frame. Default 1600
	// (100 ms at 16 kHz), matching the detector cadence.
	FrameSize int
}

// WithDefaults fills zero fields with the package defaults.
func (c Config) WithDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.FrameSize <= 0 {
		c.FrameSize = c.SampleRate / 10
	}
	return c
}

// Stream is one live capture session.
//
// A Stream is owned by a single consumer; it is not safe to read Frames from
// multiple goroutines.
type Stream interface {
	// Frames returns the channel delivering captured PCM frames. The channel
	// closes when the stream stops or the underlying source fails.
	Frames() <-chan audio.Frame

	// Stop releases the capture resource. Safe to call more than once;
	// subsequent calls are no-ops and return nil.
	Stop() error
}

// Device is the entry point for a capture backend.
// Implementations must be safe for concurrent use.
type Device interface {
	// Start acquires the input device and begins streaming. The ctx governs
	// the stream lifetime: cancelling it stops capture as if Stop were
	// called. Returns an error wrapping [ErrUnavailable] if the device
	// cannot be acquired.
	Start(ctx context.Context, cfg Config) (Stream, error)
}
