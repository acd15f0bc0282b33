// Package monitor wraps a capture device behind the two views the recording
// pipeline needs: a pull-based real-time loudness snapshot for the silence
// detector, and a push-based accumulation of the raw samples that becomes the
// completed recording when capture stops.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/interloq/interloq/internal/trim"
	"github.com/interloq/interloq/pkg/audio"
	"github.com/interloq/interloq/pkg/capture"
)

// ErrEmptyCapture is returned by Stop when the platform delivered zero bytes
// for the whole recording — a device malfunction, distinct from "too quiet".
var ErrEmptyCapture = errors.New("capture produced no audio")

// ErrNotCapturing is returned by Stop when no capture is in progress.
var ErrNotCapturing = errors.New("no capture in progress")

// Monitor owns the microphone handle for the whole process: at any instant
// at most one live stream exists, and only the orchestrator calls
// Start/Stop/Release. Level is safe to poll from any goroutine and never
// blocks.
type Monitor struct {
	dev capture.Device
	cfg capture.Config

	level atomic.Uint64 // math.Float64bits of the latest frame RMS

	mu      sync.Mutex
	stream  capture.Stream
	cancel  context.CancelFunc
	samples []float64
	bytes   int
	pumped  chan struct{}
}

// New creates a Monitor over dev. cfg zero-fields take capture defaults.
func New(dev capture.Device, cfg capture.Config) *Monitor {
	return &Monitor{dev: dev, cfg: cfg.WithDefaults()}
}

// Start acquires the capture device and begins accumulating a fresh sample
// log. Calling Start while already capturing is a no-op — acquisition is
// idempotent.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := m.dev.Start(streamCtx, m.cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("monitor: %w", err)
	}

	m.stream = stream
	m.cancel = cancel
	m.samples = nil
	m.bytes = 0
	m.level.Store(0)
	m.pumped = make(chan struct{})

	go m.pump(stream, m.pumped)
	return nil
}

// pump drains the stream until it closes, keeping the loudness snapshot and
// the per-cycle sample log current.
func (m *Monitor) pump(stream capture.Stream, done chan struct{}) {
	defer close(done)
	for frame := range stream.Frames() {
		m.level.Store(math.Float64bits(audio.FrameRMS(frame.Data)))

		samples := audio.DecodePCM16(frame.Data)
		if frame.Channels == 2 {
			samples = audio.StereoToMonoSamples(samples)
		}

		m.mu.Lock()
		m.samples = append(m.samples, samples...)
		m.bytes += len(frame.Data)
		m.mu.Unlock()
	}
}

// Level returns the most recent loudness snapshot in [0, 1]. It never blocks;
// between frames the value is simply stale.
func (m *Monitor) Level() float64 {
	return math.Float64frombits(m.level.Load())
}

// Stop releases the device and returns the completed recording in a linear-
// PCM container together with the raw sample log for classification. The
// sample log hands over ownership: the monitor keeps no reference.
//
// Returns [ErrNotCapturing] when nothing is live, and [ErrEmptyCapture] when
// the platform produced zero bytes.
func (m *Monitor) Stop() (audio.Recording, []float64, error) {
	m.mu.Lock()
	stream := m.stream
	pumped := m.pumped
	m.mu.Unlock()

	if stream == nil {
		return audio.Recording{}, nil, ErrNotCapturing
	}

	_ = stream.Stop()
	<-pumped // all in-flight frames are in the log now

	m.mu.Lock()
	defer m.mu.Unlock()

	samples := m.samples
	bytes := m.bytes
	m.release()

	if bytes == 0 {
		return audio.Recording{}, nil, ErrEmptyCapture
	}

	data, err := trim.EncodeWAV(samples, m.cfg.SampleRate, 1)
	if err != nil {
		return audio.Recording{}, nil, fmt.Errorf("monitor: encode recording: %w", err)
	}
	return audio.Recording{
		Data:       data,
		Container:  trim.ContainerWAV,
		MIME:       trim.MIMEWAV,
		SampleRate: m.cfg.SampleRate,
		Channels:   1,
	}, samples, nil
}

// Release discards any in-progress capture without producing a recording.
// Safe to call at any time, any number of times; used on pause, session end,
// and cycle cleanup.
func (m *Monitor) Release() {
	m.mu.Lock()
	stream := m.stream
	pumped := m.pumped
	m.mu.Unlock()

	if stream == nil {
		return
	}
	_ = stream.Stop()
	<-pumped

	m.mu.Lock()
	m.release()
	m.mu.Unlock()
}

// release clears capture state. Callers must hold m.mu.
func (m *Monitor) release() {
	if m.cancel != nil {
		m.cancel()
	}
	m.stream = nil
	m.cancel = nil
	m.samples = nil
	m.bytes = 0
	m.pumped = nil
	m.level.Store(0)
}

// Capturing reports whether a stream is currently live.
func (m *Monitor) Capturing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream != nil
}
