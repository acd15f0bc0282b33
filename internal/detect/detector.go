// Package detect implements real-time end-of-utterance detection.
//
// A Detector samples an amplitude source at a fixed cadence, keeps a short
// rolling loudness history, and decides when the speaker has stopped: once
// the rolling mean stays below the silence threshold it runs a multi-second
// countdown, and only if the silence holds for the full countdown does it
// declare the utterance over. Any loudness rise cancels the countdown
// immediately — the design favours responsiveness over robustness to
// transient noise.
//
// A Detector serves exactly one recording cycle. It emits silence-elapsed at
// most once and then halts; the orchestrator builds a fresh one per cycle.
package detect

import (
	"context"
	"time"
)

// Defaults chosen for a 100 ms cadence: the window covers the last 3 s of
// audio and the countdown adds another 3 s of confirmed silence.
const (
	DefaultSampleInterval   = 100 * time.Millisecond
	DefaultWindowSize       = 30
	DefaultSilenceThreshold = 0.05
	DefaultCountdownTicks   = 3
	DefaultTickInterval     = time.Second
)

// AmplitudeSource yields the most recent normalized loudness snapshot in
// [0, 1]. Implementations must never block; a stale value is acceptable.
type AmplitudeSource interface {
	Level() float64
}

// EventKind classifies detector output events.
type EventKind int

const (
	// SoundActive is emitted when loudness returns during a silence countdown.
	SoundActive EventKind = iota

	// SilenceCountdown is emitted once per countdown tick; the event carries
	// the remaining seconds.
	SilenceCountdown

	// SilenceElapsed is emitted exactly once, when the countdown reaches zero.
	SilenceElapsed
)

// String returns the human-readable name of the event kind.
func (k EventKind) String() string {
	switch k {
	case SoundActive:
		return "sound-active"
	case SilenceCountdown:
		return "silence-countdown"
	case SilenceElapsed:
		return "silence-elapsed"
	default:
		return "unknown"
	}
}

// Event is a single detector observation delivered to the emit callback.
type Event struct {
	Kind EventKind

	// Countdown is the remaining seconds for SilenceCountdown events.
	Countdown int
}

// Config tunes a Detector. Zero fields fall back to the package defaults.
type Config struct {
	// SampleInterval is the fixed polling cadence, decoupled from any display
	// refresh rate.
	SampleInterval time.Duration

	// WindowSize is the rolling loudness buffer capacity.
	WindowSize int

	// SilenceThreshold is the rolling-mean loudness below which the input
	// counts as silent.
	SilenceThreshold float64

	// CountdownTicks is the number of whole ticks of confirmed silence
	// required before silence-elapsed fires.
	CountdownTicks int

	// TickInterval is the wall time between countdown ticks.
	TickInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.SampleInterval <= 0 {
		c.SampleInterval = DefaultSampleInterval
	}
	if c.WindowSize <= 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = DefaultSilenceThreshold
	}
	if c.CountdownTicks <= 0 {
		c.CountdownTicks = DefaultCountdownTicks
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	return c
}

// Detector watches an amplitude source for the end of an utterance.
// It is single-goroutine: Run owns all state, and the emit callback is
// invoked synchronously from the sampling loop.
type Detector struct {
	src  AmplitudeSource
	emit func(Event)
	cfg  Config

	window         *loudnessRing
	silent         bool
	countdown      int
	samplesPerTick int
	untilNextTick  int
	halted         bool
}

// New creates a detector over src. Events are delivered through emit, which
// must be non-nil and fast — it runs on the sampling goroutine.
func New(src AmplitudeSource, emit func(Event), cfg Config) *Detector {
	cfg = cfg.withDefaults()
	spt := int(cfg.TickInterval / cfg.SampleInterval)
	if spt < 1 {
		spt = 1
	}
	return &Detector{
		src:            src,
		emit:           emit,
		cfg:            cfg,
		window:         newLoudnessRing(cfg.WindowSize),
		samplesPerTick: spt,
	}
}

// Run samples at the configured cadence until silence-elapsed fires or ctx is
// cancelled. It always returns nil on cancellation; halting after elapsed is
// the normal exit.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.step() {
				return
			}
		}
	}
}

// step takes one sample and advances the detector. Returns true once
// silence-elapsed has fired and sampling must halt for this cycle.
func (d *Detector) step() (done bool) {
	if d.halted {
		return true
	}

	level := d.src.Level()
	d.window.Push(level)

	// A part-filled window is treated as speech: no decision is made until a
	// full window of history exists.
	if !d.window.Full() {
		return false
	}

	mean := d.window.Mean()

	if d.silent {
		// A single loud sample cancels immediately, even before it can move
		// the rolling mean.
		if level >= d.cfg.SilenceThreshold || mean >= d.cfg.SilenceThreshold {
			d.silent = false
			d.countdown = 0
			d.emit(Event{Kind: SoundActive})
			return false
		}
		d.untilNextTick--
		if d.untilNextTick > 0 {
			return false
		}
		d.untilNextTick = d.samplesPerTick
		d.countdown--
		if d.countdown > 0 {
			d.emit(Event{Kind: SilenceCountdown, Countdown: d.countdown})
			return false
		}
		d.halted = true
		d.emit(Event{Kind: SilenceElapsed})
		return true
	}

	if mean < d.cfg.SilenceThreshold {
		d.silent = true
		d.countdown = d.cfg.CountdownTicks
		d.untilNextTick = d.samplesPerTick
		d.emit(Event{Kind: SilenceCountdown, Countdown: d.countdown})
	}
	return false
}
