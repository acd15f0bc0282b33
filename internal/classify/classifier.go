// Package classify decides, after capture has stopped, whether a recording
// contains genuine speech. The silence detector works on loudness alone and a
// noisy room can hold it above the trigger threshold without anyone speaking,
// so every stopped recording passes through this gate before being submitted
// for translation.
//
// Classification is a pure function of the raw sample log: the same input
// always yields the same verdict.
package classify

import (
	"math"
	"time"

	"github.com/interloq/interloq/pkg/audio"
)

// Reason identifies which gate rejected a recording.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonTooShort     Reason = "too_short"
	ReasonTooQuiet     Reason = "too_quiet"
	ReasonBadFrequency Reason = "frequency_out_of_band"
	ReasonFlatSignal   Reason = "flat_signal"
	ReasonNoDynamics   Reason = "no_dynamics"
)

// Metrics carries the measurements behind a decision, for logging and tests.
type Metrics struct {
	Duration       time.Duration
	RMS            float64
	Peak           float64
	ActiveFraction float64
	ZeroCrossRate  float64
	FlatRunRatio   float64
	DynamicRange   float64
}

// Decision is the classifier verdict for one recording.
type Decision struct {
	Speech  bool
	Reason  Reason
	Metrics Metrics
}

// Classifier holds the gate thresholds. The zero value is not useful; use
// [Default] or construct explicitly. All gates must pass for a recording to
// count as speech.
type Classifier struct {
	// MinDuration rejects recordings shorter than this outright.
	MinDuration time.Duration

	// MinRMS is the primary loudness gate. A recording below it can still
	// pass when Peak and ActiveFraction both clear their floors — quiet
	// speech with occasional emphasis.
	MinRMS         float64
	MinPeak        float64
	ActiveAmp      float64
	MinActiveFrac  float64

	// MinZeroCross/MaxZeroCross bound the zero-crossing rate to the voiced
	// speech band, excluding DC-ish silence below and tonal noise above.
	MinZeroCross float64
	MaxZeroCross float64

	// MaxFlatRunRatio rejects digital-silence and dropout artifacts: the
	// longest run of near-identical consecutive samples divided by the total.
	MaxFlatRunRatio float64

	// MinDynamicRange is the loudest/quietest ratio over non-negligible
	// samples; constant-level noise or a sustained tone fails it.
	MinDynamicRange float64
}

// Default returns the classifier tuned for 16 kHz mono speech capture.
func Default() Classifier {
	return Classifier{
		MinDuration:     750 * time.Millisecond,
		MinRMS:          0.01,
		MinPeak:         0.03,
		ActiveAmp:       0.005,
		MinActiveFrac:   0.02,
		MinZeroCross:    0.005,
		MaxZeroCross:    0.15,
		MaxFlatRunRatio: 0.10,
		MinDynamicRange: 2.0,
	}
}

// flatEpsilon is the maximum difference between consecutive samples that
// still counts as "near-identical" for the flat-run gate.
const flatEpsilon = 1e-4

// Evaluate classifies one recording's normalized time-domain samples.
func (c Classifier) Evaluate(samples []float64, sampleRate int) Decision {
	m := measure(samples, sampleRate)
	d := Decision{Metrics: m}

	switch {
	case m.Duration < c.MinDuration:
		d.Reason = ReasonTooShort
	case !c.loudEnough(m):
		d.Reason = ReasonTooQuiet
	case m.ZeroCrossRate < c.MinZeroCross || m.ZeroCrossRate > c.MaxZeroCross:
		d.Reason = ReasonBadFrequency
	case m.FlatRunRatio >= c.MaxFlatRunRatio:
		d.Reason = ReasonFlatSignal
	case m.DynamicRange <= c.MinDynamicRange:
		d.Reason = ReasonNoDynamics
	default:
		d.Speech = true
	}
	return d
}

// loudEnough implements the two-path loudness gate: overall RMS, or peak plus
// a sufficient fraction of active samples.
func (c Classifier) loudEnough(m Metrics) bool {
	if m.RMS > c.MinRMS {
		return true
	}
	return m.Peak > c.MinPeak && m.ActiveFraction > c.MinActiveFrac
}

// measure computes every gate input in a single pass plus one scan for the
// dynamic range extremes.
func measure(samples []float64, sampleRate int) Metrics {
	m := Metrics{Duration: audio.Duration(len(samples), sampleRate)}
	if len(samples) == 0 {
		return m
	}

	var (
		sumSq      float64
		active     int
		crossings  int
		flatRun    = 1
		maxFlatRun = 1
		quietest   = math.Inf(1)
	)
	for i, s := range samples {
		abs := math.Abs(s)
		sumSq += s * s
		if abs > m.Peak {
			m.Peak = abs
		}
		if abs > 0.005 {
			active++
			if abs < quietest {
				quietest = abs
			}
		}
		if i > 0 {
			prev := samples[i-1]
			if (prev < 0 && s >= 0) || (prev >= 0 && s < 0) {
				crossings++
			}
			if math.Abs(s-prev) < flatEpsilon {
				flatRun++
				if flatRun > maxFlatRun {
					maxFlatRun = flatRun
				}
			} else {
				flatRun = 1
			}
		}
	}

	n := float64(len(samples))
	m.RMS = math.Sqrt(sumSq / n)
	m.ActiveFraction = float64(active) / n
	if len(samples) > 1 {
		m.ZeroCrossRate = float64(crossings) / float64(len(samples)-1)
	}
	m.FlatRunRatio = float64(maxFlatRun) / n
	if active > 0 && quietest > 0 {
		m.DynamicRange = m.Peak / quietest
	}
	return m
}
