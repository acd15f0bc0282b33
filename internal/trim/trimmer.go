// Package trim shrinks a validated recording before upload by cutting the
// silent lead-in and tail. It is strictly an optimization: every failure path
// returns the original recording untouched, and the output — when trimming
// does apply — is a fresh linear-PCM container, never an in-place mutation.
package trim

import (
	"log/slog"
	"time"

	"github.com/interloq/interloq/pkg/audio"
)

// minWindowSamples is the floor on the analysis window so very low sample
// rates still get a meaningful per-window RMS.
const minWindowSamples = 1024

// Trimmer locates the speech span of a recording and re-encodes just that
// range. The zero value is not useful; use [Default].
type Trimmer struct {
	// WindowSeconds sizes the analysis window (samples = rate × this, with a
	// 1024-sample floor).
	WindowSeconds float64

	// WindowRMSThreshold marks a window as non-silent. Deliberately more
	// permissive than the detector's silence threshold so soft onsets are not
	// clipped.
	WindowRMSThreshold float64

	// MinKeep bails out when the kept span would be shorter than this.
	MinKeep time.Duration

	// MinSaving bails out when trimming would save less than this.
	MinSaving time.Duration
}

// Default returns the trimmer tuned for speech uploads.
func Default() Trimmer {
	return Trimmer{
		WindowSeconds:      0.25,
		WindowRMSThreshold: 0.045,
		MinKeep:            100 * time.Millisecond,
		MinSaving:          500 * time.Millisecond,
	}
}

// Trim returns rec unchanged, or a shorter re-encoded recording covering only
// the detected speech span. samples are the decoded normalized samples behind
// rec; they are not modified.
func (t Trimmer) Trim(rec audio.Recording, samples []float64) audio.Recording {
	rate := rec.SampleRate
	if rate <= 0 || len(samples) == 0 {
		return rec
	}

	window := int(float64(rate) * t.WindowSeconds)
	if window < minWindowSamples {
		window = minWindowSamples
	}

	first, last := t.speechSpan(samples, window)
	if first < 0 {
		return rec
	}

	start := first * window
	end := (last + 1) * window
	if end > len(samples) {
		end = len(samples)
	}

	kept := audio.Duration(end-start, rate)
	saved := audio.Duration(len(samples), rate) - kept
	if kept < t.MinKeep || saved < t.MinSaving {
		return rec
	}

	data, err := EncodeWAV(samples[start:end], rate, 1)
	if err != nil {
		// Trimming is never load-bearing; ship the original.
		slog.Warn("trim: re-encode failed, keeping original", "err", err)
		return rec
	}

	slog.Debug("trim: applied",
		"kept", kept,
		"saved", saved,
		"start", audio.Duration(start, rate),
	)
	return audio.Recording{
		Data:       data,
		Container:  ContainerWAV,
		MIME:       MIMEWAV,
		SampleRate: rate,
		Channels:   1,
	}
}

// speechSpan returns the first and last window indices whose RMS reaches the
// threshold, or (-1, -1) when no window qualifies.
func (t Trimmer) speechSpan(samples []float64, window int) (first, last int) {
	n := (len(samples) + window - 1) / window
	first, last = -1, -1

	for i := 0; i < n; i++ {
		if t.windowLoud(samples, i, window) {
			first = i
			break
		}
	}
	if first < 0 {
		return -1, -1
	}
	for i := n - 1; i >= first; i-- {
		if t.windowLoud(samples, i, window) {
			last = i
			break
		}
	}
	return first, last
}

func (t Trimmer) windowLoud(samples []float64, idx, window int) bool {
	start := idx * window
	end := start + window
	if end > len(samples) {
		end = len(samples)
	}
	return audio.RMS(samples[start:end]) >= t.WindowRMSThreshold
}
