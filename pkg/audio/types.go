package audio

import "time"

// Frame represents a single frame of audio data flowing through the pipeline.
// Frames are the atomic unit of audio transport — captured from input streams,
// measured by the silence detector, and accumulated into per-cycle recordings.
type Frame struct {
	// PCM audio data, little-endian int16 samples.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for capture and upload).
	SampleRate int

	// Channels: 1 for mono (capture), 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Recording holds one encoded utterance. The byte payload is opaque to
// everything except the container codec that produced it; the Container tag
// names the layout (e.g. "wav").
//
// A Recording is never mutated after it leaves the component that built it —
// trimming and re-encoding always produce a fresh value.
type Recording struct {
	// Data is the encoded audio payload.
	Data []byte

	// Container identifies the byte layout of Data (e.g. "wav").
	Container string

	// MIME is the content type submitted to the translation backend
	// (e.g. "audio/wav").
	MIME string

	// SampleRate and Channels describe the underlying PCM stream.
	SampleRate int
	Channels   int
}

// Duration returns the play time covered by n mono samples at rate Hz.
func Duration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(rate) * float64(time.Second))
}
