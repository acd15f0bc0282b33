package audio

import "math"

// Normalization divisor for little-endian int16 PCM.
const int16Scale = 32768.0

// DecodePCM16 converts little-endian int16 PCM bytes into normalized float64
// samples in [-1, 1). A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float64 {
	n := len(pcm) / 2
	out := make([]float64, n)
	for i := range n {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float64(s) / int16Scale
	}
	return out
}

// EncodePCM16 converts normalized float64 samples back into little-endian
// int16 PCM bytes. Samples outside [-1, 1] are clamped.
func EncodePCM16(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := s * int16Scale
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		iv := int16(v)
		out[i*2] = byte(iv)
		out[i*2+1] = byte(iv >> 8)
	}
	return out
}

// RMS returns the root-mean-square of samples, the loudness proxy used by the
// silence detector and the validity classifier. Returns 0 for an empty slice.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// FrameRMS computes the RMS of a raw little-endian int16 PCM frame without
// allocating an intermediate sample slice.
func FrameRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(pcm[i*2])|int16(pcm[i*2+1])<<8) / int16Scale
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// StereoToMonoSamples averages interleaved L/R sample pairs into a mono
// stream. Odd trailing samples are dropped.
func StereoToMonoSamples(samples []float64) []float64 {
	frames := len(samples) / 2
	out := make([]float64, frames)
	for i := range frames {
		out[i] = (samples[i*2] + samples[i*2+1]) / 2
	}
	return out
}
