package trim

import (
	"encoding/binary"
	"fmt"

	"github.com/interloq/interloq/pkg/audio"
)

// Container and MIME tags for the linear-PCM output of the trimmer.
const (
	ContainerWAV = "wav"
	MIMEWAV      = "audio/wav"
)

const (
	wavHeaderSize    = 44
	wavFmtChunkSize  = 16
	wavFormatPCM     = 1
	wavBitsPerSample = 16
)

// EncodeWAV packs normalized mono/interleaved samples into a self-describing
// 16-bit linear-PCM RIFF container. Sample rate, channel count, and bit depth
// travel in the header, making the payload codec-independent.
func EncodeWAV(samples []float64, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("wav: invalid channel count %d", channels)
	}

	pcm := audio.EncodePCM16(samples)
	out := make([]byte, wavHeaderSize+len(pcm))

	byteRate := sampleRate * channels * wavBitsPerSample / 8
	blockAlign := channels * wavBitsPerSample / 8

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], wavFmtChunkSize)
	binary.LittleEndian.PutUint16(out[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], wavBitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)

	return out, nil
}

// DecodeWAV unpacks a 16-bit linear-PCM RIFF container produced by
// [EncodeWAV] (or any plain PCM WAV with the fmt chunk first).
func DecodeWAV(data []byte) (samples []float64, sampleRate, channels int, err error) {
	if len(data) < wavHeaderSize {
		return nil, 0, 0, fmt.Errorf("wav: %d bytes is too short for a header", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("wav: missing RIFF/WAVE magic")
	}
	if string(data[12:16]) != "fmt " {
		return nil, 0, 0, fmt.Errorf("wav: fmt chunk not first")
	}
	if format := binary.LittleEndian.Uint16(data[20:22]); format != wavFormatPCM {
		return nil, 0, 0, fmt.Errorf("wav: unsupported format %d, want PCM", format)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != wavBitsPerSample {
		return nil, 0, 0, fmt.Errorf("wav: unsupported bit depth %d, want 16", bits)
	}

	channels = int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate = int(binary.LittleEndian.Uint32(data[24:28]))
	if string(data[36:40]) != "data" {
		return nil, 0, 0, fmt.Errorf("wav: data chunk not found")
	}
	size := int(binary.LittleEndian.Uint32(data[40:44]))
	if size > len(data)-wavHeaderSize {
		size = len(data) - wavHeaderSize
	}

	return audio.DecodePCM16(data[wavHeaderSize : wavHeaderSize+size]), sampleRate, channels, nil
}
