// Package ffmpeg implements capture.Device on top of an ffmpeg subprocess
// reading the platform audio input and emitting raw little-endian PCM on
// stdout. It needs no cgo and works wherever ffmpeg does.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/interloq/interloq/pkg/audio"
	"github.com/interloq/interloq/pkg/capture"
)

// Compile-time check that *Device satisfies [capture.Device].
var _ capture.Device = (*Device)(nil)

// startupGrace is how long a freshly spawned ffmpeg gets to prove it did not
// exit immediately (missing device, permission denied).
const startupGrace = 250 * time.Millisecond

// Device spawns one ffmpeg process per capture stream.
type Device struct {
	command string
}

// New creates a Device using the given ffmpeg executable. Empty means
// "ffmpeg" resolved through PATH.
func New(command string) *Device {
	if command == "" {
		command = "ffmpeg"
	}
	return &Device{command: command}
}

// Start implements capture.Device.
func (d *Device) Start(ctx context.Context, cfg capture.Config) (capture.Stream, error) {
	cfg = cfg.WithDefaults()
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, d.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %v", capture.ErrUnavailable, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// An immediate exit means the device could not be opened.
	select {
	case err := <-waitErr:
		detail := strings.TrimSpace(stderr.String())
		if err == nil {
			err = errors.New("ffmpeg exited before capture started")
		}
		return nil, fmt.Errorf("ffmpeg: %w: %v: %s", capture.ErrUnavailable, err, detail)
	case <-time.After(startupGrace):
	}

	s := &stream{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		frames:  make(chan audio.Frame, 8),
	}
	go s.pump(cfg)
	return s, nil
}

// stream is one live ffmpeg capture session.
type stream struct {
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	process *os.Process
	waitErr <-chan error

	frames chan audio.Frame

	stopOnce sync.Once
	stopErr  error
}

// pump reads fixed-size PCM chunks from ffmpeg and delivers them as frames.
// It closes the frames channel when the process stops producing output.
func (s *stream) pump(cfg capture.Config) {
	defer close(s.frames)

	frameBytes := cfg.FrameSize * cfg.Channels * 2
	var elapsed time.Duration
	frameDur := audio.Duration(cfg.FrameSize, cfg.SampleRate)

	for {
		buf := make([]byte, frameBytes)
		n, err := io.ReadFull(s.stdout, buf)
		if n > 0 {
			s.frames <- audio.Frame{
				Data:       buf[:n],
				SampleRate: cfg.SampleRate,
				Channels:   cfg.Channels,
				Timestamp:  elapsed,
			}
			elapsed += frameDur
		}
		if err != nil {
			return
		}
	}
}

// Frames implements capture.Stream.
func (s *stream) Frames() <-chan audio.Frame { return s.frames }

// Stop implements capture.Stream. It interrupts ffmpeg, escalating to a kill
// if the process ignores the signal, and is safe to call repeatedly.
func (s *stream) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeExit(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeExit(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}
		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})
	return s.stopErr
}

// normalizeExit drops the expected non-zero exit ffmpeg reports after an
// interrupt; anything else is a real failure.
func normalizeExit(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
