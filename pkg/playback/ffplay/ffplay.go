// Package ffplay implements playback.Sink on top of an ffplay subprocess fed
// through stdin. It needs no cgo and works wherever ffplay does.
package ffplay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/interloq/interloq/pkg/playback"
)

// Compile-time check that *Sink satisfies [playback.Sink].
var _ playback.Sink = (*Sink)(nil)

// Sink spawns one ffplay process per clip.
type Sink struct {
	command string
}

// New creates a Sink using the given ffplay executable. Empty means "ffplay"
// resolved through PATH.
func New(command string) *Sink {
	if command == "" {
		command = "ffplay"
	}
	return &Sink{command: command}
}

// Play implements playback.Sink. The clip is written to ffplay's stdin and
// the call blocks until the process exits with -autoexit.
func (s *Sink) Play(ctx context.Context, data []byte, mime string) error {
	if len(data) == 0 {
		return fmt.Errorf("ffplay: empty clip")
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nodisp",
		"-autoexit",
		"-i", "-",
	}

	cmd := exec.CommandContext(ctx, s.command, args...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return fmt.Errorf("ffplay: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return fmt.Errorf("ffplay: %w", err)
	}
	return nil
}
