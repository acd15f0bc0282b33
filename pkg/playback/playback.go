// Package playback defines the audio output contract. A Sink plays one
// encoded clip at a time and blocks until it finishes.
package playback

import "context"

// Sink plays encoded audio on the local output device.
type Sink interface {
	// Play renders one clip and blocks until playback completes or ctx is
	// cancelled. Cancellation stops playback immediately and returns
	// ctx.Err(); it is not a playback failure.
	Play(ctx context.Context, data []byte, mime string) error
}
