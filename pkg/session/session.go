// Package session tracks conversation sessions and their lifetimes. A session
// is the unit the orchestrator binds recording cycles and history to; expired
// sessions refuse new cycles.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session ID is unknown or already pruned.
var ErrNotFound = errors.New("session: not found")

// Session is one live conversation.
type Session struct {
	// ID uniquely identifies the session.
	ID string

	// SourceLang and TargetLang are the two conversation languages.
	SourceLang string
	TargetLang string

	// Premium marks the session for the higher-quality translation tier.
	Premium bool

	// CreatedAt and ExpiresAt bound the session's lifetime.
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Live reports whether the session is still valid at the given instant.
func (s Session) Live(now time.Time) bool {
	return s.ID != "" && now.Before(s.ExpiresAt)
}

// Params carries the caller-chosen attributes of a new session.
type Params struct {
	SourceLang string
	TargetLang string
	Premium    bool
}

// Service manages session lifecycles.
// Implementations must be safe for concurrent use.
type Service interface {
	// Open creates a fresh session.
	Open(ctx context.Context, p Params) (Session, error)

	// Get looks up a session by ID. Expired sessions still resolve until
	// pruned; callers decide liveness via [Session.Live].
	Get(ctx context.Context, id string) (Session, error)

	// Touch extends the session's lifetime by the service's TTL, marking
	// activity. Returns ErrNotFound for unknown IDs.
	Touch(ctx context.Context, id string) (Session, error)

	// Close removes the session. Closing an unknown ID is a no-op.
	Close(ctx context.Context, id string) error
}
