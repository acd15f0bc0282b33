package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time assertion that MemoryService satisfies Service.
var _ Service = (*MemoryService)(nil)

// DefaultTTL is the session lifetime used when none is configured.
const DefaultTTL = 30 * time.Minute

// MemoryService is an in-memory Service. Sessions live for a fixed TTL from
// their last touch; expired entries are pruned lazily on access.
type MemoryService struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]Session
}

// MemoryOption is a functional option for MemoryService.
type MemoryOption func(*MemoryService)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryService) { s.now = now }
}

// NewMemoryService creates an in-memory session service. A non-positive ttl
// falls back to [DefaultTTL].
func NewMemoryService(ttl time.Duration, opts ...MemoryOption) *MemoryService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryService{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open implements Service.
func (s *MemoryService) Open(_ context.Context, p Params) (Session, error) {
	now := s.now()
	sess := Session{
		ID:         uuid.NewString(),
		SourceLang: p.SourceLang,
		TargetLang: p.TargetLang,
		Premium:    p.Premium,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}

	s.mu.Lock()
	s.prune(now)
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess, nil
}

// Get implements Service.
func (s *MemoryService) Get(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Touch implements Service.
func (s *MemoryService) Touch(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	sess.ExpiresAt = s.now().Add(s.ttl)
	s.sessions[id] = sess
	return sess, nil
}

// Close implements Service.
func (s *MemoryService) Close(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// prune drops expired sessions. Caller holds mu.
func (s *MemoryService) prune(now time.Time) {
	for id, sess := range s.sessions {
		if !sess.Live(now) {
			delete(s.sessions, id)
		}
	}
}
