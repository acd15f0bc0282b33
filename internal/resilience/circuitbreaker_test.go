package resilience

import (
	"errors"
	"testing"
	"time"
)

// testClock is a manually advanced time source.
type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *testClock) {
	clock := &testClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	b := NewBreaker(BreakerConfig{Name: "test", Threshold: threshold, Cooldown: cooldown})
	b.now = clock.now
	return b, clock
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("Allow() before threshold, call %d: %v", i, err)
		}
		b.Record(true, true)
	}

	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Errorf("Allow() after %d failures = %v, want ErrOpen", 3, err)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		_ = b.Allow()
		b.Record(true, true)
	}
	_ = b.Allow()
	b.Record(false, false)
	for i := 0; i < 2; i++ {
		_ = b.Allow()
		b.Record(true, true)
	}

	// Two failures, success, two failures: never three in a row.
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() = %v, want nil (failure streak was broken)", err)
	}
}

func TestBreaker_UncountedFailuresIgnored(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)

	for i := 0; i < 10; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("Allow() call %d: %v", i, err)
		}
		b.Record(true, false)
	}

	if err := b.Allow(); err != nil {
		t.Errorf("Allow() = %v, want nil after only uncounted failures", err)
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)

	_ = b.Allow()
	b.Record(true, true) // opens

	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("Allow() during cooldown = %v, want ErrOpen", err)
	}

	clock.advance(time.Minute)

	// Exactly one probe is admitted.
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after cooldown = %v, want probe admitted", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Errorf("Allow() second probe = %v, want ErrOpen while first in flight", err)
	}

	// Successful probe closes the breaker.
	b.Record(false, false)
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() after successful probe = %v, want nil", err)
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)

	_ = b.Allow()
	b.Record(true, true)
	clock.advance(time.Minute)

	_ = b.Allow()
	b.Record(true, true) // probe fails, re-opens

	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Errorf("Allow() after failed probe = %v, want ErrOpen", err)
	}

	// A fresh cooldown applies from the failed probe.
	clock.advance(time.Minute)
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() after second cooldown = %v, want probe admitted", err)
	}
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(1, time.Hour)

	_ = b.Allow()
	b.Record(true, true)
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("Allow() = %v, want ErrOpen before reset", err)
	}

	b.Reset()
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() after Reset = %v, want nil", err)
	}
}
