package history_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/interloq/interloq/internal/history"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if INTERLOQ_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("INTERLOQ_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INTERLOQ_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh store over a clean exchanges table.
func newTestStore(t *testing.T) *history.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS exchanges`); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	store, err := history.New(ctx, dsn)
	if err != nil {
		t.Fatalf("history.New: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
	for i, text := range []string{"hello", "how are you", "goodbye"} {
		err := store.Record(ctx, history.Exchange{
			SessionID:      "s1",
			CycleID:        "c" + string(rune('1'+i)),
			RecognizedText: text,
			RecognizedLang: "en",
			TranslatedText: text + " (es)",
			TranslatedLang: "es",
			Provider:       "gemini",
			AudioSeconds:   1.5,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := store.Record(ctx, history.Exchange{SessionID: "other", RecognizedText: "x"}); err != nil {
		t.Fatalf("Record other session: %v", err)
	}

	got, err := store.Recent(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d exchanges, want 2", len(got))
	}
	if got[0].RecognizedText != "goodbye" || got[1].RecognizedText != "how are you" {
		t.Errorf("Recent order = [%q, %q], want newest first", got[0].RecognizedText, got[1].RecognizedText)
	}
	if got[0].TranslatedLang != "es" || got[0].Provider != "gemini" {
		t.Errorf("Recent row = %+v, want fields preserved", got[0])
	}
}

func TestStore_RecentEmptySession(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Recent(context.Background(), "missing", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Recent returned %d exchanges for unknown session, want 0", len(got))
	}
}

func TestStore_RecordDefaultsTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, history.Exchange{SessionID: "s2", CycleID: "c1"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := store.Recent(ctx, "s2", 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Recent returned %d exchanges, want 1", len(got))
	}
	if time.Since(got[0].CreatedAt) > time.Minute {
		t.Errorf("CreatedAt = %v, want defaulted to roughly now", got[0].CreatedAt)
	}
}
