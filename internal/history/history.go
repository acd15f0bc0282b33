// Package history persists completed translation exchanges to PostgreSQL.
//
// The store is optional: the engine runs fine without one, and write failures
// are reported to the caller who logs and moves on. A lost history row never
// interrupts a live conversation.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Exchange is one completed utterance: what was heard and what was said back.
type Exchange struct {
	SessionID      string
	CycleID        string
	RecognizedText string
	RecognizedLang string
	TranslatedText string
	TranslatedLang string
	Provider       string
	AudioSeconds   float64
	CreatedAt      time.Time
}

// Store writes and reads exchanges. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

const ddlExchanges = `
CREATE TABLE IF NOT EXISTS exchanges (
    id              BIGSERIAL   PRIMARY KEY,
    session_id      TEXT        NOT NULL,
    cycle_id        TEXT        NOT NULL,
    recognized_text TEXT        NOT NULL,
    recognized_lang TEXT        NOT NULL,
    translated_text TEXT        NOT NULL,
    translated_lang TEXT        NOT NULL,
    provider        TEXT        NOT NULL DEFAULT '',
    audio_seconds   DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS exchanges_session_created_idx
    ON exchanges (session_id, created_at);`

// New connects to PostgreSQL at dsn and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlExchanges); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Record appends one exchange. A zero CreatedAt defaults to the current time.
func (s *Store) Record(ctx context.Context, ex Exchange) error {
	const q = `
		INSERT INTO exchanges
		    (session_id, cycle_id, recognized_text, recognized_lang,
		     translated_text, translated_lang, provider, audio_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	createdAt := ex.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, q,
		ex.SessionID,
		ex.CycleID,
		ex.RecognizedText,
		ex.RecognizedLang,
		ex.TranslatedText,
		ex.TranslatedLang,
		ex.Provider,
		ex.AudioSeconds,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Recent returns the latest exchanges for a session, newest first.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT session_id, cycle_id, recognized_text, recognized_lang,
		       translated_text, translated_lang, provider, audio_seconds, created_at
		FROM   exchanges
		WHERE  session_id = $1
		ORDER  BY created_at DESC, id DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	exchanges, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Exchange, error) {
		var e Exchange
		err := row.Scan(
			&e.SessionID,
			&e.CycleID,
			&e.RecognizedText,
			&e.RecognizedLang,
			&e.TranslatedText,
			&e.TranslatedLang,
			&e.Provider,
			&e.AudioSeconds,
			&e.CreatedAt,
		)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("history: scan: %w", err)
	}
	return exchanges, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
