// Package history implements an optional, append-only Postgres sink for
// run observability: one row per PR per reconciliation pass, recording
// its state/priority/head_sha at that moment. It is never read back by
// the reconciler — pipeline position is always re-derived from the
// hosting platform on every run. This is a one-way audit log, not a
// cache.
package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sink writes run-history rows to Postgres.
type Sink struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and ensures the run_history table exists.
func Open(ctx context.Context, dsn string) (*Sink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: connecting: %w", err)
	}
	s := &Sink{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS run_history (
			id          BIGSERIAL PRIMARY KEY,
			observed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			repo        TEXT NOT NULL,
			pull_num    INT NOT NULL,
			state       TEXT NOT NULL,
			head_sha    TEXT NOT NULL,
			priority    INT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("history: migrating: %w", err)
	}
	return nil
}

// Record appends one observation row. Implements reconcile.HistorySink.
func (s *Sink) Record(ctx context.Context, repo string, num int, state, headSHA string, priority int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_history (repo, pull_num, state, head_sha, priority) VALUES ($1, $2, $3, $4, $5)`,
		repo, num, state, headSHA, priority,
	)
	if err != nil {
		return fmt.Errorf("history: inserting row for pr #%d: %w", num, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Sink) Close() {
	s.pool.Close()
}
