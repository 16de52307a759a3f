package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store wraps a pgxpool.Pool and exposes the repository methods used by the
// ingest, batch, aggregate and matcher packages. Grounded on the pool-plus-
// CopyFrom shape of the reference Postgres bulk loader.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// Open creates the pool and verifies connectivity with a Ping, the same
// fail-fast-on-startup behavior the reference loader uses before touching
// any table.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("db: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Pool exposes the underlying pool for callers (e.g. the batch manager) that
// need to run a hand-managed transaction spanning several repository calls.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }
