package db

import (
	"context"
	"fmt"
)

// Migrate applies Schema. It is idempotent (every statement is IF NOT
// EXISTS) so it is safe to call on every process start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}
