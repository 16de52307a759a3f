package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// LookupClientsByName returns the existing clients keyed by name, for the
// subset of names present in the slice. Callers treat a missing key as
// "this client does not exist yet" (§4.E new-entity detection).
func (s *Store) LookupClientsByName(ctx context.Context, names []string) (map[string]Client, error) {
	out := make(map[string]Client, len(names))
	if len(names) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, name, status FROM clients WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("db: lookup clients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Status); err != nil {
			return nil, fmt.Errorf("db: scan client: %w", err)
		}
		out[c.Name] = c
	}
	return out, rows.Err()
}

// CreateClient inserts a new client, tolerating a concurrent insert of the
// same name (ON CONFLICT DO NOTHING), mirroring the idempotent-create
// pattern the approval-gated entity creator needs (§4.F).
func (s *Store) CreateClient(ctx context.Context, c Client) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO clients (id, name, status) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
		c.ID, c.Name, c.Status)
	if err != nil {
		return fmt.Errorf("db: create client: %w", err)
	}
	return nil
}
