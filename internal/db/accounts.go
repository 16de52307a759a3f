package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// LookupAccountsByNumber returns existing accounts keyed by account number.
func (s *Store) LookupAccountsByNumber(ctx context.Context, numbers []string) (map[string]Account, error) {
	out := make(map[string]Account, len(numbers))
	if len(numbers) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, client_id, account_number, type, category, sponsor_code, status, opened_at
		 FROM accounts WHERE account_number = ANY($1)`, numbers)
	if err != nil {
		return nil, fmt.Errorf("db: lookup accounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.ClientID, &a.AccountNumber, &a.Type, &a.Category, &a.SponsorCode, &a.Status, &a.OpenedAt); err != nil {
			return nil, fmt.Errorf("db: scan account: %w", err)
		}
		out[a.AccountNumber] = a
	}
	return out, rows.Err()
}

// CreateAccount inserts a new account, tolerating a concurrent create of the
// same account number.
func (s *Store) CreateAccount(ctx context.Context, a Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, client_id, account_number, type, category, sponsor_code, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (account_number) DO NOTHING`,
		a.ID, a.ClientID, a.AccountNumber, a.Type, a.Category, a.SponsorCode, a.Status)
	if err != nil {
		return fmt.Errorf("db: create account: %w", err)
	}
	return nil
}
