package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/money"
)

// LookupFunds returns every fund keyed by fund code. The set of funds is
// closed (AllFundCodes) and is seeded once at deployment time, so this is a
// small, cacheable read.
func (s *Store) LookupFunds(ctx context.Context) (map[FundCode]Fund, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, fund_code, name, status FROM funds`)
	if err != nil {
		return nil, fmt.Errorf("db: lookup funds: %w", err)
	}
	defer rows.Close()
	out := make(map[FundCode]Fund)
	for rows.Next() {
		var f Fund
		if err := rows.Scan(&f.ID, &f.FundCode, &f.Name, &f.Status); err != nil {
			return nil, fmt.Errorf("db: scan fund: %w", err)
		}
		out[f.FundCode] = f
	}
	return out, rows.Err()
}

// LatestFundPrice returns the most recent price on or before asOf, used by
// the price provider's default fixed-price implementation (§9).
func (s *Store) LatestFundPrice(ctx context.Context, fundID uuid.UUID, asOf time.Time) (FundPrice, error) {
	var p FundPrice
	row := s.pool.QueryRow(ctx,
		`SELECT fund_id, price_date, bid, mid, offer FROM fund_prices
		 WHERE fund_id = $1 AND price_date <= $2 ORDER BY price_date DESC LIMIT 1`,
		fundID, asOf)
	var bid, mid, offer string
	if err := row.Scan(&p.FundID, &p.PriceDate, &bid, &mid, &offer); err != nil {
		return FundPrice{}, fmt.Errorf("db: latest fund price: %w", err)
	}
	var err error
	if p.Bid, err = money.NewAmount(bid); err != nil {
		return FundPrice{}, fmt.Errorf("db: decode bid: %w", err)
	}
	if p.Mid, err = money.NewAmount(mid); err != nil {
		return FundPrice{}, fmt.Errorf("db: decode mid: %w", err)
	}
	if p.Offer, err = money.NewAmount(offer); err != nil {
		return FundPrice{}, fmt.Errorf("db: decode offer: %w", err)
	}
	return p, nil
}
