package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var fundTransactionColumns = []string{
	"id", "fund_transaction_id", "goal_transaction_code", "transaction_id", "source",
	"client_id", "account_id", "goal_id", "fund_id", "upload_batch_id",
	"transaction_date", "date_created", "type", "amount", "units",
	"bid", "mid", "offer", "price_date", "row_number",
}

// InsertFundTransactions bulk-inserts rows via the COPY protocol, chunked to
// chunkSize rows per round trip (spec.md §4.G default 500). Chunks are
// copied one after another on the calling goroutine, one CopyFrom per
// chunk.
//
// Rows whose (upload_batch_id, row_number) already exists are silently
// skipped (idempotent re-run after a worker crash): CopyFrom itself does
// not support ON CONFLICT, so duplicates are filtered by the caller via
// ExistingRowNumbers before this is called.
func (s *Store) InsertFundTransactions(ctx context.Context, rows []FundTransaction, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	var total int64
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		n, err := s.pool.CopyFrom(ctx,
			pgx.Identifier{"fund_transactions"},
			fundTransactionColumns,
			pgx.CopyFromSlice(end-start, func(i int) ([]interface{}, error) {
				r := rows[start+i]
				return []interface{}{
					r.ID, r.FundTransactionID, r.GoalTransactionCode, r.TransactionID, r.Source,
					r.ClientID, r.AccountID, r.GoalID, r.FundID, r.UploadBatchID,
					r.TransactionDate, r.DateCreated, r.Type, r.Amount.Decimal(), r.Units.Decimal(),
					r.Bid.Decimal(), r.Mid.Decimal(), r.Offer.Decimal(), r.PriceDate, r.RowNumber,
				}, nil
			}),
		)
		if err != nil {
			return total, fmt.Errorf("db: copy fund_transactions chunk [%d,%d): %w", start, end, err)
		}
		total += n
	}
	return total, nil
}

// ExistingRowNumbers returns the row numbers already persisted for a batch,
// so the writer can skip them on a retried write (idempotent resume per
// spec.md §4.G).
func (s *Store) ExistingRowNumbers(ctx context.Context, uploadBatchID uuid.UUID) (map[int]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT row_number FROM fund_transactions WHERE upload_batch_id = $1`, uploadBatchID)
	if err != nil {
		return nil, fmt.Errorf("db: existing row numbers: %w", err)
	}
	defer rows.Close()
	out := make(map[int]bool)
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("db: scan row number: %w", err)
		}
		out[n] = true
	}
	return out, rows.Err()
}

// InsertInvalidFundTransactions bulk-inserts the rejected-row audit trail
// (§4.C/§4.G).
func (s *Store) InsertInvalidFundTransactions(ctx context.Context, rows []InvalidFundTransaction) (int64, error) {
	return s.pool.CopyFrom(ctx,
		pgx.Identifier{"invalid_fund_transactions"},
		[]string{"id", "upload_batch_id", "row_number", "raw_data", "errors"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]interface{}, error) {
			r := rows[i]
			rawJSON, err := json.Marshal(r.RawData)
			if err != nil {
				return nil, fmt.Errorf("db: encode raw_data: %w", err)
			}
			errJSON, err := json.Marshal(r.Errors)
			if err != nil {
				return nil, fmt.Errorf("db: encode errors: %w", err)
			}
			return []interface{}{r.ID, r.UploadBatchID, r.RowNumber, rawJSON, errJSON}, nil
		}),
	)
}
