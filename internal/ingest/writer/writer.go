// Package writer implements the batch writer (§4.G): it resolves foreign
// keys via in-clause lookups, then bulk-inserts fund transactions in
// fixed-size chunks with idempotent skip-duplicates semantics.
package writer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/ingest/parser"
	"github.com/paynet/trustrecon/internal/txcode"
)

// Writer resolves entities and persists validated rows.
type Writer struct {
	store     *db.Store
	chunkSize int
}

func New(store *db.Store, chunkSize int) *Writer {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	return &Writer{store: store, chunkSize: chunkSize}
}

// Result summarizes one Write call.
type Result struct {
	Inserted int64
	Skipped  int
}

// Write resolves FKs for every row, builds FundTransaction records, and
// bulk-inserts them. Rows whose (uploadBatchId, rowNumber) is already
// present are skipped rather than re-inserted (idempotent resume after a
// worker crash). Because "an upload is rejected atomically if any row was
// invalid" is enforced upstream by the validator, every row reaching this
// function is expected to resolve; a resolution failure here is therefore
// surfaced as a hard error rather than a skip.
func (w *Writer) Write(ctx context.Context, uploadBatchID uuid.UUID, rows []parser.FundRow) (Result, error) {
	clientNames := make([]string, 0, len(rows))
	accountNumbers := make([]string, 0, len(rows))
	goalNumbers := make([]string, 0, len(rows))
	seenClient, seenAccount, seenGoal := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, r := range rows {
		if !seenClient[r.ClientName] {
			seenClient[r.ClientName] = true
			clientNames = append(clientNames, r.ClientName)
		}
		if !seenAccount[r.AccountNumber] {
			seenAccount[r.AccountNumber] = true
			accountNumbers = append(accountNumbers, r.AccountNumber)
		}
		if !seenGoal[r.GoalNumber] {
			seenGoal[r.GoalNumber] = true
			goalNumbers = append(goalNumbers, r.GoalNumber)
		}
	}

	clients, err := w.store.LookupClientsByName(ctx, clientNames)
	if err != nil {
		return Result{}, fmt.Errorf("writer: lookup clients: %w", err)
	}
	accounts, err := w.store.LookupAccountsByNumber(ctx, accountNumbers)
	if err != nil {
		return Result{}, fmt.Errorf("writer: lookup accounts: %w", err)
	}
	goals, err := w.store.LookupGoalsByNumber(ctx, goalNumbers)
	if err != nil {
		return Result{}, fmt.Errorf("writer: lookup goals: %w", err)
	}
	funds, err := w.store.LookupFunds(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("writer: lookup funds: %w", err)
	}

	existing, err := w.store.ExistingRowNumbers(ctx, uploadBatchID)
	if err != nil {
		return Result{}, fmt.Errorf("writer: existing row numbers: %w", err)
	}

	txs := make([]db.FundTransaction, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		if existing[r.RowNumber] {
			skipped++
			continue
		}
		client, ok := clients[r.ClientName]
		if !ok {
			return Result{}, fmt.Errorf("writer: row %d: client %q not resolved", r.RowNumber, r.ClientName)
		}
		account, ok := accounts[r.AccountNumber]
		if !ok {
			return Result{}, fmt.Errorf("writer: row %d: account %q not resolved", r.RowNumber, r.AccountNumber)
		}
		goal, ok := goals[r.GoalNumber]
		if !ok {
			return Result{}, fmt.Errorf("writer: row %d: goal %q not resolved", r.RowNumber, r.GoalNumber)
		}
		fund, ok := funds[db.FundCode(r.FundCode)]
		if !ok {
			return Result{}, fmt.Errorf("writer: row %d: fund %q not resolved", r.RowNumber, r.FundCode)
		}

		code, err := txcode.Generate(r.TransactionDate, r.AccountNumber, r.GoalNumber)
		if err != nil {
			return Result{}, fmt.Errorf("writer: row %d: %w", r.RowNumber, err)
		}

		txs = append(txs, db.FundTransaction{
			ID:                  uuid.New(),
			FundTransactionID:   fmt.Sprintf("%s-%d", uploadBatchID, r.RowNumber),
			GoalTransactionCode: code,
			TransactionID:       r.TransactionID,
			Source:              r.Source,
			ClientID:            client.ID,
			AccountID:           account.ID,
			GoalID:              goal.ID,
			FundID:              fund.ID,
			UploadBatchID:       uploadBatchID,
			TransactionDate:     r.TransactionDate,
			DateCreated:         r.DateCreated,
			Type:                db.TransactionType(r.TransactionType),
			Amount:              r.Amount,
			Units:               r.Units,
			Bid:                 r.Bid,
			Mid:                 r.Mid,
			Offer:               r.Offer,
			PriceDate:           r.TransactionDate,
			RowNumber:           r.RowNumber,
		})
	}

	inserted, err := w.store.InsertFundTransactions(ctx, txs, w.chunkSize)
	if err != nil {
		return Result{Inserted: inserted, Skipped: skipped}, fmt.Errorf("writer: insert chunk: %w", err)
	}
	return Result{Inserted: inserted, Skipped: skipped}, nil
}

// WriteInvalid persists the rejected-row audit trail for a batch.
func (w *Writer) WriteInvalid(ctx context.Context, uploadBatchID uuid.UUID, rows []parser.FundRow, errsByRow map[int][]db.RowError) (int64, error) {
	invalid := make([]db.InvalidFundTransaction, 0, len(errsByRow))
	byRow := make(map[int]parser.FundRow, len(rows))
	for _, r := range rows {
		byRow[r.RowNumber] = r
	}
	for rowNumber, errs := range errsByRow {
		raw := map[string]string{}
		if r, ok := byRow[rowNumber]; ok {
			raw = rawFields(r)
		}
		invalid = append(invalid, db.InvalidFundTransaction{
			ID:            uuid.New(),
			UploadBatchID: uploadBatchID,
			RowNumber:     rowNumber,
			RawData:       raw,
			Errors:        errs,
		})
	}
	return w.store.InsertInvalidFundTransactions(ctx, invalid)
}

func rawFields(r parser.FundRow) map[string]string {
	return map[string]string{
		"transactionDate": r.TransactionDate.Format("2006-01-02"),
		"clientName":      r.ClientName,
		"fundCode":        r.FundCode,
		"amount":          r.Amount.String(),
		"units":           r.Units.String(),
		"transactionType": r.TransactionType,
		"goalNumber":      r.GoalNumber,
		"accountNumber":   r.AccountNumber,
		"transactionId":   r.TransactionID,
		"source":          r.Source,
	}
}
