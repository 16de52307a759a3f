// Package bank drives the bank-statement feed through its own, shorter
// pipeline (§4.K): parse, validate the sum-to-total invariant, best-effort
// link each row to an existing goal, and persist. Unlike the fund-feed
// pipeline there is no new-entity detection step — a bank row that can't
// be linked to a goal is recorded as missing_in_fund rather than pausing
// the batch for operator approval, since the bank feed never creates
// clients, accounts, or goals itself.
package bank

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/ingest/parser"
	"github.com/paynet/trustrecon/internal/ingest/validate"
	"github.com/paynet/trustrecon/internal/money"
	"go.uber.org/zap"
)

// Processor implements jobs.BankProcessor: it is wired into the job
// worker via Pipeline.SetBankProcessor so the process-bank-upload task
// type has a concrete handler without internal/jobs importing this
// package directly.
type Processor struct {
	store     *db.Store
	validator *validate.BankRowValidator
	log       *zap.Logger
}

func NewProcessor(store *db.Store, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{store: store, validator: validate.NewBankRowValidator(), log: log}
}

// ProcessBankUpload parses, validates, links, and persists one bank-feed
// batch's rows.
func (p *Processor) ProcessBankUpload(ctx context.Context, batchID uuid.UUID) error {
	b, err := p.store.GetBankUploadBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("bank: load batch: %w", err)
	}

	if err := p.store.UpdateBankStatus(ctx, batchID, db.StatusParsing); err != nil {
		return fmt.Errorf("bank: transition to parsing: %w", err)
	}

	rows, parseErrs, err := p.parseBankFile(ctx, b.FilePath)
	if err != nil {
		p.failBatch(ctx, batchID, err)
		return err
	}

	if err := p.store.UpdateBankStatus(ctx, batchID, db.StatusValidating); err != nil {
		return fmt.Errorf("bank: transition to validating: %w", err)
	}

	valid, errsByRow := p.validateRows(rows)
	for rowNumber, errs := range parseErrs {
		errsByRow[rowNumber] = append(errsByRow[rowNumber], errs...)
	}
	status := db.ValidationPassed
	if len(errsByRow) > 0 {
		status = db.ValidationFailed
	}
	if err := p.store.SetBankValidationResult(ctx, batchID, status, flattenRowErrors(errsByRow), nil); err != nil {
		return fmt.Errorf("bank: set validation result: %w", err)
	}

	if len(valid) == 0 {
		if err := p.store.UpdateBankStatus(ctx, batchID, db.StatusFailed); err != nil {
			return fmt.Errorf("bank: transition to failed: %w", err)
		}
		return nil
	}

	if err := p.store.UpdateBankStatus(ctx, batchID, db.StatusProcessing); err != nil {
		return fmt.Errorf("bank: transition to processing: %w", err)
	}

	goalNumbers := make([]string, 0, len(valid))
	seen := make(map[string]bool)
	for _, r := range valid {
		if !seen[r.GoalNumber] {
			seen[r.GoalNumber] = true
			goalNumbers = append(goalNumbers, r.GoalNumber)
		}
	}
	goals, err := p.store.LookupGoalsByNumber(ctx, goalNumbers)
	if err != nil {
		return fmt.Errorf("bank: lookup goals: %w", err)
	}

	txs := make([]db.BankGoalTransaction, 0, len(valid))
	total := money.ZeroAmount
	for _, r := range valid {
		txs = append(txs, toBankGoalTransaction(batchID, r, goals))
		total = total.Add(r.TotalAmount)
	}

	written, err := p.store.InsertBankGoalTransactions(ctx, txs)
	if err != nil {
		p.failBatch(ctx, batchID, err)
		return err
	}

	if err := p.store.RecordBankProgress(ctx, batchID, len(rows), int(written), len(rows)-int(written), total.String()); err != nil {
		p.log.Warn("record bank progress failed", zap.Error(err))
	}

	return p.store.UpdateBankStatus(ctx, batchID, db.StatusCompleted)
}

func (p *Processor) failBatch(ctx context.Context, batchID uuid.UUID, cause error) {
	p.log.Error("bank batch failed", zap.String("batchId", batchID.String()), zap.Error(cause))
	if err := p.store.UpdateBankStatus(ctx, batchID, db.StatusFailed); err != nil {
		p.log.Error("failed to mark bank batch failed", zap.Error(err))
	}
}

// parseBankFile dispatches to the CSV or Excel streaming parser by
// extension, the bank-feed counterpart of the fund pipeline's
// parseFundFile.
func (p *Processor) parseBankFile(ctx context.Context, path string) ([]parser.BankRow, map[int][]db.RowError, error) {
	var results <-chan parser.BankResult
	var err error
	if strings.ToLower(filepath.Ext(path)) == ".xlsx" {
		results, err = parser.ParseBankExcel(ctx, path)
	} else {
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, nil, fmt.Errorf("bank: open %s: %w", path, openErr)
		}
		defer f.Close()
		results, err = parser.ParseBankCSV(ctx, f)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("bank: parse %s: %w", path, err)
	}

	var rows []parser.BankRow
	errsByRow := make(map[int][]db.RowError)
	for res := range results {
		if res.Err != nil {
			errsByRow[res.Err.RowNumber] = append(errsByRow[res.Err.RowNumber], db.RowError{
				RowNumber: res.Err.RowNumber, ErrorCode: "malformed_row", Severity: validate.SeverityCritical, Message: res.Err.Message,
			})
			continue
		}
		rows = append(rows, res.Row)
	}
	return rows, errsByRow, nil
}

func (p *Processor) validateRows(rows []parser.BankRow) (valid []parser.BankRow, errsByRow map[int][]db.RowError) {
	errsByRow = make(map[int][]db.RowError)
	for _, r := range rows {
		errs := p.validator.Validate(r)
		if len(errs) == 0 {
			valid = append(valid, r)
			continue
		}
		hasCritical := false
		for _, e := range errs {
			errsByRow[r.RowNumber] = append(errsByRow[r.RowNumber], e)
			if e.Severity == validate.SeverityCritical {
				hasCritical = true
			}
		}
		if !hasCritical {
			valid = append(valid, r)
		}
	}
	return valid, errsByRow
}

func flattenRowErrors(byRow map[int][]db.RowError) []db.RowError {
	var out []db.RowError
	for _, errs := range byRow {
		out = append(out, errs...)
	}
	return out
}

// toBankGoalTransaction builds the persisted row for one bank-feed record,
// linking it to an existing goal when one matches and otherwise marking it
// missing_in_fund — the matcher's later passes never see a row it can't
// identify by account/goal, so that gap has to be visible now rather than
// silently dropped.
func toBankGoalTransaction(batchID uuid.UUID, r parser.BankRow, goals map[string]db.Goal) db.BankGoalTransaction {
	pct := make(map[db.FundCode]float64, len(r.PercentByFund))
	for fc, v := range r.PercentByFund {
		pct[db.FundCode(strings.ToUpper(fc))] = v
	}
	amt := make(map[db.FundCode]money.Amount, len(r.AmountByFund))
	for fc, v := range r.AmountByFund {
		amt[db.FundCode(strings.ToUpper(fc))] = v
	}

	tx := db.BankGoalTransaction{
		UploadBatchID:   batchID,
		GoalNumber:      r.GoalNumber,
		AccountNumber:   r.AccountNumber,
		ClientName:      strings.TrimSpace(r.FirstName + " " + r.LastName),
		TransactionDate: r.TransactionDate,
		TotalAmount:     r.TotalAmount,
		PerFundPercent:  pct,
		PerFundAmount:   amt,
		Type:            db.BankTransactionType(r.TransactionType),
		TransactionID:   r.TransactionID,
		RowNumber:       r.RowNumber,
	}

	if g, ok := goals[r.GoalNumber]; ok {
		id := g.ID
		tx.GoalID = &id
		tx.ReconciliationStatus = db.ReconPending
	} else {
		tx.ReconciliationStatus = db.ReconMissingInFund
	}
	return tx
}
