package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/money"
)

// CreateBankUploadBatch inserts a new bank-feed batch.
func (s *Store) CreateBankUploadBatch(ctx context.Context, b BankUploadBatch) (uuid.UUID, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bank_upload_batches (id, batch_number, file_name, file_size, file_path, processing_status, validation_status, uploaded_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.BatchNumber, b.FileName, b.FileSize, b.FilePath, StatusQueued, ValidationPending, b.UploadedBy)
	if err != nil {
		return uuid.Nil, fmt.Errorf("db: create bank upload batch: %w", err)
	}
	return b.ID, nil
}

func (s *Store) UpdateBankStatus(ctx context.Context, id uuid.UUID, status ProcessingStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE bank_upload_batches SET processing_status = $2 WHERE id = $1`, id, status)
	return err
}

// GetBankUploadBatch loads one bank-feed batch by id, the bank pipeline's
// entry point into its own state (§4.K).
func (s *Store) GetBankUploadBatch(ctx context.Context, id uuid.UUID) (BankUploadBatch, error) {
	var b BankUploadBatch
	var valErrs, valWarns []byte
	var totalAmount string
	err := s.pool.QueryRow(ctx,
		`SELECT id, batch_number, file_name, file_size, file_path, processing_status, validation_status,
		        total_records, processed_records, failed_records, validation_errors, validation_warnings,
		        total_amount, uploaded_by, created_at, processing_started_at, processing_completed_at
		 FROM bank_upload_batches WHERE id = $1`, id).
		Scan(&b.ID, &b.BatchNumber, &b.FileName, &b.FileSize, &b.FilePath, &b.ProcessingStatus, &b.ValidationStatus,
			&b.TotalRecords, &b.ProcessedRecords, &b.FailedRecords, &valErrs, &valWarns,
			&totalAmount, &b.UploadedBy, &b.CreatedAt, &b.ProcessingStartedAt, &b.ProcessingCompletedAt)
	if err != nil {
		return BankUploadBatch{}, fmt.Errorf("db: get bank upload batch: %w", err)
	}
	if err := json.Unmarshal(valErrs, &b.ValidationErrors); err != nil {
		return BankUploadBatch{}, fmt.Errorf("db: decode validation_errors: %w", err)
	}
	if err := json.Unmarshal(valWarns, &b.ValidationWarnings); err != nil {
		return BankUploadBatch{}, fmt.Errorf("db: decode validation_warnings: %w", err)
	}
	if b.TotalAmount, err = parseAmount(totalAmount); err != nil {
		return BankUploadBatch{}, err
	}
	return b, nil
}

// RecordBankProgress updates a bank batch's row counters after a write,
// mirroring RecordProgress for the fund-feed batch.
func (s *Store) RecordBankProgress(ctx context.Context, id uuid.UUID, totalRecords, processedRecords, failedRecords int, totalAmount string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE bank_upload_batches SET total_records = $2, processed_records = $3, failed_records = $4,
		   total_amount = $5, processing_completed_at = now() WHERE id = $1`,
		id, totalRecords, processedRecords, failedRecords, totalAmount)
	if err != nil {
		return fmt.Errorf("db: record bank progress: %w", err)
	}
	return nil
}

// SetBankValidationResult records the bank validator's findings, mirroring
// SetValidationResult for the fund-feed batch.
func (s *Store) SetBankValidationResult(ctx context.Context, id uuid.UUID, status ValidationStatus, errs, warnings []RowError) error {
	errJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("db: encode validation_errors: %w", err)
	}
	warnJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("db: encode validation_warnings: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE bank_upload_batches SET validation_status = $2, validation_errors = $3, validation_warnings = $4 WHERE id = $1`,
		id, status, errJSON, warnJSON)
	if err != nil {
		return fmt.Errorf("db: set bank validation result: %w", err)
	}
	return nil
}

// InsertBankGoalTransactions bulk-inserts the bank feed's rows, one per
// goal/day (already aggregated upstream of the batch schema — §4.K).
func (s *Store) InsertBankGoalTransactions(ctx context.Context, rows []BankGoalTransaction) (int64, error) {
	var total int64
	for _, r := range rows {
		pctJSON, err := json.Marshal(r.PerFundPercent)
		if err != nil {
			return total, fmt.Errorf("db: encode per_fund_percent: %w", err)
		}
		amtJSON, err := marshalFundAmounts(r.PerFundAmount)
		if err != nil {
			return total, err
		}
		id := r.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		status := r.ReconciliationStatus
		if status == "" {
			status = ReconPending
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO bank_goal_transactions
			   (id, upload_batch_id, goal_id, goal_number, account_number, client_name, transaction_date,
			    total_amount, per_fund_percent, per_fund_amount, type, transaction_id, reconciliation_status, row_number)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			 ON CONFLICT (upload_batch_id, row_number) DO NOTHING`,
			id, r.UploadBatchID, r.GoalID, r.GoalNumber, r.AccountNumber, r.ClientName, r.TransactionDate,
			r.TotalAmount.Decimal(), pctJSON, amtJSON, r.Type, r.TransactionID, status, r.RowNumber)
		if err != nil {
			return total, fmt.Errorf("db: insert bank_goal_transaction row %d: %w", r.RowNumber, err)
		}
		total++
	}
	return total, nil
}

// UnmatchedBankGoalTransactions returns bank rows awaiting reconciliation,
// the matcher's input stream for its three passes (§4.L).
func (s *Store) UnmatchedBankGoalTransactions(ctx context.Context, limit, offset int) ([]BankGoalTransaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, upload_batch_id, goal_id, goal_number, account_number, client_name, transaction_date,
		        total_amount, per_fund_percent, per_fund_amount, type, transaction_id, reconciliation_status,
		        matched_goal_transaction_code, matching_score, review_tag, row_number
		 FROM bank_goal_transactions WHERE reconciliation_status = $1
		 ORDER BY transaction_date, id LIMIT $2 OFFSET $3`,
		ReconPending, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db: unmatched bank goal transactions: %w", err)
	}
	defer rows.Close()
	var out []BankGoalTransaction
	for rows.Next() {
		var b BankGoalTransaction
		var pctJSON, amtJSON []byte
		var total string
		var reviewTag *string
		if err := rows.Scan(&b.ID, &b.UploadBatchID, &b.GoalID, &b.GoalNumber, &b.AccountNumber, &b.ClientName, &b.TransactionDate,
			&total, &pctJSON, &amtJSON, &b.Type, &b.TransactionID, &b.ReconciliationStatus,
			&b.MatchedGoalTransactionCode, &b.MatchingScore, &reviewTag, &b.RowNumber); err != nil {
			return nil, fmt.Errorf("db: scan bank goal transaction: %w", err)
		}
		amt, err := parseAmount(total)
		if err != nil {
			return nil, err
		}
		b.TotalAmount = amt
		if err := json.Unmarshal(pctJSON, &b.PerFundPercent); err != nil {
			return nil, fmt.Errorf("db: decode per_fund_percent: %w", err)
		}
		if b.PerFundAmount, err = unmarshalFundAmounts(amtJSON); err != nil {
			return nil, err
		}
		if reviewTag != nil {
			b.ReviewTag = ReviewTag(*reviewTag)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RecordMatch persists the matcher's verdict for one bank row (§4.L).
func (s *Store) RecordMatch(ctx context.Context, bankRowID uuid.UUID, status ReconciliationStatus, goalTransactionCode string, score float64, tag ReviewTag) error {
	var tagVal interface{}
	if tag != "" {
		tagVal = string(tag)
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE bank_goal_transactions SET reconciliation_status = $2, matched_goal_transaction_code = $3, matching_score = $4, review_tag = $5 WHERE id = $1`,
		bankRowID, status, goalTransactionCode, score, tagVal)
	if err != nil {
		return fmt.Errorf("db: record match: %w", err)
	}
	return nil
}

func marshalFundAmounts(m map[FundCode]money.Amount) ([]byte, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[string(k)] = v.String()
	}
	return json.Marshal(out)
}

func unmarshalFundAmounts(data []byte) (map[FundCode]money.Amount, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("db: decode per_fund_amount: %w", err)
	}
	out := make(map[FundCode]money.Amount, len(raw))
	for k, v := range raw {
		amt, err := parseAmount(v)
		if err != nil {
			return nil, err
		}
		out[FundCode(k)] = amt
	}
	return out, nil
}
