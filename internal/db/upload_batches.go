package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// CreateUploadBatch inserts a new batch in StatusQueued.
func (s *Store) CreateUploadBatch(ctx context.Context, b UploadBatch) (uuid.UUID, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO upload_batches (id, batch_number, file_name, file_size, file_path, processing_status, validation_status, uploaded_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.BatchNumber, b.FileName, b.FileSize, b.FilePath, StatusQueued, ValidationPending, b.UploadedBy)
	if err != nil {
		return uuid.Nil, fmt.Errorf("db: create upload batch: %w", err)
	}
	return b.ID, nil
}

// GetUploadBatch loads a batch by id.
func (s *Store) GetUploadBatch(ctx context.Context, id uuid.UUID) (UploadBatch, error) {
	var b UploadBatch
	var valErrs, valWarns, report []byte
	row := s.pool.QueryRow(ctx,
		`SELECT id, batch_number, file_name, file_size, file_path, processing_status, validation_status,
		        total_records, processed_records, failed_records, validation_errors, validation_warnings,
		        new_entities_report, new_entities_status, total_amount, uploaded_by, approved_by,
		        created_at, processing_started_at, processing_completed_at
		 FROM upload_batches WHERE id = $1`, id)
	var total string
	if err := row.Scan(&b.ID, &b.BatchNumber, &b.FileName, &b.FileSize, &b.FilePath, &b.ProcessingStatus, &b.ValidationStatus,
		&b.TotalRecords, &b.ProcessedRecords, &b.FailedRecords, &valErrs, &valWarns,
		&report, &b.NewEntitiesStatus, &total, &b.UploadedBy, &b.ApprovedBy,
		&b.CreatedAt, &b.ProcessingStartedAt, &b.ProcessingCompletedAt); err != nil {
		return UploadBatch{}, fmt.Errorf("db: get upload batch: %w", err)
	}
	if err := json.Unmarshal(valErrs, &b.ValidationErrors); err != nil {
		return UploadBatch{}, fmt.Errorf("db: decode validation_errors: %w", err)
	}
	if err := json.Unmarshal(valWarns, &b.ValidationWarnings); err != nil {
		return UploadBatch{}, fmt.Errorf("db: decode validation_warnings: %w", err)
	}
	if len(report) > 0 {
		var r NewEntitiesReport
		if err := json.Unmarshal(report, &r); err != nil {
			return UploadBatch{}, fmt.Errorf("db: decode new_entities_report: %w", err)
		}
		b.NewEntitiesReport = &r
	}
	amt, err := parseAmount(total)
	if err != nil {
		return UploadBatch{}, err
	}
	b.TotalAmount = amt
	return b, nil
}

// UpdateStatus transitions a batch's processing_status (§4.H's state
// machine). It does not validate the transition itself; the batch manager
// owns that logic and calls this only after deciding a move is legal.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status ProcessingStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE upload_batches SET processing_status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("db: update status: %w", err)
	}
	return nil
}

// SetValidationResult records the validator's findings and resulting status.
func (s *Store) SetValidationResult(ctx context.Context, id uuid.UUID, status ValidationStatus, errs, warnings []RowError) error {
	errJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("db: encode validation_errors: %w", err)
	}
	warnJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("db: encode validation_warnings: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE upload_batches SET validation_status = $2, validation_errors = $3, validation_warnings = $4 WHERE id = $1`,
		id, status, errJSON, warnJSON)
	if err != nil {
		return fmt.Errorf("db: set validation result: %w", err)
	}
	return nil
}

// SetNewEntitiesReport records the §4.E detector's findings.
func (s *Store) SetNewEntitiesReport(ctx context.Context, id uuid.UUID, status NewEntitiesStatus, report *NewEntitiesReport) error {
	var reportJSON []byte
	if report != nil {
		var err error
		reportJSON, err = json.Marshal(report)
		if err != nil {
			return fmt.Errorf("db: encode new_entities_report: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE upload_batches SET new_entities_status = $2, new_entities_report = $3 WHERE id = $1`,
		id, status, reportJSON)
	if err != nil {
		return fmt.Errorf("db: set new entities report: %w", err)
	}
	return nil
}

// ApproveNewEntities records who approved entity creation, the gate that
// lets the resume-after-approval job proceed (§4.F, §4.I).
func (s *Store) ApproveNewEntities(ctx context.Context, id uuid.UUID, approvedBy string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE upload_batches SET new_entities_status = $2, approved_by = $3 WHERE id = $1`,
		id, NewEntitiesApproved, approvedBy)
	if err != nil {
		return fmt.Errorf("db: approve new entities: %w", err)
	}
	return nil
}

// RecordProgress updates the row counters the UI/API polls during ingest.
func (s *Store) RecordProgress(ctx context.Context, id uuid.UUID, totalRecords, processedRecords, failedRecords int, totalAmount string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE upload_batches SET total_records = $2, processed_records = $3, failed_records = $4, total_amount = $5 WHERE id = $1`,
		id, totalRecords, processedRecords, failedRecords, totalAmount)
	if err != nil {
		return fmt.Errorf("db: record progress: %w", err)
	}
	return nil
}

// MarkProcessingStarted / MarkProcessingCompleted stamp the timing columns
// used for SLA reporting.
func (s *Store) MarkProcessingStarted(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE upload_batches SET processing_started_at = now() WHERE id = $1`, id)
	return err
}

func (s *Store) MarkProcessingCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE upload_batches SET processing_completed_at = now() WHERE id = $1`, id)
	return err
}

// RollbackCounts reports how many rows a rollback removed, the
// `deletedCounts` shape the operator-facing rollback operation returns.
type RollbackCounts struct {
	FundTransactions         int64
	InvalidFundTransactions int64
}

// RollbackBatch deletes every row a batch wrote — its fund transactions and
// invalid-row audit entries — inside one transaction bounded by the given
// context's deadline (the caller sets a 2-minute timeout, §4.H), then marks
// the batch canceled. Orphaned entities created only to serve this batch
// are intentionally left in place: entity creation is idempotent and shared
// across batches, so there is no safe way to tell "created for this batch"
// from "already existed".
func (s *Store) RollbackBatch(ctx context.Context, id uuid.UUID) (RollbackCounts, error) {
	var counts RollbackCounts

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return counts, fmt.Errorf("db: rollback begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM fund_transactions WHERE upload_batch_id = $1`, id)
	if err != nil {
		return counts, fmt.Errorf("db: rollback delete fund_transactions: %w", err)
	}
	counts.FundTransactions = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM invalid_fund_transactions WHERE upload_batch_id = $1`, id)
	if err != nil {
		return counts, fmt.Errorf("db: rollback delete invalid_fund_transactions: %w", err)
	}
	counts.InvalidFundTransactions = tag.RowsAffected()

	if _, err := tx.Exec(ctx, `UPDATE upload_batches SET processing_status = $2 WHERE id = $1`, id, StatusCanceled); err != nil {
		return counts, fmt.Errorf("db: rollback mark canceled: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return counts, fmt.Errorf("db: rollback commit: %w", err)
	}
	return counts, nil
}
