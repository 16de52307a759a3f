package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateVariance inserts a reconciliation variance, auto-setting resolution
// to approved when the caller (the variance classifier, §4.M) has already
// determined it qualifies for auto-approval.
func (s *Store) CreateVariance(ctx context.Context, v ReconciliationVariance) (uuid.UUID, error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	deltas, err := marshalFundAmounts(v.FundDeltas)
	if err != nil {
		return uuid.Nil, err
	}
	status := v.ResolutionStatus
	if status == "" {
		status = ResolutionPending
	}
	if v.AutoApproved {
		status = ResolutionApproved
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reconciliation_variances
		   (id, bank_goal_transaction_id, fund_goal_transaction_code, type, severity, amount_delta,
		    fund_deltas, date_delta_days, resolution_status, auto_approved)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		v.ID, v.BankGoalTransactionID, v.FundGoalTransactionCode, v.Type, v.Severity, v.AmountDelta.Decimal(),
		deltas, v.DateDeltaDays, status, v.AutoApproved)
	if err != nil {
		return uuid.Nil, fmt.Errorf("db: create variance: %w", err)
	}
	return v.ID, nil
}

// ResolveVariance records a reviewer's decision (§4.M resolve operation).
func (s *Store) ResolveVariance(ctx context.Context, id uuid.UUID, status ResolutionStatus, reviewer, notes string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE reconciliation_variances SET resolution_status = $2, reviewer = $3, notes = $4, resolved_at = now() WHERE id = $1`,
		id, status, reviewer, notes)
	if err != nil {
		return fmt.Errorf("db: resolve variance: %w", err)
	}
	return nil
}

// PendingVariances lists variances awaiting review, ordered most-severe
// first, the operator dashboard's primary query.
func (s *Store) PendingVariances(ctx context.Context, limit int) ([]ReconciliationVariance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, bank_goal_transaction_id, fund_goal_transaction_code, type, severity, amount_delta,
		        fund_deltas, date_delta_days, resolution_status, auto_approved, reviewer, notes, created_at, resolved_at
		 FROM reconciliation_variances
		 WHERE resolution_status = $1
		 ORDER BY CASE severity WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, created_at
		 LIMIT $2`,
		ResolutionPending, limit)
	if err != nil {
		return nil, fmt.Errorf("db: pending variances: %w", err)
	}
	defer rows.Close()
	var out []ReconciliationVariance
	for rows.Next() {
	var v ReconciliationVariance
		var amt string
		var deltaJSON []byte
		var reviewer, notes *string
		if err := rows.Scan(&v.ID, &v.BankGoalTransactionID, &v.FundGoalTransactionCode, &v.Type, &v.Severity, &amt,
			&deltaJSON, &v.DateDeltaDays, &v.ResolutionStatus, &v.AutoApproved, &reviewer, &notes, &v.CreatedAt, &v.ResolvedAt); err != nil {
			return nil, fmt.Errorf("db: scan variance: %w", err)
		}
		if v.AmountDelta, err = parseAmount(amt); err != nil {
			return nil, err
		}
		if v.FundDeltas, err = unmarshalFundAmounts(deltaJSON); err != nil {
			return nil, err
		}
		if reviewer != nil {
			v.Reviewer = *reviewer
		}
		if notes != nil {
			v.Notes = *notes
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
