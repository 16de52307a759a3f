package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/money"
)

// FundCandidate is one goalTransactionCode's aggregated view from the
// fund-system feed, the matcher's "F" input (§4.L). Type is inferred from
// the sign of the summed amount since a code's legs always move in the
// same direction on a given day.
type FundCandidate struct {
	Code            string
	GoalNumber      string
	AccountNumber   string
	TransactionDate time.Time
	TotalAmount     money.Amount
	TransactionID   string
	Type            BankTransactionType
}

// GoalNumbersWithPendingBank returns distinct goal numbers carrying at
// least one unmatched bank row, the matcher's unit of batching (§4.L: "the
// matcher processes goals in batches... returns an offset to resume").
func (s *Store) GoalNumbersWithPendingBank(ctx context.Context, limit, offset int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT goal_number FROM bank_goal_transactions
		 WHERE reconciliation_status = $1
		 ORDER BY goal_number LIMIT $2 OFFSET $3`, ReconPending, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db: goal numbers with pending bank rows: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("db: scan goal number: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// FundCandidatesForGoal loads every goalTransactionCode belonging to one
// goal, grouped the way the aggregate refresher groups them.
func (s *Store) FundCandidatesForGoal(ctx context.Context, goalNumber string) ([]FundCandidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ft.goal_transaction_code, g.goal_number, a.account_number, ft.transaction_date,
		        SUM(ft.amount), MIN(ft.transaction_id)
		 FROM fund_transactions ft
		 JOIN goals g ON g.id = ft.goal_id
		 JOIN accounts a ON a.id = ft.account_id
		 WHERE g.goal_number = $1
		 GROUP BY ft.goal_transaction_code, g.goal_number, a.account_number, ft.transaction_date`,
		goalNumber)
	if err != nil {
		return nil, fmt.Errorf("db: fund candidates for goal %s: %w", goalNumber, err)
	}
	defer rows.Close()
	var out []FundCandidate
	for rows.Next() {
		var c FundCandidate
		var total string
		if err := rows.Scan(&c.Code, &c.GoalNumber, &c.AccountNumber, &c.TransactionDate, &total, &c.TransactionID); err != nil {
			return nil, fmt.Errorf("db: scan fund candidate: %w", err)
		}
		amt, err := parseAmount(total)
		if err != nil {
			return nil, err
		}
		c.TotalAmount = amt
		if amt.Sign() < 0 {
			c.Type = BankTxWithdrawal
		} else {
			c.Type = BankTxDeposit
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PendingBankTransactionsForGoal loads every unmatched bank row for one
// goal, the matcher's "B" input.
func (s *Store) PendingBankTransactionsForGoal(ctx context.Context, goalNumber string) ([]BankGoalTransaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, upload_batch_id, goal_id, goal_number, account_number, client_name, transaction_date,
		        total_amount, per_fund_percent, per_fund_amount, type, transaction_id, reconciliation_status,
		        matched_goal_transaction_code, matching_score, review_tag, row_number
		 FROM bank_goal_transactions WHERE goal_number = $1 AND reconciliation_status = $2
		 ORDER BY transaction_date, id`, goalNumber, ReconPending)
	if err != nil {
		return nil, fmt.Errorf("db: pending bank transactions for goal %s: %w", goalNumber, err)
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
			return nil, fmt.Errorf("db: scan pending bank transaction: %w", err)
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

// TagReversalNetted marks a bank row as netted against its reversal
// counterpart (§4.L's reversal-netting post-pass) without changing its
// reconciliation status — it stays unmatched. Nothing reads the tag back:
// the runner leaves the rows it netted out of variance generation within
// the same run.
func (s *Store) TagReversalNetted(ctx context.Context, bankRowID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE bank_goal_transactions SET review_tag = $2 WHERE id = $1`,
		bankRowID, string(ReviewTagReversalNetted))
	if err != nil {
		return fmt.Errorf("db: tag reversal netted: %w", err)
	}
	return nil
}
