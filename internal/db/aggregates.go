package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/money"
)

// GoalTransactionAggregate recomputes one goalTransactionCode's aggregate
// row by summing its fund_transactions legs — the concurrent-refresh read
// path described in §4.J.
func (s *Store) GoalTransactionAggregate(ctx context.Context, code string) (GoalTransactionAggregateRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ft.fund_id, f.fund_code, ft.amount, ft.transaction_date, ft.type,
		        cl.name, a.account_number, g.goal_number
		 FROM fund_transactions ft
		 JOIN funds f ON f.id = ft.fund_id
		 JOIN clients cl ON cl.id = ft.client_id
		 JOIN accounts a ON a.id = ft.account_id
		 JOIN goals g ON g.id = ft.goal_id
		 WHERE ft.goal_transaction_code = $1`, code)
	if err != nil {
		return GoalTransactionAggregateRow{}, fmt.Errorf("db: goal transaction aggregate: %w", err)
	}
	defer rows.Close()

	out := GoalTransactionAggregateRow{Code: code, PerFundAmount: make(map[FundCode]money.Amount), TotalAmount: money.ZeroAmount}
	for rows.Next() {
		var fundCode FundCode
		var amtStr, txType string
		var fundID uuid.UUID
		var txDate time.Time
		if err := rows.Scan(&fundID, &fundCode, &amtStr, &txDate, &txType, &out.ClientName, &out.AccountNumber, &out.GoalNumber); err != nil {
			return GoalTransactionAggregateRow{}, fmt.Errorf("db: scan goal transaction aggregate row: %w", err)
		}
		out.TransactionDate = txDate
		amt, err := parseAmount(amtStr)
		if err != nil {
			return GoalTransactionAggregateRow{}, err
		}
		out.PerFundAmount[fundCode] = out.PerFundAmount[fundCode].Add(amt)
		out.TotalAmount = out.TotalAmount.Add(amt)
		out.FundCount++
		switch TransactionType(txType) {
		case TxDeposit:
			out.DepositCount++
		case TxWithdrawal, TxRedemption:
			out.WithdrawalCount++
		}
	}
	return out, rows.Err()
}

// DirtyGoalTransactionCodes returns the distinct codes touched by a batch,
// the refresher's work-list after a write (§4.J).
func (s *Store) DirtyGoalTransactionCodes(ctx context.Context, uploadBatchID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT goal_transaction_code FROM fund_transactions WHERE upload_batch_id = $1`, uploadBatchID)
	if err != nil {
		return nil, fmt.Errorf("db: dirty goal transaction codes: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("db: scan dirty code: %w", err)
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

// AccountUnitBalance recomputes one account's per-fund unit holdings.
func (s *Store) AccountUnitBalance(ctx context.Context, accountID uuid.UUID) (AccountUnitBalanceRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT f.fund_code, ft.units, ft.type, ft.transaction_date, a.account_number, a.type, a.category, cl.name
		 FROM fund_transactions ft
		 JOIN funds f ON f.id = ft.fund_id
		 JOIN accounts a ON a.id = ft.account_id
		 JOIN clients cl ON cl.id = ft.client_id
		 WHERE ft.account_id = $1`, accountID)
	if err != nil {
		return AccountUnitBalanceRow{}, fmt.Errorf("db: account unit balance: %w", err)
	}
	defer rows.Close()

	out := AccountUnitBalanceRow{AccountID: accountID, PerFundUnits: make(map[FundCode]money.Units)}
	var total money.Units
	var lastDate time.Time
	for rows.Next() {
		var fundCode FundCode
		var unitsStr, txType string
		var txDate time.Time
		if err := rows.Scan(&fundCode, &unitsStr, &txType, &txDate, &out.AccountNumber, &out.AccountType, &out.AccountCategory, &out.ClientName); err != nil {
			return AccountUnitBalanceRow{}, fmt.Errorf("db: scan account unit balance row: %w", err)
		}
		units, err := money.NewUnits(unitsStr)
		if err != nil {
			return AccountUnitBalanceRow{}, fmt.Errorf("db: decode units: %w", err)
		}
		if TransactionType(txType) != TxDeposit {
			units = units.Neg()
		}
		out.PerFundUnits[fundCode] = out.PerFundUnits[fundCode].Add(units)
		total = total.Add(units)
		if txDate.After(lastDate) {
			lastDate = txDate
		}
	}
	out.TotalUnits = total
	out.LastTransactionDate = lastDate
	return out, rows.Err()
}

// DirtyAccountIDs returns the distinct accounts touched by a batch, the
// unit-balance refresher's work-list after a write (§4.J).
func (s *Store) DirtyAccountIDs(ctx context.Context, uploadBatchID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT account_id FROM fund_transactions WHERE upload_batch_id = $1`, uploadBatchID)
	if err != nil {
		return nil, fmt.Errorf("db: dirty account ids: %w", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db: scan dirty account id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UpsertGoalTransactionAggregate writes one refreshed row of the
// materialized GoalTransactionsAggregate read model. Readers query this
// table directly; they never see a partial refresh because each code's row
// is replaced by a single statement.
func (s *Store) UpsertGoalTransactionAggregate(ctx context.Context, row GoalTransactionAggregateRow) error {
	perFund, err := json.Marshal(row.PerFundAmount)
	if err != nil {
		return fmt.Errorf("db: encode per_fund_amount: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO goal_transactions_aggregate
		   (code, transaction_date, client_name, account_number, goal_number, total_amount, per_fund_amount, fund_count, deposit_count, withdrawal_count, refreshed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		 ON CONFLICT (code) DO UPDATE SET
		   transaction_date = excluded.transaction_date, client_name = excluded.client_name,
		   account_number = excluded.account_number, goal_number = excluded.goal_number,
		   total_amount = excluded.total_amount, per_fund_amount = excluded.per_fund_amount,
		   fund_count = excluded.fund_count, deposit_count = excluded.deposit_count,
		   withdrawal_count = excluded.withdrawal_count, refreshed_at = now()`,
		row.Code, row.TransactionDate, row.ClientName, row.AccountNumber, row.GoalNumber,
		row.TotalAmount.String(), perFund, row.FundCount, row.DepositCount, row.WithdrawalCount)
	if err != nil {
		return fmt.Errorf("db: upsert goal transaction aggregate: %w", err)
	}
	return nil
}

// UpsertAccountUnitBalance writes one refreshed row of the materialized
// AccountUnitBalancesAggregate read model.
func (s *Store) UpsertAccountUnitBalance(ctx context.Context, row AccountUnitBalanceRow) error {
	perFund, err := json.Marshal(row.PerFundUnits)
	if err != nil {
		return fmt.Errorf("db: encode per_fund_units: %w", err)
	}
	var lastDate *time.Time
	if !row.LastTransactionDate.IsZero() {
		lastDate = &row.LastTransactionDate
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO account_unit_balances_aggregate
		   (account_id, client_name, account_number, account_type, account_category, per_fund_units, total_units, last_transaction_date, refreshed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (account_id) DO UPDATE SET
		   client_name = excluded.client_name, account_number = excluded.account_number,
		   account_type = excluded.account_type, account_category = excluded.account_category,
		   per_fund_units = excluded.per_fund_units, total_units = excluded.total_units,
		   last_transaction_date = excluded.last_transaction_date, refreshed_at = now()`,
		row.AccountID, row.ClientName, row.AccountNumber, row.AccountType, row.AccountCategory,
		perFund, row.TotalUnits.String(), lastDate)
	if err != nil {
		return fmt.Errorf("db: upsert account unit balance: %w", err)
	}
	return nil
}
