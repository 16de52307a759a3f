package validate

import (
	"fmt"

	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/ingest/parser"
	"github.com/paynet/trustrecon/internal/money"
)

// BankRowValidator checks one bank-feed row's required fields and its
// sum-to-total invariant (spec.md §4.K, §8: "|Σ perFundAmount − totalAmount|
// <= 1 and percentages sum to 100 +/- 1 when any are non-zero").
type BankRowValidator struct{}

func NewBankRowValidator() *BankRowValidator { return &BankRowValidator{} }

func (v *BankRowValidator) Validate(row parser.BankRow) []db.RowError {
	var errs []db.RowError
	add := func(field, code, severity, msg string) {
		errs = append(errs, db.RowError{RowNumber: row.RowNumber, Field: field, ErrorCode: code, Severity: severity, Message: msg})
	}

	if row.AccountNumber == "" {
		add("accountNumber", "required_field_missing", SeverityCritical, "accountNumber is required")
	}
	if row.GoalNumber == "" {
		add("goalNumber", "required_field_missing", SeverityCritical, "goalNumber is required")
	}
	if row.TransactionType != "deposit" && row.TransactionType != "withdrawal" {
		add("transactionType", "invalid_transaction_type", SeverityCritical, fmt.Sprintf("transactionType %q must be deposit or withdrawal", row.TransactionType))
	}
	if row.TransactionDate.IsZero() {
		add("date", "required_field_missing", SeverityCritical, "date is required")
	}

	var amountSum money.Amount
	for _, a := range row.AmountByFund {
		amountSum = amountSum.Add(a)
	}
	tolerance := money.NewAmountFromFloat(1)
	if !money.WithinTolerance(amountSum, row.TotalAmount, tolerance) {
		add("totalAmount", "sum_to_total_mismatch", SeverityCritical,
			fmt.Sprintf("per-fund amounts sum to %s, totalAmount is %s", amountSum.String(), row.TotalAmount.String()))
	}

	var pctSum float64
	anyNonZero := false
	for _, p := range row.PercentByFund {
		pctSum += p
		if p != 0 {
			anyNonZero = true
		}
	}
	if anyNonZero {
		deltaFromWhole := pctSum - 1.0
		if deltaFromWhole < 0 {
			deltaFromWhole = -deltaFromWhole
		}
		if deltaFromWhole > 0.01 {
			add("percentages", "percent_sum_mismatch", SeverityCritical,
				fmt.Sprintf("per-fund percentages sum to %.4f, expected 1.0 +/- 0.01", pctSum))
		}
	}

	return errs
}
