// Package validate implements the row-level (§4.C) and group-level (§4.D)
// validation rules applied to parsed fund-feed rows before they become
// fund transactions, plus the bank feed's per-row sum-to-total check
// (§4.K).
package validate

import (
	"fmt"
	"time"

	"github.com/paynet/trustrecon/internal/config"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/ingest/parser"
	"github.com/paynet/trustrecon/internal/money"
)

// Severity mirrors db.RowError's severity enum at the validator boundary.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

var validFundCodes = map[string]bool{"XUMMF": true, "XUBF": true, "XUDEF": true, "XUREF": true}
var validSources = map[string]bool{"web": true, "mobile": true, "branch": true, "batch_import": true, "call_center": true}

// RowValidator checks one fund-feed row against field rules.
type RowValidator struct {
	cfg config.Config
	now func() time.Time
}

func NewRowValidator(cfg config.Config) *RowValidator {
	return &RowValidator{cfg: cfg, now: time.Now}
}

// Validate returns every rule violation for one row; an empty slice means
// the row is clean.
func (v *RowValidator) Validate(row parser.FundRow) []db.RowError {
	var errs []db.RowError
	add := func(field, code, severity, msg, suggestion string) {
		errs = append(errs, db.RowError{
			RowNumber: row.RowNumber, Field: field, ErrorCode: code, Severity: severity,
			Message: msg, SuggestedAction: suggestion,
		})
	}

	if row.ClientName == "" {
		add("clientName", "required_field_missing", SeverityCritical, "clientName is required", "supply a non-empty clientName")
	}
	if !validFundCodes[row.FundCode] {
		add("fundCode", "invalid_fund_code", SeverityCritical, fmt.Sprintf("fundCode %q is not one of XUMMF, XUBF, XUDEF, XUREF", row.FundCode), "correct the fund code")
	}
	if row.GoalTitle == "" {
		add("goalTitle", "required_field_missing", SeverityCritical, "goalTitle is required", "supply a non-empty goalTitle")
	}
	if row.GoalNumber == "" {
		add("goalNumber", "required_field_missing", SeverityCritical, "goalNumber is required", "supply a non-empty goalNumber")
	}
	if row.AccountNumber == "" {
		add("accountNumber", "required_field_missing", SeverityCritical, "accountNumber is required", "supply a non-empty accountNumber")
	}
	if row.AccountType == "" {
		add("accountType", "required_field_missing", SeverityCritical, "accountType is required", "supply a non-empty accountType")
	}
	if row.AccountCategory == "" {
		add("accountCategory", "required_field_missing", SeverityCritical, "accountCategory is required", "supply a non-empty accountCategory")
	}
	if row.TransactionID == "" {
		add("transactionId", "required_field_missing", SeverityCritical, "transactionId is required", "supply a non-empty transactionId")
	}
	if !validSources[row.Source] {
		add("source", "invalid_source", SeverityCritical, fmt.Sprintf("source %q is not a recognized channel", row.Source), "correct the source channel")
	}

	absAmount := row.Amount.Abs()
	amountMin := money.NewAmountFromFloat(v.cfg.AmountMin)
	amountMax := money.NewAmountFromFloat(v.cfg.AmountMax)
	if absAmount.LessThan(amountMin) || absAmount.GreaterThan(amountMax) {
		add("amount", "amount_out_of_bounds", SeverityCritical,
			fmt.Sprintf("|amount| %s is outside [%s, %s]", absAmount.String(), amountMin.String(), amountMax.String()),
			"verify the transaction amount")
	}

	if row.TransactionDate.IsZero() {
		add("transactionDate", "required_field_missing", SeverityCritical, "transactionDate is required", "supply a valid transactionDate")
	} else {
		if row.TransactionDate.After(v.now()) {
			add("transactionDate", "date_in_future", SeverityCritical, "transactionDate is in the future", "correct the transaction date")
		}
		oldest := v.now().AddDate(-v.cfg.MaxAgeYears, 0, 0)
		if row.TransactionDate.Before(oldest) {
			add("transactionDate", "date_too_old", SeverityCritical,
				fmt.Sprintf("transactionDate is older than %d years", v.cfg.MaxAgeYears), "verify the transaction date")
		}
	}

	// Unit-trust identity (deposits only): |units*offer - amount| <= 0.01*|amount|.
	if row.TransactionType == "deposit" {
		expected := row.Units.Mul(row.Offer)
		tolerance := row.Amount.Abs().MulFrac(0.01)
		if !money.WithinTolerance(expected, row.Amount, tolerance) {
			add("units", "unit_trust_identity_violation", SeverityCritical,
				fmt.Sprintf("units*offer (%s) diverges from amount (%s) beyond 1%%", expected.String(), row.Amount.String()),
				"verify units, offer price and amount agree")
		}
	}

	// Price ordering: bid <= mid <= offer.
	if row.Bid.GreaterThan(row.Mid) || row.Mid.GreaterThan(row.Offer) {
		add("bidPrice", "price_ordering_violation", SeverityCritical,
			fmt.Sprintf("expected bid(%s) <= mid(%s) <= offer(%s)", row.Bid.String(), row.Mid.String(), row.Offer.String()),
			"verify bid/mid/offer prices")
	}

	return errs
}

// HasCritical reports whether any error in the slice is severity critical.
func HasCritical(errs []db.RowError) bool {
	for _, e := range errs {
		if e.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
