package validate

import (
	"fmt"

	"github.com/paynet/trustrecon/internal/config"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/ingest/parser"
	"github.com/paynet/trustrecon/internal/money"
)

// GroupValidator checks one goalTransactionCode's set of fund-feed rows
// against the cross-row invariants in spec.md §4.D.
type GroupValidator struct {
	cfg config.Config
}

func NewGroupValidator(cfg config.Config) *GroupValidator {
	return &GroupValidator{cfg: cfg}
}

// Validate checks one group. existingDistribution is the goal's currently
// stored fundDistribution (fund code -> fraction), or nil if the goal does
// not exist yet (distribution checks are then skipped).
func (v *GroupValidator) Validate(code string, rows []parser.FundRow, existingDistribution map[string]float64) []db.RowError {
	var errs []db.RowError
	add := func(errorCode, severity, msg string) {
		errs = append(errs, db.RowError{Field: code, ErrorCode: errorCode, Severity: severity, Message: msg})
	}

	if len(rows) == 0 {
		return errs
	}

	distinct := func(get func(parser.FundRow) string) map[string]bool {
		out := make(map[string]bool)
		for _, r := range rows {
			out[get(r)] = true
		}
		return out
	}

	if d := distinct(func(r parser.FundRow) string { return r.ClientName }); len(d) > 1 {
		add("multiple_client_names", SeverityCritical, fmt.Sprintf("group %s has %d distinct client names", code, len(d)))
	}
	if d := distinct(func(r parser.FundRow) string { return r.AccountNumber }); len(d) > 1 {
		add("multiple_accounts", SeverityCritical, fmt.Sprintf("group %s has %d distinct accounts", code, len(d)))
	}
	if d := distinct(func(r parser.FundRow) string { return r.GoalNumber }); len(d) > 1 {
		add("multiple_goals", SeverityCritical, fmt.Sprintf("group %s has %d distinct goal numbers", code, len(d)))
	}
	if d := distinct(func(r parser.FundRow) string { return r.TransactionDate.Format("2006-01-02") }); len(d) > 1 {
		add("multiple_dates", SeverityCritical, fmt.Sprintf("group %s has %d distinct dates", code, len(d)))
	}
	if d := distinct(func(r parser.FundRow) string { return r.TransactionID }); len(d) > 1 {
		add("multiple_transaction_ids", SeverityCritical, fmt.Sprintf("group %s has %d distinct transactionIds", code, len(d)))
	}
	if d := distinct(func(r parser.FundRow) string { return r.Source }); len(d) > 1 {
		add("multiple_sources", SeverityCritical, fmt.Sprintf("group %s has %d distinct sources", code, len(d)))
	}
	if types := distinct(func(r parser.FundRow) string { return r.TransactionType }); len(types) > 1 {
		add("mixed_transaction_types", SeverityCritical, fmt.Sprintf("group %s mixes deposit and withdrawal rows", code))
	}

	if len(rows) != 4 {
		add("unexpected_group_size", SeverityWarning, fmt.Sprintf("group %s has %d legs, expected 4", code, len(rows)))
	}

	perFund := make(map[string]money.Amount)
	var total money.Amount
	seenFunds := make(map[string]bool)
	for _, r := range rows {
		perFund[r.FundCode] = perFund[r.FundCode].Add(r.Amount)
		total = total.Add(r.Amount)
		seenFunds[r.FundCode] = true
		if r.Amount.IsZero() {
			add("zero_amount", SeverityWarning, fmt.Sprintf("row %d in group %s has a zero amount", r.RowNumber, code))
		}
	}
	for fc := range validFundCodes {
		if !seenFunds[fc] {
			add("missing_fund_code", SeverityWarning, fmt.Sprintf("group %s is missing expected fund code %s", code, fc))
		}
	}

	// Distribution-match tolerance: skipped when totalAmount == 0 (§4.D
	// edge case), and only meaningful once the goal already has a stored
	// distribution to compare against.
	if existingDistribution != nil && !total.IsZero() {
		tolerancePct := v.cfg.DistributionTolerancePct
		for fc, expectedFrac := range existingDistribution {
			actualAmt := perFund[fc] // missing fund code treated as percentage 0, not an error
			actualFrac := actualAmt.Decimal().Div(total.Decimal()).InexactFloat64()
			delta := actualFrac - expectedFrac
			if delta < 0 {
				delta = -delta
			}
			if delta > tolerancePct {
				add("fund_distribution_mismatch", SeverityWarning,
					fmt.Sprintf("group %s fund %s distribution %.4f diverges from stored %.4f beyond %.4f", code, fc, actualFrac, expectedFrac, tolerancePct))
			}
		}
	}

	return errs
}
