package validate

import (
	"testing"
	"time"

	"github.com/paynet/trustrecon/internal/config"
	"github.com/paynet/trustrecon/internal/ingest/parser"
	"github.com/paynet/trustrecon/internal/money"
)

func mustAmount(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.NewAmount(s)
	if err != nil {
		t.Fatalf("NewAmount(%q): %v", s, err)
	}
	return a
}

func mustUnits(t *testing.T, s string) money.Units {
	t.Helper()
	u, err := money.NewUnits(s)
	if err != nil {
		t.Fatalf("NewUnits(%q): %v", s, err)
	}
	return u
}

func validFundRow(t *testing.T) parser.FundRow {
	return parser.FundRow{
		RowNumber:       2,
		TransactionDate: time.Now().AddDate(0, 0, -1),
		ClientName:      "Jane Doe",
		FundCode:        "XUMMF",
		Amount:          mustAmount(t, "1050.00"),
		Units:           mustUnits(t, "100.0000"),
		TransactionType: "deposit",
		Bid:             mustAmount(t, "10.00"),
		Mid:             mustAmount(t, "10.50"),
		Offer:           mustAmount(t, "10.50"),
		DateCreated:     time.Now(),
		GoalTitle:       "Retirement",
		GoalNumber:      "G1",
		AccountNumber:   "A1",
		AccountType:     "personal",
		AccountCategory: "general",
		TransactionID:   "T1",
		Source:          "web",
	}
}

func TestRowValidator_CleanRowHasNoErrors(t *testing.T) {
	v := NewRowValidator(config.Default())
	row := validFundRow(t)
	row.Units = mustUnits(t, "100.0000") // 100 * 10.50 = 1050.00 == amount
	if errs := v.Validate(row); len(errs) != 0 {
		t.Fatalf("expected no errors, got %+v", errs)
	}
}

func TestRowValidator_InvalidFundCode(t *testing.T) {
	v := NewRowValidator(config.Default())
	row := validFundRow(t)
	row.FundCode = "NOTAFUND"
	errs := v.Validate(row)
	if !HasCritical(errs) {
		t.Fatalf("expected a critical error, got %+v", errs)
	}
}

func TestRowValidator_PriceOrderingViolation(t *testing.T) {
	v := NewRowValidator(config.Default())
	row := validFundRow(t)
	row.Bid = mustAmount(t, "11.00")
	row.Mid = mustAmount(t, "10.50")
	errs := v.Validate(row)
	if !HasCritical(errs) {
		t.Fatalf("expected price ordering violation, got %+v", errs)
	}
}

func TestRowValidator_UnitTrustIdentityViolation(t *testing.T) {
	v := NewRowValidator(config.Default())
	row := validFundRow(t)
	row.Units = mustUnits(t, "1.0000") // 1 * 10.50 = 10.50, far from 1050.00
	errs := v.Validate(row)
	if !HasCritical(errs) {
		t.Fatalf("expected unit-trust identity violation, got %+v", errs)
	}
}

func TestRowValidator_AmountOutOfBounds(t *testing.T) {
	v := NewRowValidator(config.Default())
	row := validFundRow(t)
	row.Amount = mustAmount(t, "1.00")
	row.Units = mustUnits(t, "0.0952") // keeps identity roughly satisfied
	errs := v.Validate(row)
	if !HasCritical(errs) {
		t.Fatalf("expected amount-out-of-bounds error, got %+v", errs)
	}
}

func TestGroupValidator_MixedTypesIsCritical(t *testing.T) {
	v := NewGroupValidator(config.Default())
	r1 := validFundRow(t)
	r2 := validFundRow(t)
	r2.TransactionType = "withdrawal"
	errs := v.Validate("code", []parser.FundRow{r1, r2}, nil)
	if !HasCritical(errs) {
		t.Fatalf("expected critical error for mixed types, got %+v", errs)
	}
}

func TestGroupValidator_MissingFundCodeIsWarningNotError(t *testing.T) {
	v := NewGroupValidator(config.Default())
	r1 := validFundRow(t)
	r2 := validFundRow(t)
	r2.FundCode = "XUBF"
	r2.TransactionID = r1.TransactionID
	errs := v.Validate("code", []parser.FundRow{r1, r2}, nil)
	for _, e := range errs {
		if e.ErrorCode == "missing_fund_code" && e.Severity != SeverityWarning {
			t.Errorf("expected missing_fund_code to be a warning, got %s", e.Severity)
		}
	}
}

func TestGroupValidator_SkipsDistributionCheckWhenTotalZero(t *testing.T) {
	v := NewGroupValidator(config.Default())
	r1 := validFundRow(t)
	r1.Amount = money.ZeroAmount
	dist := map[string]float64{"XUMMF": 0.5}
	errs := v.Validate("code", []parser.FundRow{r1}, dist)
	for _, e := range errs {
		if e.ErrorCode == "fund_distribution_mismatch" {
			t.Fatalf("distribution check should be skipped when totalAmount is zero, got %+v", e)
		}
	}
}

func TestBankRowValidator_SumToTotalMismatch(t *testing.T) {
	v := NewBankRowValidator()
	row := parser.BankRow{
		RowNumber:       2,
		TransactionDate: time.Now(),
		AccountNumber:   "A1",
		GoalNumber:      "G1",
		TotalAmount:     mustAmount(t, "1000.00"),
		AmountByFund:    map[string]money.Amount{"xummf": mustAmount(t, "500.00")},
		TransactionType: "deposit",
	}
	errs := v.Validate(row)
	if !HasCritical(errs) {
		t.Fatalf("expected sum-to-total mismatch, got %+v", errs)
	}
}

func TestBankRowValidator_CleanRow(t *testing.T) {
	v := NewBankRowValidator()
	row := parser.BankRow{
		RowNumber:       2,
		TransactionDate: time.Now(),
		AccountNumber:   "A1",
		GoalNumber:      "G1",
		TotalAmount:     mustAmount(t, "1000.00"),
		AmountByFund:    map[string]money.Amount{"xummf": mustAmount(t, "1000.00")},
		PercentByFund:   map[string]float64{"xummf": 1.0},
		TransactionType: "deposit",
	}
	if errs := v.Validate(row); len(errs) != 0 {
		t.Fatalf("expected no errors, got %+v", errs)
	}
}
