package match

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/money"
)

func amt(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.NewAmount(s)
	if err != nil {
		t.Fatalf("money.NewAmount(%q): %v", s, err)
	}
	return a
}

func TestAmountConfidence_Formula(t *testing.T) {
	tol := money.NewAmountFromFloat(1000)
	tests := []struct {
		name         string
		dateDiffDays int
		amountDiff   money.Amount
		want         float64
	}{
		{"exact date and amount", 0, money.ZeroAmount, 1.0},
		{"halfway date window, zero amount diff", 15, money.ZeroAmount, 0.85},
		{"full date window, full amount diff", 30, tol, 0.5},
		{"beyond date window clamps at window term", 60, money.ZeroAmount, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := amountConfidence(tt.dateDiffDays, 30, tt.amountDiff, tol)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("amountConfidence(%d, 30, %s, %s) = %v, want %v", tt.dateDiffDays, tt.amountDiff, tol, got, tt.want)
			}
		})
	}
}

func TestSplitConfidence_DecreasesPerExtraLeg(t *testing.T) {
	tests := []struct {
		legs int
		want float64
	}{
		{2, 0.9},
		{3, 0.85},
		{8, 0.6},
	}
	for _, tt := range tests {
		if got := splitConfidence(tt.legs); got != tt.want {
			t.Errorf("splitConfidence(%d) = %v, want %v", tt.legs, got, tt.want)
		}
	}
}

func TestMatchExact_MatchesSameTransactionIDWithinTolerance(t *testing.T) {
	cfg := DefaultConfig()
	bankID := uuid.New()
	bank := []db.BankGoalTransaction{
		{ID: bankID, TransactionID: "TXN-1", TotalAmount: amt(t, "1000.00"), Type: db.BankTxDeposit},
	}
	fund := []db.FundCandidate{
		{Code: "2026-01-01|ACC-1|GOAL-1", TransactionID: "TXN-1", TotalAmount: amt(t, "1000.00"), Type: db.BankTxDeposit},
	}

	matches, matchedBank, matchedFund := matchExact(bank, fund, cfg)

	if len(matches) != 1 || matches[0].Kind != KindExact || matches[0].Confidence != 1.0 {
		t.Fatalf("expected one exact match at confidence 1.0, got %+v", matches)
	}
	if !matchedBank[bankID] {
		t.Fatal("expected bank row to be marked matched")
	}
	if !matchedFund["2026-01-01|ACC-1|GOAL-1"] {
		t.Fatal("expected fund code to be marked matched")
	}
}

func TestMatchExact_IgnoresMismatchedTransactionID(t *testing.T) {
	cfg := DefaultConfig()
	bank := []db.BankGoalTransaction{
		{ID: uuid.New(), TransactionID: "TXN-A", TotalAmount: amt(t, "500.00")},
	}
	fund := []db.FundCandidate{
		{Code: "code", TransactionID: "TXN-B", TotalAmount: amt(t, "500.00")},
	}

	matches, _, _ := matchExact(bank, fund, cfg)
	if len(matches) != 0 {
		t.Fatalf("expected no match across differing transaction ids, got %+v", matches)
	}
}

func TestMatchAmountWindow_PairsWithinDateAndAmountTolerance(t *testing.T) {
	cfg := DefaultConfig()
	day1 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 10)
	bank := []db.BankGoalTransaction{
		{ID: uuid.New(), TransactionDate: day2, TotalAmount: amt(t, "5000.00"), Type: db.BankTxDeposit},
	}
	fund := []db.FundCandidate{
		{Code: "code-1", TransactionDate: day1, TotalAmount: amt(t, "5000.00"), Type: db.BankTxDeposit},
	}

	matches, matchedBank, matchedFund := matchAmountWindow(bank, fund, cfg)
	if len(matches) != 1 || matches[0].Kind != KindAmount {
		t.Fatalf("expected one amount-window match, got %+v", matches)
	}
	if !matchedBank[bank[0].ID] || !matchedFund["code-1"] {
		t.Fatal("expected both sides marked matched")
	}
}

func TestMatchAmountWindow_RejectsBeyondDateWindow(t *testing.T) {
	cfg := DefaultConfig()
	day1 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	bank := []db.BankGoalTransaction{
		{ID: uuid.New(), TransactionDate: day1.AddDate(0, 0, 45), TotalAmount: amt(t, "100.00"), Type: db.BankTxDeposit},
	}
	fund := []db.FundCandidate{
		{Code: "code-1", TransactionDate: day1, TotalAmount: amt(t, "100.00"), Type: db.BankTxDeposit},
	}
	matches, _, _ := matchAmountWindow(bank, fund, cfg)
	if len(matches) != 0 {
		t.Fatalf("expected no match beyond the date window, got %+v", matches)
	}
}

func TestMatchSplits_BankRowsSumToSingleFundAmount(t *testing.T) {
	cfg := DefaultConfig()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	b1, b2 := uuid.New(), uuid.New()
	bank := []db.BankGoalTransaction{
		{ID: b1, TransactionDate: day, TotalAmount: amt(t, "3000.00"), Type: db.BankTxDeposit},
		{ID: b2, TransactionDate: day, TotalAmount: amt(t, "2000.00"), Type: db.BankTxDeposit},
	}
	fund := []db.FundCandidate{
		{Code: "code-1", TransactionDate: day, TotalAmount: amt(t, "5000.00"), Type: db.BankTxDeposit},
	}

	matches, matchedBank, matchedFund := matchSplits(bank, fund, cfg)
	if len(matches) != 1 || matches[0].Kind != KindSplitBankToFund {
		t.Fatalf("expected one split_bank_to_fund match, got %+v", matches)
	}
	if len(matches[0].BankIDs) != 2 {
		t.Fatalf("expected both bank rows in the split, got %+v", matches[0].BankIDs)
	}
	if !matchedBank[b1] || !matchedBank[b2] || !matchedFund["code-1"] {
		t.Fatal("expected all three rows marked matched")
	}
}

func TestMatchReversals_NetsOppositeEqualAmounts(t *testing.T) {
	dep, wd := uuid.New(), uuid.New()
	bank := []db.BankGoalTransaction{
		{ID: dep, TotalAmount: amt(t, "50000.00"), Type: db.BankTxDeposit},
		{ID: wd, TotalAmount: amt(t, "-50000.00"), Type: db.BankTxWithdrawal},
	}
	netted := matchReversals(bank)
	if len(netted) != 2 {
		t.Fatalf("expected both rows netted, got %+v", netted)
	}
}

func TestMatchReversals_SameTypeNeverNets(t *testing.T) {
	bank := []db.BankGoalTransaction{
		{ID: uuid.New(), TotalAmount: amt(t, "100.00"), Type: db.BankTxDeposit},
		{ID: uuid.New(), TotalAmount: amt(t, "-100.00"), Type: db.BankTxDeposit},
	}
	netted := matchReversals(bank)
	if len(netted) != 0 {
		t.Fatalf("expected no netting across same-type rows, got %+v", netted)
	}
}
