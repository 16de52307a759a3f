package variance

import (
	"testing"
	"time"

	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/money"
)

func mustAmount(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.NewAmount(s)
	if err != nil {
		t.Fatalf("money.NewAmount(%q): %v", s, err)
	}
	return a
}

func TestSeverityFor_Thresholds(t *testing.T) {
	tests := []struct {
		amount string
		want   db.Severity
	}{
		{"0.00", db.SeverityLow},
		{"999.99", db.SeverityLow},
		{"1000.00", db.SeverityMedium},
		{"9999.99", db.SeverityMedium},
		{"10000.00", db.SeverityHigh},
		{"49999.99", db.SeverityHigh},
		{"50000.00", db.SeverityCritical},
		{"-60000.00", db.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			if got := severityFor(mustAmount(t, tt.amount)); got != tt.want {
				t.Errorf("severityFor(%s) = %s, want %s", tt.amount, got, tt.want)
			}
		})
	}
}

func TestFundDistributionDeltas_FlagsOverOnePercent(t *testing.T) {
	bank := db.BankGoalTransaction{
		PerFundAmount: map[db.FundCode]money.Amount{
			db.FundCode("XUMMF"): mustAmount(t, "1100.00"),
			db.FundCode("XUBF"):  mustAmount(t, "500.00"),
		},
	}
	agg := db.GoalTransactionAggregateRow{
		PerFundAmount: map[db.FundCode]money.Amount{
			db.FundCode("XUMMF"): mustAmount(t, "1000.00"),
			db.FundCode("XUBF"):  mustAmount(t, "500.00"),
		},
	}

	deltas, worst := fundDistributionDeltas(bank, agg)
	if len(deltas) != 1 {
		t.Fatalf("expected exactly one mismatching fund, got %+v", deltas)
	}
	if _, ok := deltas[db.FundCode("XUMMF")]; !ok {
		t.Fatalf("expected XUMMF flagged, got %+v", deltas)
	}
	if !worst.Equal(mustAmount(t, "100.00")) {
		t.Fatalf("expected worst delta 100.00, got %s", worst)
	}
}

func TestFundDistributionDeltas_WithinOnePercentIsClean(t *testing.T) {
	bank := db.BankGoalTransaction{
		PerFundAmount: map[db.FundCode]money.Amount{db.FundCode("XUMMF"): mustAmount(t, "1005.00")},
	}
	agg := db.GoalTransactionAggregateRow{
		PerFundAmount: map[db.FundCode]money.Amount{db.FundCode("XUMMF"): mustAmount(t, "1000.00")},
	}
	deltas, _ := fundDistributionDeltas(bank, agg)
	if len(deltas) != 0 {
		t.Fatalf("expected no mismatch within tolerance, got %+v", deltas)
	}
}

func TestDiffDays(t *testing.T) {
	a := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	b := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := diffDays(a, b); got != 9 {
		t.Fatalf("diffDays = %d, want 9", got)
	}
	if got := diffDays(b, a); got != 9 {
		t.Fatalf("diffDays should be symmetric, got %d", got)
	}
}
