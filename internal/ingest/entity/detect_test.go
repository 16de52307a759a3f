package entity

import (
	"testing"
	"time"

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

func TestModeFundDistribution_PicksMostCommonSignature(t *testing.T) {
	day1 := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	rows := []parser.FundRow{
		{TransactionDate: day1, FundCode: "XUMMF", Amount: mustAmount(t, "500.00")},
		{TransactionDate: day1, FundCode: "XUBF", Amount: mustAmount(t, "500.00")},
		{TransactionDate: day2, FundCode: "XUMMF", Amount: mustAmount(t, "500.00")},
		{TransactionDate: day2, FundCode: "XUBF", Amount: mustAmount(t, "500.00")},
	}
	dist := modeFundDistribution(rows)
	if dist["XUMMF"] != 0.5 || dist["XUBF"] != 0.5 {
		t.Fatalf("expected 50/50 split, got %+v", dist)
	}
}

func TestModeFundDistribution_FallsBackToEqualSplitOnZeroTotal(t *testing.T) {
	day1 := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := []parser.FundRow{
		{TransactionDate: day1, FundCode: "XUMMF", Amount: money.ZeroAmount},
		{TransactionDate: day1, FundCode: "XUBF", Amount: money.ZeroAmount},
	}
	dist := modeFundDistribution(rows)
	if dist["XUMMF"] != 0.5 || dist["XUBF"] != 0.5 {
		t.Fatalf("expected equal-split fallback, got %+v", dist)
	}
}

func TestDistinctStrings_DeduplicatesPreservingOrder(t *testing.T) {
	rows := []parser.FundRow{
		{ClientName: "Alice"}, {ClientName: "Bob"}, {ClientName: "Alice"},
	}
	got := distinctStrings(rows, func(r parser.FundRow) string { return r.ClientName })
	if len(got) != 2 || got[0] != "Alice" || got[1] != "Bob" {
		t.Fatalf("unexpected distinct order: %v", got)
	}
}

func TestStatus_NoneWhenReportEmpty(t *testing.T) {
	if s := Status(nil); s != "none" {
		t.Errorf("expected none for nil report, got %s", s)
	}
}
