package jobs

import (
	"testing"

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

func TestOwnershipMaps_DerivesFirstSeenOwnerPerKey(t *testing.T) {
	rows := []parser.FundRow{
		{ClientName: "Jane Doe", AccountNumber: "A1", GoalNumber: "G1", GoalTitle: "Retirement", Amount: mustAmount(t, "100.00")},
		{ClientName: "Jane Doe", AccountNumber: "A1", GoalNumber: "G1", GoalTitle: "Retirement", Amount: mustAmount(t, "50.00")},
		{ClientName: "John Roe", AccountNumber: "A2", GoalNumber: "G2", GoalTitle: "", Amount: mustAmount(t, "25.00")},
	}
	owners, accounts, titles := ownershipMaps(rows)

	if owners["A1"] != "Jane Doe" || owners["A2"] != "John Roe" {
		t.Fatalf("unexpected owners: %+v", owners)
	}
	if accounts["G1"] != "A1" || accounts["G2"] != "A2" {
		t.Fatalf("unexpected goal-account map: %+v", accounts)
	}
	if titles["G1"] != "Retirement" {
		t.Fatalf("expected goal title Retirement, got %+v", titles)
	}
	if _, ok := titles["G2"]; ok {
		t.Fatalf("expected no title recorded for G2, got %+v", titles)
	}
}

func TestSumAmount_AccumulatesAcrossRows(t *testing.T) {
	rows := []parser.FundRow{
		{Amount: mustAmount(t, "100.00")},
		{Amount: mustAmount(t, "50.25")},
	}
	got := sumAmount(rows)
	want := mustAmount(t, "150.25")
	if !got.Equal(want) {
		t.Fatalf("sumAmount = %s, want %s", got, want)
	}
}
