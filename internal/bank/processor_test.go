package bank

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/ingest/parser"
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

func TestToBankGoalTransaction_LinksKnownGoal(t *testing.T) {
	batchID := uuid.New()
	goalID := uuid.New()
	row := parser.BankRow{
		RowNumber:       3,
		TransactionDate: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		FirstName:       "Jane",
		LastName:        "Doe",
		AccountNumber:   "ACC-1",
		GoalNumber:      "GOAL-1",
		TotalAmount:     mustAmount(t, "500.00"),
		PercentByFund:   map[string]float64{"xummf": 1.0},
		AmountByFund:    map[string]money.Amount{"xummf": mustAmount(t, "500.00")},
		TransactionType: "deposit",
	}
	goals := map[string]db.Goal{"GOAL-1": {ID: goalID, GoalNumber: "GOAL-1"}}

	tx := toBankGoalTransaction(batchID, row, goals)

	if tx.GoalID == nil || *tx.GoalID != goalID {
		t.Fatalf("expected linked goal id %s, got %v", goalID, tx.GoalID)
	}
	if tx.ReconciliationStatus != db.ReconPending {
		t.Fatalf("expected pending reconciliation for a linked row, got %s", tx.ReconciliationStatus)
	}
	if tx.ClientName != "Jane Doe" {
		t.Fatalf("expected client name %q, got %q", "Jane Doe", tx.ClientName)
	}
	if _, ok := tx.PerFundAmount[db.FundCode("XUMMF")]; !ok {
		t.Fatalf("expected per-fund amount keyed by uppercase fund code, got %v", tx.PerFundAmount)
	}
}

func TestToBankGoalTransaction_MarksMissingInFundWhenGoalUnknown(t *testing.T) {
	row := parser.BankRow{
		RowNumber:     7,
		AccountNumber: "ACC-2",
		GoalNumber:    "GOAL-UNKNOWN",
		TotalAmount:   mustAmount(t, "100.00"),
	}

	tx := toBankGoalTransaction(uuid.New(), row, map[string]db.Goal{})

	if tx.GoalID != nil {
		t.Fatalf("expected nil goal id for an unlinked row, got %v", tx.GoalID)
	}
	if tx.ReconciliationStatus != db.ReconMissingInFund {
		t.Fatalf("expected missing_in_fund, got %s", tx.ReconciliationStatus)
	}
}

func TestValidateRows_SplitsCriticalRowsOut(t *testing.T) {
	p := NewProcessor(nil, nil)
	rows := []parser.BankRow{
		{
			RowNumber:       1,
			TransactionDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			AccountNumber:   "ACC-1",
			GoalNumber:      "GOAL-1",
			TransactionType: "deposit",
			TotalAmount:     mustAmount(t, "100.00"),
			AmountByFund:    map[string]money.Amount{"xummf": mustAmount(t, "100.00")},
		},
		{
			RowNumber:       2,
			TransactionDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			AccountNumber:   "", // missing required field -> critical
			GoalNumber:      "GOAL-2",
			TransactionType: "deposit",
			TotalAmount:     mustAmount(t, "50.00"),
		},
	}

	valid, errsByRow := p.validateRows(rows)

	if len(valid) != 1 || valid[0].RowNumber != 1 {
		t.Fatalf("expected only row 1 to survive validation, got %+v", valid)
	}
	if len(errsByRow[2]) == 0 {
		t.Fatalf("expected row 2 to carry validation errors")
	}
}

func TestFlattenRowErrors_CollectsAcrossRows(t *testing.T) {
	byRow := map[int][]db.RowError{
		1: {{RowNumber: 1, Message: "a"}},
		2: {{RowNumber: 2, Message: "b"}, {RowNumber: 2, Message: "c"}},
	}
	flat := flattenRowErrors(byRow)
	if len(flat) != 3 {
		t.Fatalf("expected 3 flattened errors, got %d", len(flat))
	}
}
