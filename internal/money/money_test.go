package money

import "testing"

func TestToleranceMaxOfPctAndFloor(t *testing.T) {
	floor := NewAmountFromFloat(1000)

	small := NewAmountFromFloat(10000) // 1% = 100, floor wins
	if got := Tolerance(small, 0.01, floor); !got.Equal(floor) {
		t.Errorf("Tolerance(10000) = %s, want floor %s", got, floor)
	}

	large := NewAmountFromFloat(500000) // 1% = 5000, pct wins
	want := NewAmountFromFloat(5000)
	if got := Tolerance(large, 0.01, floor); !got.Equal(want) {
		t.Errorf("Tolerance(500000) = %s, want %s", got, want)
	}
}

func TestWithinToleranceBoundary(t *testing.T) {
	tau := NewAmountFromFloat(1000)
	a := NewAmountFromFloat(100000)

	atTau := NewAmountFromFloat(101000)
	if !WithinTolerance(a, atTau, tau) {
		t.Error("expected diff exactly at tau to be accepted")
	}

	overTau := NewAmountFromFloat(101000.01)
	if WithinTolerance(a, overTau, tau) {
		t.Error("expected diff at tau+0.01 to be rejected")
	}
}

func TestDivRoundsToUnitScale(t *testing.T) {
	amount := NewAmountFromFloat(36085)
	offer := NewAmountFromFloat(120.3456)

	units, err := amount.Div(offer)
	if err != nil {
		t.Fatalf("Div: %v", err)
	}
	if units.IsZero() {
		t.Fatal("expected non-zero units")
	}

	back := units.Mul(offer)
	diff := back.Sub(amount).Abs()
	maxDiff := amount.Abs().MulFrac(0.01)
	if diff.GreaterThan(maxDiff) {
		t.Errorf("round-trip units*offer = %s, too far from amount %s", back, amount)
	}
}

func TestDivByZeroPrice(t *testing.T) {
	amount := NewAmountFromFloat(100)
	_, err := amount.Div(ZeroAmount)
	if err != ErrDivideByZero {
		t.Fatalf("expected ErrDivideByZero, got %v", err)
	}
}

func TestAmountRoundsHalfEven(t *testing.T) {
	a, err := NewAmount("10.125")
	if err != nil {
		t.Fatal(err)
	}
	// half-even: 10.125 -> 10.12 (2 is even)
	if a.String() != "10.12" {
		t.Errorf("got %s, want 10.12 (half-even rounding)", a.String())
	}
}
