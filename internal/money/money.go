// Package money provides fixed-point decimal arithmetic for amounts and
// units. Amounts are rounded half-even to 2 places; units to 4 places.
// float64 is never used for money — every monetary comparison in this
// repository goes through this package.
package money

import "github.com/shopspring/decimal"

// AmountScale is the number of fractional digits a currency amount carries.
const AmountScale = 2

// UnitScale is the number of fractional digits a unit holding carries.
const UnitScale = 4

// Amount is a currency amount rounded half-even to AmountScale places.
type Amount struct{ d decimal.Decimal }

// Units is a fund-unit holding rounded half-even to UnitScale places.
type Units struct{ d decimal.Decimal }

// NewAmount builds an Amount from a decimal string such as "1050.00".
func NewAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{d.RoundBank(AmountScale)}, nil
}

// NewAmountFromFloat builds an Amount from a float64. Prefer NewAmount for
// anything parsed from an external feed; this exists for tests and for
// constants computed in code.
func NewAmountFromFloat(f float64) Amount {
	return Amount{decimal.NewFromFloat(f).RoundBank(AmountScale)}
}

// ZeroAmount is the zero amount.
var ZeroAmount = Amount{decimal.Zero}

func (a Amount) Decimal() decimal.Decimal { return a.d }
func (a Amount) String() string           { return a.d.StringFixed(AmountScale) }
func (a Amount) IsZero() bool             { return a.d.IsZero() }
func (a Amount) Sign() int                { return a.d.Sign() }

func (a Amount) Add(b Amount) Amount { return Amount{a.d.Add(b.d).RoundBank(AmountScale)} }
func (a Amount) Sub(b Amount) Amount { return Amount{a.d.Sub(b.d).RoundBank(AmountScale)} }
func (a Amount) Neg() Amount         { return Amount{a.d.Neg()} }
func (a Amount) Abs() Amount         { return Amount{a.d.Abs()} }

func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }
func (a Amount) LessThan(b Amount) bool    { return a.d.LessThan(b.d) }
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }

// MulFrac multiplies the amount by a plain fraction (e.g. a tolerance
// percent expressed as 0.01) and rounds the result half-even.
func (a Amount) MulFrac(frac float64) Amount {
	return Amount{a.d.Mul(decimal.NewFromFloat(frac)).RoundBank(AmountScale)}
}

// Div divides an amount by a price, producing a Units value rounded to
// UnitScale places. Used for unitsExpected = amount / offerPrice. Divides
// to decimal's default high precision first and only rounds (half-even)
// once, at the end, rather than using DivRound (which rounds half away
// from zero).
func (a Amount) Div(price Amount) (Units, error) {
	if price.d.IsZero() {
		return Units{}, ErrDivideByZero
	}
	return Units{a.d.Div(price.d).RoundBank(UnitScale)}, nil
}

func (u Units) Decimal() decimal.Decimal { return u.d }
func (u Units) String() string           { return u.d.StringFixed(UnitScale) }
func (u Units) IsZero() bool             { return u.d.IsZero() }

func NewUnits(s string) (Units, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Units{}, err
	}
	return Units{d.RoundBank(UnitScale)}, nil
}

func (u Units) Add(v Units) Units { return Units{u.d.Add(v.d).RoundBank(UnitScale)} }
func (u Units) Sub(v Units) Units { return Units{u.d.Sub(v.d).RoundBank(UnitScale)} }
func (u Units) Neg() Units        { return Units{u.d.Neg()} }
func (u Units) Abs() Units        { return Units{u.d.Abs()} }
func (u Units) Mul(price Amount) Amount {
	return Amount{u.d.Mul(price.d).RoundBank(AmountScale)}
}

// ErrDivideByZero is returned by Div when the price is zero.
var ErrDivideByZero = divideByZeroErr{}

type divideByZeroErr struct{}

func (divideByZeroErr) Error() string { return "money: division by zero price" }

// WithinTolerance reports whether |a-b| <= tolerance.
func WithinTolerance(a, b, tolerance Amount) bool {
	diff := a.Sub(b).Abs()
	return !diff.GreaterThan(tolerance)
}

// Tolerance computes max(pctOfAbs * |x|, floor) — the τ(x) from the spec's
// reconciliation tolerance definition.
func Tolerance(x Amount, pct float64, floor Amount) Amount {
	pctAmt := x.Abs().MulFrac(pct)
	if pctAmt.GreaterThan(floor) {
		return pctAmt
	}
	return floor
}
