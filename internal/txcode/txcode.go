// Package txcode generates and parses the composite goalTransactionCode
// that identifies a virtual GoalTransaction: the grouping key shared by the
// (up to four) FundTransaction legs of one goal's movement on one day.
package txcode

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ErrMissingField is returned by Generate when any component is empty.
var ErrMissingField = fmt.Errorf("txcode: all of date, accountNumber, goalNumber are required")

// ErrMalformed is returned by Parse when the code does not have exactly
// three '|'-separated fields or the date segment doesn't parse.
type ErrMalformed struct {
	Code string
	Err  error
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("txcode: malformed code %q: %v", e.Code, e.Err)
}
func (e *ErrMalformed) Unwrap() error { return e.Err }

// Generate builds "YYYY-MM-DD|accountNumber|goalNumber". date is truncated
// to the day; time-of-day is not part of the code.
func Generate(date time.Time, accountNumber, goalNumber string) (string, error) {
	if date.IsZero() || accountNumber == "" || goalNumber == "" {
		return "", ErrMissingField
	}
	return strings.Join([]string{date.Format(dateLayout), accountNumber, goalNumber}, "|"), nil
}

// Parse splits a goalTransactionCode back into its components. It is the
// exact inverse of Generate: Parse(Generate(d, a, g)) == (d, a, g, nil).
func Parse(code string) (date time.Time, accountNumber, goalNumber string, err error) {
	parts := strings.Split(code, "|")
	if len(parts) != 3 {
		return time.Time{}, "", "", &ErrMalformed{Code: code, Err: fmt.Errorf("expected 3 fields, got %d", len(parts))}
	}
	date, err = time.Parse(dateLayout, parts[0])
	if err != nil {
		return time.Time{}, "", "", &ErrMalformed{Code: code, Err: err}
	}
	if parts[1] == "" || parts[2] == "" {
		return time.Time{}, "", "", &ErrMalformed{Code: code, Err: fmt.Errorf("empty accountNumber or goalNumber")}
	}
	return date, parts[1], parts[2], nil
}

// Row is the minimal shape GroupByCode needs from a parsed fund-transaction
// row: enough to compute its code and preserve it in the output.
type Row interface {
	TxDate() time.Time
	AccountNo() string
	GoalNo() string
}

// GroupByCode groups rows by their goalTransactionCode, preserving the
// order in which rows with the same code were first seen (stable grouping,
// per spec.md §5's "rows within a batch retain ingest order").
func GroupByCode[R Row](rows []R) (map[string][]R, []string, error) {
	groups := make(map[string][]R)
	var order []string
	for _, r := range rows {
		code, err := Generate(r.TxDate(), r.AccountNo(), r.GoalNo())
		if err != nil {
			return nil, nil, err
		}
		if _, ok := groups[code]; !ok {
			order = append(order, code)
		}
		groups[code] = append(groups[code], r)
	}
	return groups, order, nil
}
