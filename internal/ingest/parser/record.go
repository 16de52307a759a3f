// Package parser streams fund-feed and bank-feed rows out of CSV and Excel
// files without loading the whole file into memory, the way the reference
// import service streams transaction rows off a channel.
package parser

import (
	"time"

	"github.com/paynet/trustrecon/internal/money"
)

// FundRow is one parsed row of the fund-system feed (spec.md §6's
// fund-feed CSV schema).
type FundRow struct {
	RowNumber       int
	TransactionDate time.Time
	ClientName      string
	FundCode        string
	Amount          money.Amount
	Units           money.Units
	TransactionType string
	Bid, Offer, Mid money.Amount
	DateCreated     time.Time
	GoalTitle       string
	GoalNumber      string
	AccountNumber   string
	AccountType     string
	AccountCategory string
	TransactionID   string
	Source          string
	SponsorCode     string
}

func (r FundRow) TxDate() time.Time { return r.TransactionDate }
func (r FundRow) AccountNo() string { return r.AccountNumber }
func (r FundRow) GoalNo() string    { return r.GoalNumber }

// BankRow is one parsed row of the bank-statement feed (spec.md §6's
// bank-feed CSV schema, duplicate-header-run already resolved by BankColumnMap).
type BankRow struct {
	RowNumber       int
	TransactionDate time.Time
	FirstName       string
	LastName        string
	AccountNumber   string
	GoalName        string
	GoalNumber      string
	TotalAmount     money.Amount
	PercentByFund   map[string]float64
	AmountByFund    map[string]money.Amount
	TransactionType string
	TransactionID   string
}

func (r BankRow) TxDate() time.Time { return r.TransactionDate }
func (r BankRow) AccountNo() string { return r.AccountNumber }
func (r BankRow) GoalNo() string    { return r.GoalNumber }

// RowError is a row-level parse/validation failure, continued past rather
// than aborting the stream (spec.md §4.B: "on a malformed row, emits a
// row-level error and continues").
type RowError struct {
	RowNumber int
	Field     string
	Message   string
}

func (e RowError) Error() string { return e.Message }

// FundResult and BankResult are the elements of the streaming channels
// ParseFund/ParseBank produce: exactly one of Row or Err is set.
type FundResult struct {
	Row FundRow
	Err *RowError
}

type BankResult struct {
	Row BankRow
	Err *RowError
}
