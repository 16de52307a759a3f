// Package match implements the three-pass fuzzy matcher that reconciles
// bank-statement transactions against fund-system goal transactions, plus
// a reversal-netting post-pass, per goal (§4.L). Each pass is a function
// over the candidate slices handed to it: it produces a plan — which
// bank/fund rows pair off, at what confidence — without mutating its
// inputs; the runner decides what to do with the plan (persist a match,
// move to the next pass, or carry leftovers into the reversal pass).
package match

import (
	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/money"
)

// Kind names which pass produced a Match.
type Kind string

const (
	KindExact           Kind = "exact"
	KindAmount          Kind = "amount"
	KindSplitBankToFund Kind = "split_bank_to_fund"
	KindSplitFundToBank Kind = "split_fund_to_bank"
)

// Match is one verdict the matcher reached: one or more bank rows tied to
// one or more fund codes (more than one of either only for a split).
type Match struct {
	BankIDs    []uuid.UUID
	FundCodes  []string
	Kind       Kind
	Confidence float64
}

// Config tunes the matcher, grounded on the reference reconciliation
// service's MatchingConfig shape (DateToleranceDays, AmountTolerancePercent,
// MinConfidenceScore, MaxCandidatesPerTransaction) but narrowed to what
// this system leaves as an operator choice — the tolerance function and
// confidence formulas themselves are pinned by spec.md §4.L, not
// configurable.
type Config struct {
	// DateWindowDays bounds pass 2's date proximity.
	DateWindowDays int
	// TolerancePercent and ToleranceFloor compute τ(x) = max(pct·|x|, floor).
	TolerancePercent float64
	ToleranceFloor   money.Amount
	// MaxSplitLegs bounds pass 3's subset search.
	MaxSplitLegs int
	// BatchSize is the operator-chosen goal-batch size the runner resumes
	// by (100 / 500 / 1 000 / 5 000).
	BatchSize int
}

func DefaultConfig() Config {
	return Config{
		DateWindowDays:   30,
		TolerancePercent: 0.01,
		ToleranceFloor:   money.NewAmountFromFloat(1000),
		MaxSplitLegs:     8,
		BatchSize:        500,
	}
}

func (c Config) tolerance(x money.Amount) money.Amount {
	return money.Tolerance(x, c.TolerancePercent, c.ToleranceFloor)
}

// passFunc is the shape every pass implements: given the candidates still
// in play, return the matches it found and which bank ids / fund codes it
// consumed, leaving the caller to compute what remains for the next pass.
type passFunc func(bank []db.BankGoalTransaction, fund []db.FundCandidate, cfg Config) (matches []Match, matchedBank map[uuid.UUID]bool, matchedFund map[string]bool)

// RunPasses runs the exact, amount-window, and split passes in order,
// each operating only on what the previous pass left unmatched.
func RunPasses(bank []db.BankGoalTransaction, fund []db.FundCandidate, cfg Config) (matches []Match, remainingBank []db.BankGoalTransaction, remainingFund []db.FundCandidate) {
	remainingBank = bank
	remainingFund = fund
	for _, pass := range []passFunc{matchExact, matchAmountWindow, matchSplits} {
		m, matchedBank, matchedFund := pass(remainingBank, remainingFund, cfg)
		matches = append(matches, m...)
		remainingBank = filterBank(remainingBank, matchedBank)
		remainingFund = filterFund(remainingFund, matchedFund)
	}
	return matches, remainingBank, remainingFund
}

func filterBank(bank []db.BankGoalTransaction, matched map[uuid.UUID]bool) []db.BankGoalTransaction {
	out := make([]db.BankGoalTransaction, 0, len(bank))
	for _, b := range bank {
		if !matched[b.ID] {
			out = append(out, b)
		}
	}
	return out
}

func filterFund(fund []db.FundCandidate, matched map[string]bool) []db.FundCandidate {
	out := make([]db.FundCandidate, 0, len(fund))
	for _, f := range fund {
		if !matched[f.Code] {
			out = append(out, f)
		}
	}
	return out
}
