package match

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/money"
)

// matchExact implements pass 1 (§4.L): same transactionId, amount within
// tolerance. Confidence is always 1.0 — an id match is as sure as this
// system gets.
func matchExact(bank []db.BankGoalTransaction, fund []db.FundCandidate, cfg Config) ([]Match, map[uuid.UUID]bool, map[string]bool) {
	matchedBank := make(map[uuid.UUID]bool)
	matchedFund := make(map[string]bool)
	var matches []Match

	for _, b := range bank {
		if b.TransactionID == "" {
			continue
		}
		for _, f := range fund {
			if matchedFund[f.Code] || f.TransactionID == "" || f.TransactionID != b.TransactionID {
				continue
			}
			tol := cfg.tolerance(f.TotalAmount)
			if !money.WithinTolerance(b.TotalAmount, f.TotalAmount, tol) {
				continue
			}
			matches = append(matches, Match{BankIDs: []uuid.UUID{b.ID}, FundCodes: []string{f.Code}, Kind: KindExact, Confidence: 1.0})
			matchedBank[b.ID] = true
			matchedFund[f.Code] = true
			break
		}
	}
	return matches, matchedBank, matchedFund
}

type amountCandidate struct {
	bi, fi     int
	dateDiff   int
	amountDiff money.Amount
	confidence float64
}

// matchAmountWindow implements pass 2 (§4.L): greedy pairing across every
// remaining (b,f) within a 30-day window and the spec's tolerance,
// breaking ties by date difference, then amount difference, then the
// bank row's id for determinism.
func matchAmountWindow(bank []db.BankGoalTransaction, fund []db.FundCandidate, cfg Config) ([]Match, map[uuid.UUID]bool, map[string]bool) {
	var candidates []amountCandidate
	for bi, b := range bank {
		for fi, f := range fund {
			if b.Type != f.Type {
				continue
			}
			dateDiff := diffDays(b.TransactionDate, f.TransactionDate)
			if dateDiff > cfg.DateWindowDays {
				continue
			}
			tol := cfg.tolerance(f.TotalAmount)
			amountDiff := b.TotalAmount.Sub(f.TotalAmount).Abs()
			if amountDiff.GreaterThan(tol) {
				continue
			}
			candidates = append(candidates, amountCandidate{
				bi: bi, fi: fi, dateDiff: dateDiff, amountDiff: amountDiff,
				confidence: amountConfidence(dateDiff, cfg.DateWindowDays, amountDiff, tol),
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.dateDiff != cj.dateDiff {
			return ci.dateDiff < cj.dateDiff
		}
		if cmp := ci.amountDiff.Cmp(cj.amountDiff); cmp != 0 {
			return cmp < 0
		}
		return bank[ci.bi].ID.String() < bank[cj.bi].ID.String()
	})

	usedBank := make(map[int]bool)
	usedFund := make(map[int]bool)
	matchedBank := make(map[uuid.UUID]bool)
	matchedFund := make(map[string]bool)
	var matches []Match
	for _, c := range candidates {
		if usedBank[c.bi] || usedFund[c.fi] {
			continue
		}
		usedBank[c.bi] = true
		usedFund[c.fi] = true
		b, f := bank[c.bi], fund[c.fi]
		matches = append(matches, Match{BankIDs: []uuid.UUID{b.ID}, FundCodes: []string{f.Code}, Kind: KindAmount, Confidence: c.confidence})
		matchedBank[b.ID] = true
		matchedFund[f.Code] = true
	}
	return matches, matchedBank, matchedFund
}

// amountConfidence implements §4.L's pass-2 formula:
// 1 − min(dateDiffDays/30, 1)·0.3 − min(amountDiff/τ, 1)·0.2, clamped to [0,1].
func amountConfidence(dateDiffDays, window int, amountDiff, tolerance money.Amount) float64 {
	dateTerm := math.Min(float64(dateDiffDays)/float64(window), 1.0) * 0.3
	var amountRatio float64
	if !tolerance.IsZero() {
		amountRatio = amountDiff.Decimal().InexactFloat64() / tolerance.Decimal().InexactFloat64()
	}
	amountTerm := math.Min(amountRatio, 1.0) * 0.2
	conf := 1.0 - dateTerm - amountTerm
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// matchSplits implements pass 3 (§4.L): within a single calendar day on
// the goal, look for a subset of the remaining bank rows summing (within
// tolerance) to a single remaining fund code's amount (split_bank_to_fund)
// and the symmetric split_fund_to_bank. Subsets are capped at
// cfg.MaxSplitLegs; larger groups are left unmatched.
func matchSplits(bank []db.BankGoalTransaction, fund []db.FundCandidate, cfg Config) ([]Match, map[uuid.UUID]bool, map[string]bool) {
	matchedBank := make(map[uuid.UUID]bool)
	matchedFund := make(map[string]bool)
	var matches []Match

	byDayBank := groupBankByDay(bank)
	byDayFund := groupFundByDay(fund)

	for day, fs := range byDayFund {
		bs := byDayBank[day]
		if len(bs) < 2 {
			continue
		}
		for _, f := range fs {
			if matchedFund[f.Code] {
				continue
			}
			var amounts []money.Amount
			var candidateIdx []int
			for i, b := range bs {
				if matchedBank[b.ID] {
					continue
				}
				amounts = append(amounts, b.TotalAmount)
				candidateIdx = append(candidateIdx, i)
			}
			if len(amounts) < 2 {
				continue
			}
			subset, found := findSubsetSum(amounts, f.TotalAmount, cfg.tolerance(f.TotalAmount), cfg.MaxSplitLegs)
			if !found {
				continue
			}
			var ids []uuid.UUID
			for _, si := range subset {
				id := bs[candidateIdx[si]].ID
				ids = append(ids, id)
				matchedBank[id] = true
			}
			matchedFund[f.Code] = true
			matches = append(matches, Match{BankIDs: ids, FundCodes: []string{f.Code}, Kind: KindSplitBankToFund, Confidence: splitConfidence(len(ids))})
		}
	}

	for day, bs := range byDayBank {
		fs := byDayFund[day]
		if len(fs) < 2 {
			continue
		}
		for _, b := range bs {
			if matchedBank[b.ID] {
				continue
			}
			var amounts []money.Amount
			var codes []string
			for _, f := range fs {
				if matchedFund[f.Code] {
					continue
				}
				amounts = append(amounts, f.TotalAmount)
				codes = append(codes, f.Code)
			}
			if len(amounts) < 2 {
				continue
			}
			subset, found := findSubsetSum(amounts, b.TotalAmount, cfg.tolerance(b.TotalAmount), cfg.MaxSplitLegs)
			if !found {
				continue
			}
			var fcodes []string
			for _, si := range subset {
				fcodes = append(fcodes, codes[si])
				matchedFund[codes[si]] = true
			}
			matchedBank[b.ID] = true
			matches = append(matches, Match{BankIDs: []uuid.UUID{b.ID}, FundCodes: fcodes, Kind: KindSplitFundToBank, Confidence: splitConfidence(len(fcodes))})
		}
	}

	return matches, matchedBank, matchedFund
}

// splitConfidence implements §4.L's pass-3 formula: 0.9 minus 0.05 per
// extra leg beyond two.
func splitConfidence(legs int) float64 {
	c := 0.9 - 0.05*float64(legs-2)
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

// findSubsetSum searches for a subset of items (capped at maxLegs
// elements) summing to target within tolerance, depth-first with an
// early return on the first fit. Day-scoped transaction counts for one
// goal are small in practice; this is a plain subset-sum search, not an
// optimized one, since the input size never warrants it here.
func findSubsetSum(items []money.Amount, target, tolerance money.Amount, maxLegs int) ([]int, bool) {
	n := len(items)
	var best []int
	var search func(start int, chosen []int, sum money.Amount)
	search = func(start int, chosen []int, sum money.Amount) {
		if best != nil {
			return
		}
		if len(chosen) >= 2 && money.WithinTolerance(sum, target, tolerance) {
			best = append([]int{}, chosen...)
			return
		}
		if len(chosen) >= maxLegs || start >= n {
			return
		}
		for i := start; i < n && best == nil; i++ {
			search(i+1, append(chosen, i), sum.Add(items[i]))
		}
	}
	search(0, nil, money.ZeroAmount)
	if best == nil {
		return nil, false
	}
	return best, true
}

func groupBankByDay(bank []db.BankGoalTransaction) map[string][]db.BankGoalTransaction {
	out := make(map[string][]db.BankGoalTransaction)
	for _, b := range bank {
		key := b.TransactionDate.Format("2006-01-02")
		out[key] = append(out[key], b)
	}
	return out
}

func groupFundByDay(fund []db.FundCandidate) map[string][]db.FundCandidate {
	out := make(map[string][]db.FundCandidate)
	for _, f := range fund {
		key := f.TransactionDate.Format("2006-01-02")
		out[key] = append(out[key], f)
	}
	return out
}

func diffDays(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
