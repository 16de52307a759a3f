// Package entity implements the new-entity detector (§4.E) and the
// idempotent entity creator (§4.F) that sit between row validation and the
// batch writer.
package entity

import (
	"context"
	"fmt"
	"sort"

	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/ingest/parser"
	"github.com/paynet/trustrecon/internal/money"
)

// Detector diffs a batch's parsed rows against the master tables and
// produces the §4.E new-entity report.
type Detector struct {
	store *db.Store
}

func NewDetector(store *db.Store) *Detector {
	return &Detector{store: store}
}

// Detect computes the report for the set of valid rows in a batch. A
// row's goalTransactionCode grouping is not needed here — only the
// distinct client/account/goal keys and, for goals, the fund-distribution
// signature per goal.
func (d *Detector) Detect(ctx context.Context, rows []parser.FundRow) (*db.NewEntitiesReport, error) {
	clientNames := distinctStrings(rows, func(r parser.FundRow) string { return r.ClientName })
	accountNumbers := distinctStrings(rows, func(r parser.FundRow) string { return r.AccountNumber })
	goalNumbers := distinctStrings(rows, func(r parser.FundRow) string { return r.GoalNumber })

	existingClients, err := d.store.LookupClientsByName(ctx, clientNames)
	if err != nil {
		return nil, fmt.Errorf("entity: detect clients: %w", err)
	}
	existingAccounts, err := d.store.LookupAccountsByNumber(ctx, accountNumbers)
	if err != nil {
		return nil, fmt.Errorf("entity: detect accounts: %w", err)
	}
	existingGoals, err := d.store.LookupGoalsByNumber(ctx, goalNumbers)
	if err != nil {
		return nil, fmt.Errorf("entity: detect goals: %w", err)
	}

	report := &db.NewEntitiesReport{}

	report.NewClients = summarize(rows, clientNames, existingClients,
		func(r parser.FundRow) string { return r.ClientName },
		func(name string) bool { _, ok := existingClients[name]; return ok })

	report.NewAccounts = summarize(rows, accountNumbers, nil,
		func(r parser.FundRow) string { return r.AccountNumber },
		func(num string) bool { _, ok := existingAccounts[num]; return ok })

	for _, goalNumber := range goalNumbers {
		if _, ok := existingGoals[goalNumber]; ok {
			continue
		}
		var goalRows []parser.FundRow
		for _, r := range rows {
			if r.GoalNumber == goalNumber {
				goalRows = append(goalRows, r)
			}
		}
		summary := summarizeOne(goalRows, goalNumber)
		report.NewGoals = append(report.NewGoals, db.NewGoalSummary{
			NewEntitySummary: summary,
			FundDistribution: modeFundDistribution(goalRows),
		})
	}
	sort.Slice(report.NewGoals, func(i, j int) bool { return report.NewGoals[i].Key < report.NewGoals[j].Key })

	return report, nil
}

// Status reports whether a report requires approval before the entity
// creator may run.
func Status(report *db.NewEntitiesReport) db.NewEntitiesStatus {
	if report == nil || (len(report.NewClients) == 0 && len(report.NewAccounts) == 0 && len(report.NewGoals) == 0) {
		return db.NewEntitiesNone
	}
	return db.NewEntitiesPending
}

func distinctStrings(rows []parser.FundRow, get func(parser.FundRow) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		k := get(r)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func summarize(rows []parser.FundRow, keys []string, _ map[string]db.Client, get func(parser.FundRow) string, exists func(string) bool) []db.NewEntitySummary {
	var out []db.NewEntitySummary
	for _, k := range keys {
		if exists(k) {
			continue
		}
		var keyRows []parser.FundRow
		for _, r := range rows {
			if get(r) == k {
				keyRows = append(keyRows, r)
			}
		}
		out = append(out, summarizeOne(keyRows, k))
	}
	return out
}

func summarizeOne(rows []parser.FundRow, key string) db.NewEntitySummary {
	total := money.ZeroAmount
	for _, r := range rows {
		total = total.Add(r.Amount)
	}
	return db.NewEntitySummary{Key: key, TransactionCount: len(rows), TotalAmount: total}
}

// modeFundDistribution computes the mode of per-group fund-distribution
// signatures across a goal's rows (grouped by goalTransactionCode day),
// falling back to an equal split across the funds actually observed
// (§4.E: "falling back to equal split across observed funds").
func modeFundDistribution(rows []parser.FundRow) map[string]float64 {
	groups, _, err := groupByDay(rows)
	if err != nil || len(groups) == 0 {
		return equalSplit(rows)
	}

	type signature string
	counts := make(map[signature]int)
	distributions := make(map[signature]map[string]float64)
	for _, groupRows := range groups {
		dist := distributionOf(groupRows)
		if len(dist) == 0 {
			continue
		}
		sig := signatureOf(dist)
		counts[sig]++
		distributions[sig] = dist
	}

	var bestSig signature
	best := -1
	for sig, n := range counts {
		if n > best {
			best, bestSig = n, sig
		}
	}
	if best <= 0 {
		return equalSplit(rows)
	}
	return distributions[bestSig]
}

func groupByDay(rows []parser.FundRow) (map[string][]parser.FundRow, []string, error) {
	groups := make(map[string][]parser.FundRow)
	var order []string
	for _, r := range rows {
		key := r.TransactionDate.Format("2006-01-02")
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	return groups, order, nil
}

func distributionOf(rows []parser.FundRow) map[string]float64 {
	total := money.ZeroAmount
	perFund := make(map[string]money.Amount)
	for _, r := range rows {
		total = total.Add(r.Amount)
		perFund[r.FundCode] = perFund[r.FundCode].Add(r.Amount)
	}
	out := make(map[string]float64)
	if total.IsZero() {
		return out
	}
	for fc, amt := range perFund {
		out[fc] = amt.Decimal().Div(total.Decimal()).InexactFloat64()
	}
	return out
}

func equalSplit(rows []parser.FundRow) map[string]float64 {
	funds := make(map[string]bool)
	for _, r := range rows {
		funds[r.FundCode] = true
	}
	if len(funds) == 0 {
		return map[string]float64{}
	}
	share := 1.0 / float64(len(funds))
	out := make(map[string]float64, len(funds))
	for fc := range funds {
		out[fc] = share
	}
	return out
}

func signatureOf(dist map[string]float64) string {
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sig := ""
	for _, k := range keys {
		sig += fmt.Sprintf("%s=%.4f;", k, dist[k])
	}
	return sig
}
