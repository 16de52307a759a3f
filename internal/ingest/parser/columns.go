package parser

import (
	"fmt"
	"strings"
)

// normalizeHeader lower-cases a header cell and strips interior whitespace
// and underscores, so "Transaction Date", "transaction_date" and
// "TRANSACTIONDATE" all resolve to the same alias key.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "")
	h = strings.ReplaceAll(h, "_", "")
	h = strings.ReplaceAll(h, "-", "")
	return h
}

// fundColumnAliases maps every accepted header spelling to its canonical
// fund-feed field name (spec.md §6: "alias-tolerant, case-insensitive").
var fundColumnAliases = map[string]string{
	"transactiondate": "transactionDate",
	"clientname":      "clientName",
	"fundcode":        "fundCode",
	"amount":          "amount",
	"units":           "units",
	"transactiontype": "transactionType",
	"type":            "transactionType",
	"bidprice":        "bidPrice",
	"bid":             "bidPrice",
	"offerprice":      "offerPrice",
	"offer":           "offerPrice",
	"midprice":        "midPrice",
	"mid":             "midPrice",
	"datecreated":     "dateCreated",
	"goaltitle":       "goalTitle",
	"goalnumber":      "goalNumber",
	"accountnumber":   "accountNumber",
	"accounttype":     "accountType",
	"accountcategory": "accountCategory",
	"transactionid":   "transactionId",
	"source":          "source",
	"sponsorcode":     "sponsorCode",
}

var fundRequiredFields = []string{
	"transactionDate", "clientName", "fundCode", "amount", "units", "transactionType",
	"bidPrice", "midPrice", "offerPrice", "dateCreated", "goalTitle", "goalNumber",
	"accountNumber", "accountType", "accountCategory", "transactionId", "source",
}

// ColumnMap resolves a header row's column indexes for a canonical field
// set, built once per file and then reused for every data row.
type ColumnMap struct {
	index map[string]int
}

func (m ColumnMap) get(row []string, field string) string {
	idx, ok := m.index[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ResolveFundColumns builds the column map for a fund-feed header row and
// reports any required field that has no matching column.
func ResolveFundColumns(header []string) (ColumnMap, error) {
	idx := make(map[string]int)
	for i, h := range header {
		if canonical, ok := fundColumnAliases[normalizeHeader(h)]; ok {
			if _, exists := idx[canonical]; !exists {
				idx[canonical] = i
			}
		}
	}
	var missing []string
	for _, f := range fundRequiredFields {
		if _, ok := idx[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return ColumnMap{}, fmt.Errorf("parser: fund feed missing required columns: %s", strings.Join(missing, ", "))
	}
	return ColumnMap{index: idx}, nil
}

// bankBaseAliases maps the bank feed's non-fund-code columns. Singular and
// plural variants are both accepted per spec.md §4.K.
var bankBaseAliases = map[string]string{
	"date":              "date",
	"firstname":         "firstName",
	"lastname":          "lastName",
	"accnumber":         "accountNumber",
	"accountnumber":     "accountNumber",
	"goalname":          "goalName",
	"goalnames":         "goalName",
	"goalnumber":        "goalNumber",
	"goalnumbers":       "goalNumber",
	"totalamount":       "totalAmount",
	"transactiontype":   "transactionType",
	"transactiontypes":  "transactionType",
	"transactionid":     "transactionId",
	"transactionids":    "transactionId",
}

var bankFundCodes = []string{"xummf", "xubf", "xudef", "xuref"}

// BankColumnMap additionally tracks, per fund code, the percent column
// index and the amount column index — resolved from the duplicate-header
// run described in spec.md §6 ("header parser must preserve the second
// occurrence of each fund code as amount").
type BankColumnMap struct {
	base         ColumnMap
	percentByFund map[string]int
	amountByFund  map[string]int
}

// ResolveBankColumns builds the column map for a bank-feed header row,
// resolving the duplicate XUMMF/XUBF/XUDEF/XUREF run: the first occurrence
// of each fund code is its percentage column, the second its amount column.
func ResolveBankColumns(header []string) (BankColumnMap, error) {
	base := make(map[string]int)
	percent := make(map[string]int)
	amount := make(map[string]int)
	seen := make(map[string]int) // fund code -> occurrences so far

	for i, h := range header {
		norm := normalizeHeader(h)
		if canonical, ok := bankBaseAliases[norm]; ok {
			if _, exists := base[canonical]; !exists {
				base[canonical] = i
			}
			continue
		}
		for _, fc := range bankFundCodes {
			if norm == fc {
				seen[fc]++
				if seen[fc] == 1 {
					percent[fc] = i
				} else {
					amount[fc] = i
				}
				break
			}
		}
	}

	var missing []string
	for _, f := range []string{"date", "accountNumber", "goalNumber", "totalAmount", "transactionType"} {
		if _, ok := base[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return BankColumnMap{}, fmt.Errorf("parser: bank feed missing required columns: %s", strings.Join(missing, ", "))
	}
	return BankColumnMap{base: ColumnMap{index: base}, percentByFund: percent, amountByFund: amount}, nil
}
