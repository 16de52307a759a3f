package parser

import "github.com/paynet/trustrecon/internal/money"

// parseFundRecord converts one raw row into a FundRow using a resolved
// column map, tolerating cell-level currency/date noise (spec.md §4.B).
func parseFundRecord(record []string, cols ColumnMap, rowNumber int) (FundRow, *RowError) {
	get := func(field string) string { return cols.get(record, field) }

	txDate, err := ParseDate(get("transactionDate"))
	if err != nil {
		return FundRow{}, &RowError{RowNumber: rowNumber, Field: "transactionDate", Message: err.Error()}
	}
	dateCreated, err := ParseDate(get("dateCreated"))
	if err != nil {
		return FundRow{}, &RowError{RowNumber: rowNumber, Field: "dateCreated", Message: err.Error()}
	}
	amount, err := ParseAmount(get("amount"))
	if err != nil {
		return FundRow{}, &RowError{RowNumber: rowNumber, Field: "amount", Message: err.Error()}
	}
	units, err := ParseUnits(get("units"))
	if err != nil {
		return FundRow{}, &RowError{RowNumber: rowNumber, Field: "units", Message: err.Error()}
	}
	bid, err := ParseAmount(get("bidPrice"))
	if err != nil {
		return FundRow{}, &RowError{RowNumber: rowNumber, Field: "bidPrice", Message: err.Error()}
	}
	mid, err := ParseAmount(get("midPrice"))
	if err != nil {
		return FundRow{}, &RowError{RowNumber: rowNumber, Field: "midPrice", Message: err.Error()}
	}
	offer, err := ParseAmount(get("offerPrice"))
	if err != nil {
		return FundRow{}, &RowError{RowNumber: rowNumber, Field: "offerPrice", Message: err.Error()}
	}

	return FundRow{
		RowNumber:       rowNumber,
		TransactionDate: txDate,
		ClientName:      get("clientName"),
		FundCode:        get("fundCode"),
		Amount:          amount,
		Units:           units,
		TransactionType: get("transactionType"),
		Bid:             bid,
		Mid:             mid,
		Offer:           offer,
		DateCreated:     dateCreated,
		GoalTitle:       get("goalTitle"),
		GoalNumber:      get("goalNumber"),
		AccountNumber:   get("accountNumber"),
		AccountType:     get("accountType"),
		AccountCategory: get("accountCategory"),
		TransactionID:   get("transactionId"),
		Source:          get("source"),
		SponsorCode:     get("sponsorCode"),
	}, nil
}

func parseBankRecord(record []string, cols BankColumnMap, rowNumber int) (BankRow, *RowError) {
	get := func(field string) string { return cols.base.get(record, field) }

	txDate, err := ParseDate(get("date"))
	if err != nil {
		return BankRow{}, &RowError{RowNumber: rowNumber, Field: "date", Message: err.Error()}
	}
	total, err := ParseAmount(get("totalAmount"))
	if err != nil {
		return BankRow{}, &RowError{RowNumber: rowNumber, Field: "totalAmount", Message: err.Error()}
	}

	pct := make(map[string]float64, len(bankFundCodes))
	amt := make(map[string]money.Amount, len(bankFundCodes))
	for _, fc := range bankFundCodes {
		if idx, ok := cols.percentByFund[fc]; ok && idx < len(record) {
			p, err := ParsePercent(record[idx])
			if err != nil {
				return BankRow{}, &RowError{RowNumber: rowNumber, Field: fc + "Percent", Message: err.Error()}
			}
			pct[fc] = p
		}
		if idx, ok := cols.amountByFund[fc]; ok && idx < len(record) {
			raw := record[idx]
			if raw == "" {
				continue
			}
			a, err := ParseAmount(raw)
			if err != nil {
				return BankRow{}, &RowError{RowNumber: rowNumber, Field: fc + "Amount", Message: err.Error()}
			}
			amt[fc] = a
		}
	}

	return BankRow{
		RowNumber:       rowNumber,
		TransactionDate: txDate,
		FirstName:       get("firstName"),
		LastName:        get("lastName"),
		AccountNumber:   get("accountNumber"),
		GoalName:        get("goalName"),
		GoalNumber:      get("goalNumber"),
		TotalAmount:     total,
		PercentByFund:   pct,
		AmountByFund:    amt,
		TransactionType: get("transactionType"),
		TransactionID:   get("transactionId"),
	}, nil
}
