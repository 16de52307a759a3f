package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
)

// ParseFundCSV streams a fund-feed CSV file row by row, emitting one
// FundResult per data row on the returned channel. The header row is read
// synchronously (so a malformed header fails fast, before streaming
// starts); the channel is closed when the reader is exhausted or ctx is
// canceled.
func ParseFundCSV(ctx context.Context, r io.Reader) (<-chan FundResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("parser: read fund csv header: %w", err)
	}
	cols, err := ResolveFundColumns(header)
	if err != nil {
		return nil, err
	}

	out := make(chan FundResult)
	go func() {
		defer close(out)
		rowNumber := 1 // header is row 1, per spec.md §4.B
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			record, err := cr.Read()
			if err == io.EOF {
				return
			}
			rowNumber++
			if err != nil {
				out <- FundResult{Err: &RowError{RowNumber: rowNumber, Message: fmt.Sprintf("malformed CSV row: %v", err)}}
				continue
			}
			if isBlankRecord(record) {
				continue
			}
			row, rerr := parseFundRecord(record, cols, rowNumber)
			if rerr != nil {
				out <- FundResult{Err: rerr}
				continue
			}
			out <- FundResult{Row: row}
		}
	}()
	return out, nil
}

// ParseBankCSV is ParseFundCSV's counterpart for the bank-statement feed.
func ParseBankCSV(ctx context.Context, r io.Reader) (<-chan BankResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("parser: read bank csv header: %w", err)
	}
	cols, err := ResolveBankColumns(header)
	if err != nil {
		return nil, err
	}

	out := make(chan BankResult)
	go func() {
		defer close(out)
		rowNumber := 1
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			record, err := cr.Read()
			if err == io.EOF {
				return
			}
			rowNumber++
			if err != nil {
				out <- BankResult{Err: &RowError{RowNumber: rowNumber, Message: fmt.Sprintf("malformed CSV row: %v", err)}}
				continue
			}
			if isBlankRecord(record) {
				continue
			}
			row, rerr := parseBankRecord(record, cols, rowNumber)
			if rerr != nil {
				out <- BankResult{Err: rerr}
				continue
			}
			out <- BankResult{Row: row}
		}
	}()
	return out, nil
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if f != "" {
			return false
		}
	}
	return true
}
