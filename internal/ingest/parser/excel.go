package parser

import (
	"context"
	"fmt"

	"github.com/qax-os/excelize/v2"
)

// firstSheetRows opens an xlsx file and returns a streaming row iterator
// over its first sheet, the same excelize.Rows() usage the reference
// streaming readers use to avoid materializing the whole sheet.
func firstSheetRows(path string) (*excelize.File, *excelize.Rows, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("parser: open xlsx %s: %w", path, err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, nil, fmt.Errorf("parser: xlsx %s has no sheets", path)
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("parser: open sheet rows: %w", err)
	}
	return f, rows, nil
}

// ParseFundExcel streams a fund-feed .xlsx file the same way ParseFundCSV
// streams a .csv file.
func ParseFundExcel(ctx context.Context, path string) (<-chan FundResult, error) {
	f, rows, err := firstSheetRows(path)
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		f.Close()
		return nil, fmt.Errorf("parser: xlsx %s has no header row", path)
	}
	header, err := rows.Columns()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parser: read xlsx header: %w", err)
	}
	cols, err := ResolveFundColumns(header)
	if err != nil {
		f.Close()
		return nil, err
	}

	out := make(chan FundResult)
	go func() {
		defer f.Close()
		defer close(out)
		rowNumber := 1
		for rows.Next() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			rowNumber++
			record, err := rows.Columns()
			if err != nil {
				out <- FundResult{Err: &RowError{RowNumber: rowNumber, Message: fmt.Sprintf("malformed xlsx row: %v", err)}}
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

// ParseBankExcel is ParseFundExcel's counterpart for the bank-statement
// feed.
func ParseBankExcel(ctx context.Context, path string) (<-chan BankResult, error) {
	f, rows, err := firstSheetRows(path)
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		f.Close()
		return nil, fmt.Errorf("parser: xlsx %s has no header row", path)
	}
	header, err := rows.Columns()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parser: read xlsx header: %w", err)
	}
	cols, err := ResolveBankColumns(header)
	if err != nil {
		f.Close()
		return nil, err
	}

	out := make(chan BankResult)
	go func() {
		defer f.Close()
		defer close(out)
		rowNumber := 1
		for rows.Next() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			rowNumber++
			record, err := rows.Columns()
			if err != nil {
				out <- BankResult{Err: &RowError{RowNumber: rowNumber, Message: fmt.Sprintf("malformed xlsx row: %v", err)}}
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
