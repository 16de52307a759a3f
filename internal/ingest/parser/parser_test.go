package parser

import (
	"context"
	"strings"
	"testing"
)

const fundHeader = "transactionDate,clientName,fundCode,amount,units,transactionType,bidPrice,offerPrice,midPrice,dateCreated,goalTitle,goalNumber,accountNumber,accountType,accountCategory,transactionId,source\n"

func TestParseFundCSV_AliasHeaderAndCurrencyNoise(t *testing.T) {
	data := strings.ToUpper(fundHeader) +
		"2025-01-02,Jane Doe,XUMMF,\"$1,050.00\",100.0000,deposit,10.00,10.50,10.25,2025-01-02,Retirement,G1,A1,personal,general,T1,web\n"

	ch, err := ParseFundCSV(context.Background(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseFundCSV: %v", err)
	}
	var results []FundResult
	for r := range ch {
		results = append(results, r)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 row, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if results[0].Row.Amount.String() != "1050.00" {
		t.Errorf("unexpected amount: %s", results[0].Row.Amount.String())
	}
	if results[0].Row.RowNumber != 2 {
		t.Errorf("expected rowNumber 2, got %d", results[0].Row.RowNumber)
	}
}

func TestParseFundCSV_MalformedRowContinues(t *testing.T) {
	data := fundHeader +
		"not-a-date,Jane Doe,XUMMF,1050.00,100.0000,deposit,10.00,10.50,10.25,2025-01-02,Retirement,G1,A1,personal,general,T1,web\n" +
		"2025-01-03,John Doe,XUBF,2000.00,190.0000,deposit,10.00,10.50,10.25,2025-01-03,Retirement,G1,A1,personal,general,T2,web\n"

	ch, err := ParseFundCSV(context.Background(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseFundCSV: %v", err)
	}
	var ok, bad int
	for r := range ch {
		if r.Err != nil {
			bad++
			if r.Err.RowNumber != 2 {
				t.Errorf("expected error on row 2, got %d", r.Err.RowNumber)
			}
			continue
		}
		ok++
	}
	if ok != 1 || bad != 1 {
		t.Fatalf("expected 1 ok + 1 error, got ok=%d bad=%d", ok, bad)
	}
}

func TestResolveFundColumns_MissingRequired(t *testing.T) {
	_, err := ResolveFundColumns([]string{"transactionDate", "clientName"})
	if err == nil {
		t.Fatal("expected error for missing required columns")
	}
}

func TestResolveBankColumns_DuplicateHeaderRun(t *testing.T) {
	header := strings.Split("Date,First Name,Last Name,Acc Number,Goal Name,Goal Number,Total Amount,XUMMF,XUBF,XUDEF,XUREF,XUMMF,XUBF,XUDEF,XUREF,Transaction Type,Transaction ID", ",")
	cols, err := ResolveBankColumns(header)
	if err != nil {
		t.Fatalf("ResolveBankColumns: %v", err)
	}
	if cols.percentByFund["xummf"] != 7 {
		t.Errorf("expected first XUMMF occurrence (percent) at index 7, got %d", cols.percentByFund["xummf"])
	}
	if cols.amountByFund["xummf"] != 11 {
		t.Errorf("expected second XUMMF occurrence (amount) at index 11, got %d", cols.amountByFund["xummf"])
	}
}

func TestParseDate_AllThreeFormats(t *testing.T) {
	cases := []string{"2025-01-02", "2-Jan-25", "02/01/2025"}
	for _, c := range cases {
		if _, err := ParseDate(c); err != nil {
			t.Errorf("ParseDate(%q): %v", c, err)
		}
	}
	if _, err := ParseDate("not-a-date"); err == nil {
		t.Error("expected error for unparseable date")
	}
}

func TestParsePercent_NormalizesToFraction(t *testing.T) {
	cases := map[string]float64{"25": 0.25, "0.25": 0.25, "25%": 0.25, "": 0}
	for in, want := range cases {
		got, err := ParsePercent(in)
		if err != nil {
			t.Fatalf("ParsePercent(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParsePercent(%q) = %v, want %v", in, got, want)
		}
	}
}
