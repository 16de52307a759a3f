package txcode

import (
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

func TestGenerateParseRoundTrip(t *testing.T) {
	d := mustDate(t, "2025-01-02")
	code, err := Generate(d, "701-807", "701-8076522785a")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if code != "2025-01-02|701-807|701-8076522785a" {
		t.Fatalf("unexpected code: %s", code)
	}

	gotDate, gotAcc, gotGoal, err := Parse(code)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !gotDate.Equal(d) || gotAcc != "701-807" || gotGoal != "701-8076522785a" {
		t.Fatalf("round trip mismatch: %v %s %s", gotDate, gotAcc, gotGoal)
	}
}

func TestGenerateRejectsMissingFields(t *testing.T) {
	d := mustDate(t, "2025-01-02")
	cases := []struct {
		date time.Time
		acc  string
		goal string
	}{
		{time.Time{}, "701-807", "G1"},
		{d, "", "G1"},
		{d, "701-807", ""},
	}
	for _, c := range cases {
		if _, err := Generate(c.date, c.acc, c.goal); err != ErrMissingField {
			t.Errorf("expected ErrMissingField, got %v", err)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"2025-01-02|onlytwo",
		"not-a-date|701-807|G1",
		"2025-01-02||G1",
	}
	for _, c := range cases {
		if _, _, _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q): expected error, got nil", c)
		}
	}
}

type testRow struct {
	date time.Time
	acc  string
	goal string
}

func (r testRow) TxDate() time.Time { return r.date }
func (r testRow) AccountNo() string { return r.acc }
func (r testRow) GoalNo() string    { return r.goal }

func TestGroupByCodePreservesOrder(t *testing.T) {
	d1 := mustDate(t, "2025-01-02")
	d2 := mustDate(t, "2025-01-03")
	rows := []testRow{
		{d1, "A1", "G1"},
		{d2, "A1", "G2"},
		{d1, "A1", "G1"},
		{d1, "A1", "G1"},
	}
	groups, order, err := GroupByCode(rows)
	if err != nil {
		t.Fatalf("GroupByCode: %v", err)
	}
	if len(order) != 2 {
		t.Fatalf("expected 2 distinct codes, got %d: %v", len(order), order)
	}
	firstCode, _ := Generate(d1, "A1", "G1")
	if order[0] != firstCode {
		t.Errorf("expected first group to be %s, got %s", firstCode, order[0])
	}
	if len(groups[firstCode]) != 3 {
		t.Errorf("expected 3 rows in first group, got %d", len(groups[firstCode]))
	}
}
