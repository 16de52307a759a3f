package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paynet/trustrecon/internal/money"
)

// dateLayouts are the three formats spec.md §4.B requires tolerance for,
// tried in order.
var dateLayouts = []string{"2006-01-02", "2-Jan-06", "02/01/2006"}

// ParseDate tries each accepted layout in turn.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("parser: %q matches none of %v: %w", raw, dateLayouts, lastErr)
}

// cleanAmount strips currency symbols, thousands separators and interior
// whitespace so "$1,050.00" and "1 050.00" both parse as "1050.00".
func cleanAmount(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseAmount parses a currency cell into an Amount, tolerant of symbols
// and thousands separators.
func ParseAmount(raw string) (money.Amount, error) {
	cleaned := cleanAmount(raw)
	if cleaned == "" {
		return money.Amount{}, fmt.Errorf("parser: empty amount %q", raw)
	}
	return money.NewAmount(cleaned)
}

// ParseUnits parses a units cell the same way as an amount cell, but
// rounded to unit scale rather than amount scale.
func ParseUnits(raw string) (money.Units, error) {
	cleaned := cleanAmount(raw)
	if cleaned == "" {
		return money.Units{}, fmt.Errorf("parser: empty units %q", raw)
	}
	return money.NewUnits(cleaned)
}

// ParsePercent parses a percentage cell, accepting both "1.5" and "1.5%"
// and normalizing to a [0,1] fraction when the value looks like it was
// already expressed out of 100 (i.e. greater than 1).
func ParsePercent(raw string) (float64, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parser: invalid percent %q: %w", raw, err)
	}
	if f > 1 {
		f = f / 100
	}
	return f, nil
}
