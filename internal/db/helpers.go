package db

import (
	"fmt"

	"github.com/paynet/trustrecon/internal/money"
)

func parseAmount(s string) (money.Amount, error) {
	a, err := money.NewAmount(s)
	if err != nil {
		return money.Amount{}, fmt.Errorf("db: decode amount %q: %w", s, err)
	}
	return a, nil
}
