package match

import (
	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/db"
)

// matchReversals implements the reversal-netting post-pass (§4.L): among
// bank rows no pass matched, pair an unmatched +a with an unmatched −a of
// the opposite type on the same goal, any dates. Netted pairs are
// reported, not returned as Matches — they never get a
// matchedGoalTransactionCode, only the reversal_netted review tag, since
// there is no fund-side counterpart involved.
func matchReversals(bank []db.BankGoalTransaction) []uuid.UUID {
	used := make(map[int]bool, len(bank))
	var netted []uuid.UUID
	for i := range bank {
		if used[i] {
			continue
		}
		for j := i + 1; j < len(bank); j++ {
			if used[j] {
				continue
			}
			if bank[i].Type == bank[j].Type {
				continue
			}
			if !bank[i].TotalAmount.Add(bank[j].TotalAmount).IsZero() {
				continue
			}
			used[i] = true
			used[j] = true
			netted = append(netted, bank[i].ID, bank[j].ID)
			break
		}
	}
	return netted
}
