package match

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/db"
	"go.uber.org/zap"
)

// VarianceClassifier is the subset of internal/variance the runner needs
// to turn match/no-match outcomes into recorded variances. Declared here,
// rather than importing internal/variance directly, so the matcher stays
// usable without a variance store wired in (SetVarianceClassifier is
// never called).
type VarianceClassifier interface {
	ClassifyMatch(ctx context.Context, bank db.BankGoalTransaction, fundCode string) error
	ClassifyMissingInFund(ctx context.Context, bank db.BankGoalTransaction) error
	ClassifyMissingInBank(ctx context.Context, fund db.FundCandidate) error
}

// ProgressFunc reports one goal's outcome as the runner works through a
// batch, the matcher's analogue of the aggregate refresher's per-aggregate
// Result (§4.L: "progress... reported").
type ProgressFunc func(goalNumber string, matched, reversalNetted, stillUnmatched int)

// Runner orchestrates the three passes plus reversal netting across every
// goal carrying unmatched bank rows, processing goals in operator-chosen
// batches and honoring cooperative cancellation between goals (§4.L, §5).
// Its batch-then-resume-by-offset shape follows the teacher's
// readMessages/processMessages worker loop in spirit: a bounded unit of
// work per iteration, a check for the stop signal between units.
type Runner struct {
	store *db.Store
	cfg   Config
	log   *zap.Logger

	OnProgress ProgressFunc
	variance   VarianceClassifier
}

func NewRunner(store *db.Store, cfg Config, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{store: store, cfg: cfg, log: log}
}

// SetVarianceClassifier wires in the variance store so every match and
// leftover the runner produces gets classified (§4.M). Left unset, the
// runner still matches and nets reversals; it just never records a
// variance for the outcome.
func (r *Runner) SetVarianceClassifier(v VarianceClassifier) {
	r.variance = v
}

// Run processes one batch of goals starting at offset and returns the
// offset to resume from on the next call, or 0 once a batch reaches the
// end of the list of goals with pending bank rows (bank rows left
// unmatched stay pending, so their goals are listed again on later runs).
// It returns early, with the offset unchanged, if ctx is canceled between
// goals.
func (r *Runner) Run(ctx context.Context, offset int) (nextOffset int, err error) {
	select {
	case <-ctx.Done():
		return offset, ctx.Err()
	default:
	}

	goalNumbers, err := r.store.GoalNumbersWithPendingBank(ctx, r.cfg.BatchSize, offset)
	if err != nil {
		return offset, fmt.Errorf("match: list goals: %w", err)
	}
	if len(goalNumbers) == 0 {
		return 0, nil
	}

	for _, goalNumber := range goalNumbers {
		select {
		case <-ctx.Done():
			return offset, ctx.Err()
		default:
		}
		if err := r.matchGoal(ctx, goalNumber); err != nil {
			r.log.Warn("match goal failed", zap.String("goalNumber", goalNumber), zap.Error(err))
		}
	}

	if len(goalNumbers) < r.cfg.BatchSize {
		return 0, nil
	}
	return offset + len(goalNumbers), nil
}

func (r *Runner) matchGoal(ctx context.Context, goalNumber string) error {
	bank, err := r.store.PendingBankTransactionsForGoal(ctx, goalNumber)
	if err != nil {
		return fmt.Errorf("match: pending bank rows for %s: %w", goalNumber, err)
	}
	if len(bank) == 0 {
		return nil
	}
	fund, err := r.store.FundCandidatesForGoal(ctx, goalNumber)
	if err != nil {
		return fmt.Errorf("match: fund candidates for %s: %w", goalNumber, err)
	}

	bankByID := make(map[uuid.UUID]db.BankGoalTransaction, len(bank))
	for _, b := range bank {
		bankByID[b.ID] = b
	}

	matches, remainingBank, remainingFund := RunPasses(bank, fund, r.cfg)
	for _, m := range matches {
		if err := r.persist(ctx, m); err != nil {
			r.log.Warn("persist match failed", zap.String("goalNumber", goalNumber), zap.Error(err))
			continue
		}
		if r.variance == nil {
			continue
		}
		code := strings.Join(m.FundCodes, ",")
		for _, bankID := range m.BankIDs {
			if err := r.variance.ClassifyMatch(ctx, bankByID[bankID], code); err != nil {
				r.log.Warn("classify match failed", zap.String("bankId", bankID.String()), zap.Error(err))
			}
		}
	}

	netted := matchReversals(remainingBank)
	nettedSet := make(map[string]bool, len(netted))
	for _, id := range netted {
		nettedSet[id.String()] = true
		if err := r.store.TagReversalNetted(ctx, id); err != nil {
			r.log.Warn("tag reversal netted failed", zap.String("bankId", id.String()), zap.Error(err))
		}
	}

	stillUnmatched := 0
	for _, b := range remainingBank {
		if nettedSet[b.ID.String()] {
			continue
		}
		stillUnmatched++
		if r.variance != nil {
			if err := r.variance.ClassifyMissingInFund(ctx, b); err != nil {
				r.log.Warn("classify missing in fund failed", zap.String("bankId", b.ID.String()), zap.Error(err))
			}
		}
	}
	if r.variance != nil {
		for _, f := range remainingFund {
			if err := r.variance.ClassifyMissingInBank(ctx, f); err != nil {
				r.log.Warn("classify missing in bank failed", zap.String("fundCode", f.Code), zap.Error(err))
			}
		}
	}

	if r.OnProgress != nil {
		r.OnProgress(goalNumber, len(matches), len(netted)/2, stillUnmatched)
	}
	return nil
}

func (r *Runner) persist(ctx context.Context, m Match) error {
	code := strings.Join(m.FundCodes, ",")
	for _, bankID := range m.BankIDs {
		if err := r.store.RecordMatch(ctx, bankID, db.ReconMatched, code, m.Confidence, ""); err != nil {
			return fmt.Errorf("match: record match for bank row %s: %w", bankID, err)
		}
	}
	return nil
}
