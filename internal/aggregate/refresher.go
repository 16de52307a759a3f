// Package aggregate implements the two materialized read-model refreshers
// (§4.J): GoalTransactionsAggregate and AccountUnitBalancesAggregate. Both
// refresh concurrently, each from its own list of keys the batch touched,
// so a batch's effects
// become visible without a read outage, and a failure in one never blocks
// the other from completing and publishing its own notification.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/notify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Refresher recomputes both aggregates for the codes/accounts a batch
// touched and publishes one RefreshNotification per aggregate.
type Refresher struct {
	store     *db.Store
	publisher *notify.Publisher
	log       *zap.Logger
}

func New(store *db.Store, publisher *notify.Publisher, log *zap.Logger) *Refresher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Refresher{store: store, publisher: publisher, log: log}
}

// Result summarizes one aggregate's refresh run.
type Result struct {
	Aggregate   notify.Aggregate
	RowsWritten int
	Err         error
	Duration    time.Duration
}

// RefreshForBatch refreshes every goalTransactionCode and account the given
// batch wrote to. The two aggregates run as independent errgroup goroutines
// against the same (non-canceling) group so one's error doesn't cancel the
// other's context — each keeps its own report.
func (r *Refresher) RefreshForBatch(ctx context.Context, uploadBatchID uuid.UUID) (goalResult, unitResult Result) {
	var g errgroup.Group

	g.Go(func() error {
		goalResult = r.refreshGoalTransactions(ctx, uploadBatchID)
		return nil
	})
	g.Go(func() error {
		unitResult = r.refreshAccountUnitBalances(ctx, uploadBatchID)
		return nil
	})
	_ = g.Wait() // both goroutines always return nil; their own Result carries the error

	return goalResult, unitResult
}

func (r *Refresher) refreshGoalTransactions(ctx context.Context, uploadBatchID uuid.UUID) Result {
	start := time.Now()
	res := Result{Aggregate: notify.AggregateGoalTransactions}

	codes, err := r.store.DirtyGoalTransactionCodes(ctx, uploadBatchID)
	if err != nil {
		res.Err = fmt.Errorf("aggregate: dirty codes: %w", err)
		r.publish(ctx, res, start)
		return res
	}
	for _, code := range codes {
		row, err := r.store.GoalTransactionAggregate(ctx, code)
		if err != nil {
			res.Err = fmt.Errorf("aggregate: compute %s: %w", code, err)
			break
		}
		if err := r.store.UpsertGoalTransactionAggregate(ctx, row); err != nil {
			res.Err = fmt.Errorf("aggregate: upsert %s: %w", code, err)
			break
		}
		res.RowsWritten++
	}
	res.Duration = time.Since(start)
	r.publish(ctx, res, start)
	return res
}

func (r *Refresher) refreshAccountUnitBalances(ctx context.Context, uploadBatchID uuid.UUID) Result {
	start := time.Now()
	res := Result{Aggregate: notify.AggregateAccountUnitBalances}

	accountIDs, err := r.store.DirtyAccountIDs(ctx, uploadBatchID)
	if err != nil {
		res.Err = fmt.Errorf("aggregate: dirty accounts: %w", err)
		r.publish(ctx, res, start)
		return res
	}
	for _, accountID := range accountIDs {
		row, err := r.store.AccountUnitBalance(ctx, accountID)
		if err != nil {
			res.Err = fmt.Errorf("aggregate: compute account %s: %w", accountID, err)
			break
		}
		if err := r.store.UpsertAccountUnitBalance(ctx, row); err != nil {
			res.Err = fmt.Errorf("aggregate: upsert account %s: %w", accountID, err)
			break
		}
		res.RowsWritten++
	}
	res.Duration = time.Since(start)
	r.publish(ctx, res, start)
	return res
}

func (r *Refresher) publish(ctx context.Context, res Result, start time.Time) {
	if r.publisher == nil {
		return
	}
	n := notify.RefreshNotification{
		Aggregate:   res.Aggregate,
		CompletedAt: start.Add(res.Duration),
		Success:     res.Err == nil,
		RowsWritten: res.RowsWritten,
	}
	if res.Err != nil {
		n.Error = res.Err.Error()
	}
	if err := r.publisher.Publish(ctx, n); err != nil {
		r.log.Warn("publish refresh notification failed", zap.Error(err), zap.String("aggregate", string(res.Aggregate)))
	}
}
