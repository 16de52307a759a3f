// Command matcher runs the smart-matching loop (§4.L) standalone: it walks
// every goal carrying unmatched bank rows in operator-chosen batches,
// running the three fuzzy-match passes plus reversal netting on each, and
// classifying whatever comes out the other side into reconciliation
// variances (§4.M). It resumes by offset between runs and stops cleanly on
// SIGINT/SIGTERM between goal batches, the same cooperative-cancellation
// shape the teacher's worker pool uses between Kafka messages.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paynet/trustrecon/internal/config"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/logging"
	"github.com/paynet/trustrecon/internal/match"
	"github.com/paynet/trustrecon/internal/money"
	"github.com/paynet/trustrecon/internal/variance"
	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()

	dsn := flag.String("dsn", cfg.PostgresDSN, "Postgres connection string")
	goalBatchSize := flag.Int("goal-batch-size", 500, "Goals processed per run (100/500/1000/5000)")
	pollInterval := flag.Duration("poll-interval", 5*time.Second, "Delay between runs once a run reaches the end of the goal list")
	flag.Parse()

	cfg.PostgresDSN = *dsn

	log := logging.MustNew()
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.Open(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer store.Close()

	matchCfg := match.Config{
		DateWindowDays:   cfg.MatchDateWindowDays,
		TolerancePercent: cfg.MatchTolerancePct,
		ToleranceFloor:   money.NewAmountFromFloat(cfg.MatchToleranceFloor),
		MaxSplitLegs:     cfg.MatchMaxSplitLegs,
		BatchSize:        *goalBatchSize,
	}

	varianceCfg := variance.Config{
		TolerancePercent: cfg.MatchTolerancePct,
		ToleranceFloor:   money.NewAmountFromFloat(cfg.MatchToleranceFloor),
	}
	classifier := variance.NewClassifier(store, varianceCfg, log)

	runner := match.NewRunner(store, matchCfg, log)
	runner.SetVarianceClassifier(classifier)
	runner.OnProgress = func(goalNumber string, matched, reversalNetted, stillUnmatched int) {
		log.Info("goal matched",
			zap.String("goalNumber", goalNumber),
			zap.Int("matched", matched),
			zap.Int("reversalNetted", reversalNetted),
			zap.Int("stillUnmatched", stillUnmatched))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	log.Info("matcher starting", zap.Int("goalBatchSize", *goalBatchSize))

	offset := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("matcher stopped")
			return
		default:
		}

		next, err := runner.Run(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("matcher stopped")
				return
			}
			log.Error("match run failed", zap.Error(err), zap.Int("offset", offset))
		}
		offset = next

		if offset == 0 {
			select {
			case <-ctx.Done():
				log.Info("matcher stopped")
				return
			case <-time.After(*pollInterval):
			}
		}
	}
}
