// Command ingest-worker runs the durable job queue consumer (§4.I): it
// pulls process-new-upload, resume-after-approval, and process-bank-upload
// tasks off Redis and drives each batch through the fund or bank pipeline,
// refreshing the read-model aggregates on every successful write. Flags
// override the long-lived environment settings for local runs, the same
// split the teacher's consumer/producer binaries draw between flag.String
// overrides and their network.json defaults.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/paynet/trustrecon/internal/aggregate"
	"github.com/paynet/trustrecon/internal/bank"
	"github.com/paynet/trustrecon/internal/batch"
	"github.com/paynet/trustrecon/internal/config"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/jobs"
	"github.com/paynet/trustrecon/internal/logging"
	"github.com/paynet/trustrecon/internal/notify"
	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()

	dsn := flag.String("dsn", cfg.PostgresDSN, "Postgres connection string")
	redisAddr := flag.String("redis", cfg.RedisAddr, "Redis address (asynq queue)")
	kafkaBrokers := flag.String("kafka", "", "Comma-separated Kafka brokers (defaults to env/config)")
	concurrency := flag.Int("concurrency", cfg.WorkerConcurrency, "Worker concurrency")
	flag.Parse()

	cfg.PostgresDSN = *dsn
	cfg.RedisAddr = *redisAddr
	cfg.WorkerConcurrency = *concurrency
	if *kafkaBrokers != "" {
		cfg.KafkaBrokers = splitCSV(*kafkaBrokers)
	}

	log := logging.MustNew()
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.Open(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Fatal("migrate schema", zap.Error(err))
	}

	manager := batch.NewManager(store, cfg.RollbackTimeout)
	pipeline := jobs.NewPipeline(store, manager, cfg, log)

	bankProcessor := bank.NewProcessor(store, log)
	pipeline.SetBankProcessor(bankProcessor)

	publisher := notify.NewPublisher(cfg.KafkaBrokers)
	defer publisher.Close()
	refresher := aggregate.New(store, publisher, log)
	breaker := jobs.NewCircuitBreaker("aggregate-refresh", 5, cfg.JobLockDuration, 2)
	pipeline.SetRefresher(refresher, breaker)

	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisAddr:   cfg.RedisAddr,
		Concurrency: cfg.WorkerConcurrency,
		RateLimit:   cfg.WorkerRateLimit,
		LockTimeout: cfg.JobLockDuration,
		MaxRetries:  cfg.JobMaxRetries,
	}, pipeline, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
		worker.Shutdown()
	}()

	log.Info("ingest-worker starting",
		zap.String("redis", cfg.RedisAddr),
		zap.Strings("kafkaBrokers", cfg.KafkaBrokers),
		zap.Int("concurrency", cfg.WorkerConcurrency))

	if err := worker.Run(); err != nil {
		log.Error("worker stopped", zap.Error(err))
	}
	<-ctx.Done()
	log.Info("ingest-worker stopped")
}

func splitCSV(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}
