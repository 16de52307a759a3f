package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker wraps an asynq.Server with bounded concurrency
// (WorkerConfig.Concurrency) and capped exponential-backoff retries; asynq
// renews a running task's Redis lease internally, which is why this
// component leans on asynq instead of hand-rolling a lease manager.
// WorkerConfig's RateLimit, LockTimeout and MaxRetries are not applied
// here: no rate limit is enforced, and each task's retry budget and
// 10-minute timeout are the ones Enqueuer sets. ErrorHandler only logs,
// since asynq invokes it on every attempt, not just the last; nothing marks
// a batch failed or records a failure payload when a task's retries run
// out.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	pipeline *Pipeline
	log      *zap.Logger
}

// WorkerConfig carries the job-queue tunables from config.Config.
type WorkerConfig struct {
	RedisAddr   string
	Concurrency int
	RateLimit   int
	LockTimeout time.Duration
	MaxRetries  int
}

func NewWorker(cfg WorkerConfig, pipeline *Pipeline, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	mux := asynq.NewServeMux()
	w := &Worker{pipeline: pipeline, log: log, mux: mux}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      map[string]int{"default": 1},
			RetryDelayFunc: func(n int, err error, t *asynq.Task) time.Duration {
				if n > 8 {
					return 5 * time.Minute
				}
				delay := time.Duration(1<<uint(n)) * time.Second
				if delay > 5*time.Minute {
					delay = 5 * time.Minute
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error("job failed", zap.String("type", task.Type()), zap.Error(err),
					zap.Int("retried", asynq.GetRetryCount(ctx)), zap.Int("maxRetry", asynq.GetMaxRetry(ctx)))
			}),
		},
	)
	w.server = server

	mux.HandleFunc(TypeProcessNewUpload, w.handleProcessNewUpload)
	mux.HandleFunc(TypeProcessBankUpload, w.handleProcessBankUpload)
	mux.HandleFunc(TypeResumeAfterApproval, w.handleResumeAfterApproval)

	return w
}

func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleProcessNewUpload(ctx context.Context, t *asynq.Task) error {
	var p ProcessUploadPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("jobs: decode %s payload: %w", t.Type(), err)
	}
	err := w.pipeline.ProcessNewUpload(ctx, p.BatchID)
	return classify(err)
}

func (w *Worker) handleProcessBankUpload(ctx context.Context, t *asynq.Task) error {
	var p ProcessUploadPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("jobs: decode %s payload: %w", t.Type(), err)
	}
	if w.pipeline.bank == nil {
		return fmt.Errorf("jobs: no bank pipeline configured")
	}
	err := w.pipeline.bank.ProcessBankUpload(ctx, p.BatchID)
	return classify(err)
}

func (w *Worker) handleResumeAfterApproval(ctx context.Context, t *asynq.Task) error {
	var p ResumeAfterApprovalPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("jobs: decode %s payload: %w", t.Type(), err)
	}
	err := w.pipeline.ResumeAfterApproval(ctx, p.BatchID)
	return classify(err)
}

// classify turns a RetryableError into asynq's designated "please retry"
// signal (asynq.SkipRetry is the inverse marker it recognizes; a plain
// non-nil error already retries by default, so a terminal failure instead
// wraps with asynq.SkipRetry to stop the retry loop once the batch has
// already been moved to failed).
func classify(err error) error {
	if err == nil {
		return nil
	}
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return retryable
	}
	return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
}
