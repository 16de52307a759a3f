package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names (§4.I). process-bank-upload is the bank-feed analogue of
// process-new-upload added by the bank pipeline (spec.md §6).
const (
	TypeProcessNewUpload    = "ingest:process-new-upload"
	TypeResumeAfterApproval = "ingest:resume-after-approval"
	TypeProcessBankUpload   = "ingest:process-bank-upload"
)

// ProcessUploadPayload identifies the batch a process-new-upload or
// process-bank-upload task should drive through the pipeline.
type ProcessUploadPayload struct {
	BatchID uuid.UUID `json:"batchId"`
}

// ResumeAfterApprovalPayload identifies a batch whose new-entity report has
// just been approved and should resume from entity creation onward.
type ResumeAfterApprovalPayload struct {
	BatchID uuid.UUID `json:"batchId"`
}

// Enqueuer wraps an asynq.Client with the task constructors the rest of
// the service uses, so callers never hand-build asynq.Task values.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(redisAddr string) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

func (e *Enqueuer) Close() error { return e.client.Close() }

// EnqueueProcessNewUpload schedules a fund-feed batch for ingestion.
func (e *Enqueuer) EnqueueProcessNewUpload(batchID uuid.UUID, maxRetries int) (*asynq.TaskInfo, error) {
	return e.enqueue(TypeProcessNewUpload, ProcessUploadPayload{BatchID: batchID}, maxRetries)
}

// EnqueueProcessBankUpload schedules a bank-feed batch for ingestion.
func (e *Enqueuer) EnqueueProcessBankUpload(batchID uuid.UUID, maxRetries int) (*asynq.TaskInfo, error) {
	return e.enqueue(TypeProcessBankUpload, ProcessUploadPayload{BatchID: batchID}, maxRetries)
}

// EnqueueResumeAfterApproval schedules a batch whose new-entity report was
// just approved to resume processing.
func (e *Enqueuer) EnqueueResumeAfterApproval(batchID uuid.UUID, maxRetries int) (*asynq.TaskInfo, error) {
	return e.enqueue(TypeResumeAfterApproval, ResumeAfterApprovalPayload{BatchID: batchID}, maxRetries)
}

func (e *Enqueuer) enqueue(taskType string, payload any, maxRetries int) (*asynq.TaskInfo, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode %s payload: %w", taskType, err)
	}
	opts := []asynq.Option{asynq.MaxRetry(maxRetries), asynq.Timeout(10 * time.Minute)}
	return e.client.Enqueue(asynq.NewTask(taskType, b), opts...)
}
