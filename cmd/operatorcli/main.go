// Command operatorcli is a manual-testing/demo harness over the operator
// operations (§6): uploadBatch.create/status/summary/cancel/rollback/
// newEntities/approveEntities, smartMatch.run, variance.resolve. Each
// operation is already a plain Go method on a service type (batch.Manager,
// db.Store, jobs.Enqueuer, match.Runner); this binary only provides a
// subcommand front end for poking at them from a terminal, the same role
// the teacher's producer binary plays as a synthetic traffic generator for
// the consumer rather than a shipped product.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/batch"
	"github.com/paynet/trustrecon/internal/config"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/jobs"
	"github.com/paynet/trustrecon/internal/logging"
	"github.com/paynet/trustrecon/internal/match"
	"github.com/paynet/trustrecon/internal/money"
	"github.com/paynet/trustrecon/internal/variance"
	"go.uber.org/zap"
)

func usage() {
	fmt.Fprintln(os.Stderr, `operatorcli <command> [flags]

commands:
  upload-create       -file <path> [-bank] [-by <operator>]
  upload-status       -id <batchId>
  upload-summary      -id <batchId>
  upload-cancel       -id <batchId>
  upload-rollback     -id <batchId>
  upload-new-entities -id <batchId>
  upload-approve      -id <batchId> -decision <approved|rejected> -by <operator>
  match-run           [-offset 0] [-goal-batch-size 500]
  variance-resolve    -id <varianceId> -decision <approved|disputed|resolved> -by <operator> [-notes <text>]`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	log := logging.MustNew()
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := db.Open(ctx, cfg.PostgresDSN, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "operatorcli: open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	manager := batch.NewManager(store, cfg.RollbackTimeout)

	var runErr error
	switch os.Args[1] {
	case "upload-create":
		runErr = uploadCreate(ctx, store, cfg, os.Args[2:])
	case "upload-status":
		runErr = uploadStatus(ctx, store, os.Args[2:])
	case "upload-summary":
		runErr = uploadSummary(ctx, store, os.Args[2:])
	case "upload-cancel":
		runErr = uploadCancel(ctx, store, manager, os.Args[2:])
	case "upload-rollback":
		runErr = uploadRollback(ctx, store, manager, os.Args[2:])
	case "upload-new-entities":
		runErr = uploadNewEntities(ctx, store, os.Args[2:])
	case "upload-approve":
		runErr = uploadApprove(ctx, store, cfg, os.Args[2:])
	case "match-run":
		runErr = matchRun(ctx, store, cfg, log, os.Args[2:])
	case "variance-resolve":
		runErr = varianceResolve(ctx, store, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "operatorcli: %v\n", runErr)
		os.Exit(1)
	}
}

// uploadCreate implements uploadBatch.create(file) -> batchId. It registers
// the batch in StatusQueued and enqueues the job that actually parses it;
// this command returns as soon as the row and task exist, mirroring the
// operation's stated 202-style semantics.
func uploadCreate(ctx context.Context, store *db.Store, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("upload-create", flag.ExitOnError)
	file := fs.String("file", "", "Path to the fund or bank statement file")
	isBank := fs.Bool("bank", false, "Treat this as a bank-statement upload")
	uploadedBy := fs.String("by", "operator", "Operator identity recorded on the batch")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("-file is required")
	}
	info, err := os.Stat(*file)
	if err != nil {
		return fmt.Errorf("stat %s: %w", *file, err)
	}

	enqueuer := jobs.NewEnqueuer(cfg.RedisAddr)
	defer enqueuer.Close()

	if *isBank {
		b := db.BankUploadBatch{UploadBatch: db.UploadBatch{
			BatchNumber: uuid.NewString(),
			FileName:    filepath.Base(*file),
			FileSize:    info.Size(),
			FilePath:    *file,
			UploadedBy:  *uploadedBy,
		}}
		id, err := store.CreateBankUploadBatch(ctx, b)
		if err != nil {
			return err
		}
		if _, err := enqueuer.EnqueueProcessBankUpload(id, cfg.JobMaxRetries); err != nil {
			return fmt.Errorf("enqueue process-bank-upload: %w", err)
		}
		return printJSON(map[string]any{"batchId": id, "kind": "bank"})
	}

	b := db.UploadBatch{
		BatchNumber: uuid.NewString(),
		FileName:    filepath.Base(*file),
		FileSize:    info.Size(),
		FilePath:    *file,
		UploadedBy:  *uploadedBy,
	}
	id, err := store.CreateUploadBatch(ctx, b)
	if err != nil {
		return err
	}
	if _, err := enqueuer.EnqueueProcessNewUpload(id, cfg.JobMaxRetries); err != nil {
		return fmt.Errorf("enqueue process-new-upload: %w", err)
	}
	return printJSON(map[string]any{"batchId": id, "kind": "fund"})
}

// uploadStatus implements uploadBatch.status: state, counts, validation
// summary, trimmed to the fields a poll loop actually needs.
func uploadStatus(ctx context.Context, store *db.Store, args []string) error {
	id, err := parseBatchID(args)
	if err != nil {
		return err
	}
	b, err := store.GetUploadBatch(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"state":            b.ProcessingStatus,
		"validationStatus": b.ValidationStatus,
		"totalRecords":     b.TotalRecords,
		"processedRecords": b.ProcessedRecords,
		"failedRecords":    b.FailedRecords,
		"newEntitiesStatus": b.NewEntitiesStatus,
	})
}

// uploadSummary implements uploadBatch.summary: the full record, errors and
// warnings included.
func uploadSummary(ctx context.Context, store *db.Store, args []string) error {
	id, err := parseBatchID(args)
	if err != nil {
		return err
	}
	b, err := store.GetUploadBatch(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(b)
}

// uploadCancel implements uploadBatch.cancel: transition the batch straight
// to canceled from whatever non-terminal state it is in.
func uploadCancel(ctx context.Context, store *db.Store, manager *batch.Manager, args []string) error {
	id, err := parseBatchID(args)
	if err != nil {
		return err
	}
	b, err := store.GetUploadBatch(ctx, id)
	if err != nil {
		return err
	}
	if err := manager.Transition(ctx, id, b.ProcessingStatus, db.StatusCanceled); err != nil {
		return err
	}
	return printJSON(map[string]any{"batchId": id, "state": db.StatusCanceled})
}

// uploadRollback implements uploadBatch.rollback -> deletedCounts.
func uploadRollback(ctx context.Context, store *db.Store, manager *batch.Manager, args []string) error {
	id, err := parseBatchID(args)
	if err != nil {
		return err
	}
	b, err := store.GetUploadBatch(ctx, id)
	if err != nil {
		return err
	}
	counts, err := manager.Rollback(ctx, id, b.ProcessingStatus)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"batchId": id, "deletedCounts": counts})
}

// uploadNewEntities implements uploadBatch.newEntities -> report.
func uploadNewEntities(ctx context.Context, store *db.Store, args []string) error {
	id, err := parseBatchID(args)
	if err != nil {
		return err
	}
	b, err := store.GetUploadBatch(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(b.NewEntitiesReport)
}

// uploadApprove implements uploadBatch.approveEntities(batchId, {decision,
// actor}): an approval records who approved it and enqueues the job that
// resumes processing past entity creation; a rejection moves the batch
// straight to failed, same as a validation failure would.
func uploadApprove(ctx context.Context, store *db.Store, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("upload-approve", flag.ExitOnError)
	idStr := fs.String("id", "", "Upload batch id")
	decision := fs.String("decision", "", "approved | rejected")
	actor := fs.String("by", "operator", "Operator identity recording the decision")
	fs.Parse(args)

	id, err := uuid.Parse(*idStr)
	if err != nil {
		return fmt.Errorf("-id: %w", err)
	}

	switch *decision {
	case "approved":
		if err := store.ApproveNewEntities(ctx, id, *actor); err != nil {
			return err
		}
		enqueuer := jobs.NewEnqueuer(cfg.RedisAddr)
		defer enqueuer.Close()
		if _, err := enqueuer.EnqueueResumeAfterApproval(id, cfg.JobMaxRetries); err != nil {
			return fmt.Errorf("enqueue resume-after-approval: %w", err)
		}
	case "rejected":
		if err := store.UpdateStatus(ctx, id, db.StatusFailed); err != nil {
			return err
		}
	default:
		return fmt.Errorf("-decision must be approved or rejected, got %q", *decision)
	}
	return printJSON(map[string]any{"batchId": id, "decision": *decision})
}

// matchRun implements smartMatch.run for one goal batch: processed count,
// whether more goals remain, and the offset to resume from.
func matchRun(ctx context.Context, store *db.Store, cfg config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("match-run", flag.ExitOnError)
	offset := fs.Int("offset", 0, "Goal offset to resume from")
	goalBatchSize := fs.Int("goal-batch-size", 500, "Goals processed per run (100/500/1000/5000)")
	fs.Parse(args)

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

	var processed, matched, reversalNetted, stillUnmatched int
	runner.OnProgress = func(goalNumber string, m, r, u int) {
		processed++
		matched += m
		reversalNetted += r
		stillUnmatched += u
	}

	next, err := runner.Run(ctx, *offset)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"processed": processed,
		"matchBreakdown": map[string]int{
			"matched":        matched,
			"reversalNetted": reversalNetted,
			"stillUnmatched": stillUnmatched,
		},
		"hasMore":    next != 0,
		"nextOffset": next,
	})
}

// varianceResolve implements variance.resolve(varianceId, {decision,
// notes, actor}).
func varianceResolve(ctx context.Context, store *db.Store, args []string) error {
	fs := flag.NewFlagSet("variance-resolve", flag.ExitOnError)
	idStr := fs.String("id", "", "Variance id")
	decision := fs.String("decision", "", "approved | disputed | resolved")
	actor := fs.String("by", "operator", "Reviewer identity")
	notes := fs.String("notes", "", "Free-text review notes")
	fs.Parse(args)

	id, err := uuid.Parse(*idStr)
	if err != nil {
		return fmt.Errorf("-id: %w", err)
	}

	var status db.ResolutionStatus
	switch *decision {
	case "approved":
		status = db.ResolutionApproved
	case "disputed":
		status = db.ResolutionDisputed
	case "resolved":
		status = db.ResolutionResolved
	default:
		return fmt.Errorf("-decision must be approved, disputed, or resolved, got %q", *decision)
	}

	if err := store.ResolveVariance(ctx, id, status, *actor, *notes); err != nil {
		return err
	}
	return printJSON(map[string]any{"varianceId": id, "resolutionStatus": status})
}

func parseBatchID(args []string) (uuid.UUID, error) {
	fs := flag.NewFlagSet("id", flag.ExitOnError)
	idStr := fs.String("id", "", "Upload batch id")
	fs.Parse(args)
	if *idStr == "" {
		return uuid.UUID{}, fmt.Errorf("-id is required")
	}
	return uuid.Parse(*idStr)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
