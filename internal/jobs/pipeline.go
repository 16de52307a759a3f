package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/aggregate"
	"github.com/paynet/trustrecon/internal/batch"
	"github.com/paynet/trustrecon/internal/config"
	"github.com/paynet/trustrecon/internal/db"
	"github.com/paynet/trustrecon/internal/ingest/entity"
	"github.com/paynet/trustrecon/internal/ingest/parser"
	"github.com/paynet/trustrecon/internal/ingest/validate"
	"github.com/paynet/trustrecon/internal/ingest/writer"
	"github.com/paynet/trustrecon/internal/money"
	"github.com/paynet/trustrecon/internal/txcode"
	"go.uber.org/zap"
)

// RetryableError marks a failure as transient: the task handler returning
// one lets asynq's exponential backoff retry the job. Any other error is
// treated as terminal and the batch moves straight to failed instead of
// burning the retry budget on something that will never succeed (a
// malformed file, a rejected row).
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Pipeline drives one upload batch through parsing, validation, entity
// detection/creation, and writing, wrapping the aggregate refresh that
// follows a successful write with a circuit breaker so a flaky refresh
// path fails fast (§4.I).
type Pipeline struct {
	store   *db.Store
	manager *batch.Manager
	cfg     config.Config
	log     *zap.Logger

	rowValidator   *validate.RowValidator
	groupValidator *validate.GroupValidator
	detector       *entity.Detector
	creator        *entity.Creator
	writer         *writer.Writer

	bank      BankProcessor
	refresher *aggregate.Refresher
	breaker   *CircuitBreaker
}

// BankProcessor is the subset of internal/bank's orchestrator the worker
// needs to dispatch the process-bank-upload task type. Declared here
// rather than imported directly so internal/jobs doesn't have to depend on
// internal/bank just to wire one task handler.
type BankProcessor interface {
	ProcessBankUpload(ctx context.Context, batchID uuid.UUID) error
}

// SetBankProcessor wires the bank-feed orchestrator once it's constructed;
// process-bank-upload tasks fail fast until this is called.
func (p *Pipeline) SetBankProcessor(b BankProcessor) { p.bank = b }

// SetRefresher wires the aggregate refresher a write's success triggers,
// guarded by the breaker named in this package's doc comment so a flaky
// refresh path fails fast instead of burning a job's retry budget. Left
// unset, writes still complete; the read models just go stale until
// something else refreshes them.
func (p *Pipeline) SetRefresher(r *aggregate.Refresher, breaker *CircuitBreaker) {
	p.refresher = r
	p.breaker = breaker
}

func NewPipeline(store *db.Store, manager *batch.Manager, cfg config.Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		store:          store,
		manager:        manager,
		cfg:            cfg,
		log:            log,
		rowValidator:   validate.NewRowValidator(cfg),
		groupValidator: validate.NewGroupValidator(cfg),
		detector:       entity.NewDetector(store),
		creator:        entity.NewCreator(store),
		writer:         writer.New(store, cfg.ChunkSize),
	}
}

// ProcessNewUpload implements the process-new-upload task (§4.I): parse,
// validate, detect new entities, and either pause for approval or write.
func (p *Pipeline) ProcessNewUpload(ctx context.Context, batchID uuid.UUID) error {
	b, err := p.store.GetUploadBatch(ctx, batchID)
	if err != nil {
		return &RetryableError{Err: fmt.Errorf("jobs: load batch: %w", err)}
	}

	if err := p.manager.Transition(ctx, batchID, db.StatusQueued, db.StatusParsing); err != nil {
		return fmt.Errorf("jobs: transition to parsing: %w", err)
	}

	rows, parseErrs, err := p.parseFundFile(ctx, b.FilePath)
	if err != nil {
		p.failBatch(ctx, batchID, db.StatusParsing, err)
		return err
	}

	if err := p.manager.Transition(ctx, batchID, db.StatusParsing, db.StatusValidating); err != nil {
		return fmt.Errorf("jobs: transition to validating: %w", err)
	}

	valid, invalid, errsByRow := p.validateRows(ctx, rows)
	for rowNumber, errs := range parseErrs {
		errsByRow[rowNumber] = append(errsByRow[rowNumber], errs...)
	}

	status := db.ValidationPassed
	if len(errsByRow) > 0 {
		status = db.ValidationFailed
	}
	flatErrs := flattenRowErrors(errsByRow)
	if err := p.store.SetValidationResult(ctx, batchID, status, flatErrs, nil); err != nil {
		return fmt.Errorf("jobs: set validation result: %w", err)
	}

	if _, err := p.writer.WriteInvalid(ctx, batchID, rows, errsByRow); err != nil {
		p.log.Error("write invalid rows failed", zap.Error(err), zap.String("batchId", batchID.String()))
	}

	if len(valid) == 0 || len(invalid) > 0 || len(parseErrs) > 0 {
		if err := p.manager.Transition(ctx, batchID, db.StatusValidating, db.StatusFailed); err != nil {
			return fmt.Errorf("jobs: transition to failed: %w", err)
		}
		return nil
	}

	report, err := p.detector.Detect(ctx, valid)
	if err != nil {
		return &RetryableError{Err: fmt.Errorf("jobs: detect entities: %w", err)}
	}
	entityStatus := entity.Status(report)
	if err := p.store.SetNewEntitiesReport(ctx, batchID, entityStatus, report); err != nil {
		return fmt.Errorf("jobs: set new entities report: %w", err)
	}

	if entityStatus == db.NewEntitiesPending {
		if err := p.manager.Transition(ctx, batchID, db.StatusValidating, db.StatusWaitingForApproval); err != nil {
			return fmt.Errorf("jobs: transition to waiting_for_approval: %w", err)
		}
		return nil
	}

	return p.createAndWrite(ctx, batchID, valid, report, db.StatusValidating)
}

// ResumeAfterApproval implements the resume-after-approval task (§4.I): an
// operator has approved the batch's new-entity report, so re-parse the
// same file, create the approved entities, and write the valid rows.
func (p *Pipeline) ResumeAfterApproval(ctx context.Context, batchID uuid.UUID) error {
	b, err := p.store.GetUploadBatch(ctx, batchID)
	if err != nil {
		return &RetryableError{Err: fmt.Errorf("jobs: load batch: %w", err)}
	}
	if b.NewEntitiesStatus != db.NewEntitiesApproved {
		return fmt.Errorf("jobs: batch %s new entities are not approved (status=%s)", batchID, b.NewEntitiesStatus)
	}

	rows, _, err := p.parseFundFile(ctx, b.FilePath)
	if err != nil {
		return &RetryableError{Err: err}
	}
	valid, _, _ := p.validateRows(ctx, rows)

	return p.createAndWrite(ctx, batchID, valid, b.NewEntitiesReport, db.StatusWaitingForApproval)
}

func (p *Pipeline) createAndWrite(ctx context.Context, batchID uuid.UUID, valid []parser.FundRow, report *db.NewEntitiesReport, from db.ProcessingStatus) error {
	if report != nil {
		owners, accounts, titles := ownershipMaps(valid)
		if err := p.creator.Create(ctx, report, owners, accounts, titles); err != nil {
			return &RetryableError{Err: fmt.Errorf("jobs: create entities: %w", err)}
		}
	}

	if err := p.manager.Transition(ctx, batchID, from, db.StatusProcessing); err != nil {
		return fmt.Errorf("jobs: transition to processing: %w", err)
	}

	result, err := p.writer.Write(ctx, batchID, valid)
	if err != nil {
		p.failBatch(ctx, batchID, db.StatusProcessing, err)
		return &RetryableError{Err: err}
	}

	total := sumAmount(valid)
	if err := p.store.RecordProgress(ctx, batchID, len(valid), int(result.Inserted)+result.Skipped, 0, total.String()); err != nil {
		p.log.Warn("record progress failed", zap.Error(err))
	}

	p.refreshAggregates(ctx, batchID)

	return p.manager.Transition(ctx, batchID, db.StatusProcessing, db.StatusCompleted)
}

// refreshAggregates triggers the two §4.J read-model refreshes for a
// completed write, under breaker protection so a flaky refresh path
// fails fast rather than retrying the whole job. A refresh failure is
// logged, not propagated — the write itself already succeeded and the
// batch still completes; the read models simply stay stale until the
// next refresh.
func (p *Pipeline) refreshAggregates(ctx context.Context, batchID uuid.UUID) {
	if p.refresher == nil {
		return
	}
	call := func() error {
		goalResult, unitResult := p.refresher.RefreshForBatch(ctx, batchID)
		if goalResult.Err != nil {
			return goalResult.Err
		}
		return unitResult.Err
	}
	var err error
	if p.breaker != nil {
		err = p.breaker.Call(call)
	} else {
		err = call()
	}
	if err != nil {
		p.log.Warn("aggregate refresh failed", zap.String("batchId", batchID.String()), zap.Error(err))
	}
}

func (p *Pipeline) failBatch(ctx context.Context, batchID uuid.UUID, from db.ProcessingStatus, cause error) {
	p.log.Error("batch failed", zap.String("batchId", batchID.String()), zap.Error(cause))
	if err := p.manager.Transition(ctx, batchID, from, db.StatusFailed); err != nil {
		p.log.Error("failed to mark batch failed", zap.Error(err))
	}
}

// parseFundFile dispatches to the CSV or Excel streaming parser by
// extension and drains the result channel into valid rows plus per-row
// parse errors (malformed rows don't stop the stream, §4.B).
func (p *Pipeline) parseFundFile(ctx context.Context, path string) ([]parser.FundRow, map[int][]db.RowError, error) {
	var results <-chan parser.FundResult
	var err error
	if strings.ToLower(filepath.Ext(path)) == ".xlsx" {
		results, err = parser.ParseFundExcel(ctx, path)
	} else {
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, nil, fmt.Errorf("jobs: open %s: %w", path, openErr)
		}
		defer f.Close()
		results, err = parser.ParseFundCSV(ctx, f)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("jobs: parse %s: %w", path, err)
	}

	var rows []parser.FundRow
	errsByRow := make(map[int][]db.RowError)
	for res := range results {
		if res.Err != nil {
			errsByRow[res.Err.RowNumber] = append(errsByRow[res.Err.RowNumber], db.RowError{
				RowNumber: res.Err.RowNumber, ErrorCode: "malformed_row", Severity: validate.SeverityCritical, Message: res.Err.Message,
			})
			continue
		}
		rows = append(rows, res.Row)
	}
	return rows, errsByRow, nil
}

// validateRows applies row- then group-level validation, splitting rows
// into the valid set (groups with no critical error) and returning every
// row-keyed error found, matching §4.C/§4.D's "reject the whole group on a
// critical group error" rule.
func (p *Pipeline) validateRows(ctx context.Context, rows []parser.FundRow) (valid []parser.FundRow, invalid []parser.FundRow, errsByRow map[int][]db.RowError) {
	errsByRow = make(map[int][]db.RowError)
	for _, r := range rows {
		for _, e := range p.rowValidator.Validate(r) {
			errsByRow[r.RowNumber] = append(errsByRow[r.RowNumber], e)
		}
	}

	groups, _, err := txcode.GroupByCode(rows)
	if err != nil {
		errsByRow[0] = append(errsByRow[0], db.RowError{ErrorCode: "grouping_failed", Severity: validate.SeverityCritical, Message: err.Error()})
	}
	codeByRow := make(map[int]string, len(rows))
	for _, r := range rows {
		if code, genErr := txcode.Generate(r.TxDate(), r.AccountNo(), r.GoalNo()); genErr == nil {
			codeByRow[r.RowNumber] = code
		}
	}

	criticalGroups := make(map[string]bool)
	for code, groupRows := range groups {
		goalNumber := groupRows[0].GoalNumber
		existing, lookupErr := p.store.LookupGoalsByNumber(ctx, []string{goalNumber})
		var dist map[string]float64
		if lookupErr == nil {
			if g, ok := existing[goalNumber]; ok {
				dist = g.FundDistribution
			}
		}
		for _, e := range p.groupValidator.Validate(code, groupRows, dist) {
			if e.Severity == validate.SeverityCritical {
				criticalGroups[code] = true
			}
			for _, r := range groupRows {
				errsByRow[r.RowNumber] = append(errsByRow[r.RowNumber], e)
			}
		}
	}

	for _, r := range rows {
		code := codeByRow[r.RowNumber]
		hasCritical := criticalGroups[code]
		for _, e := range errsByRow[r.RowNumber] {
			if e.Severity == validate.SeverityCritical {
				hasCritical = true
			}
		}
		if hasCritical {
			invalid = append(invalid, r)
		} else {
			valid = append(valid, r)
		}
	}
	return valid, invalid, errsByRow
}

func flattenRowErrors(byRow map[int][]db.RowError) []db.RowError {
	var out []db.RowError
	for _, errs := range byRow {
		out = append(out, errs...)
	}
	return out
}

// ownershipMaps derives the accountOwners/goalAccounts/goalTitles lookups
// the entity creator needs from the batch's own rows, since the new-entity
// report only carries per-key summaries (§4.F).
func ownershipMaps(rows []parser.FundRow) (owners, accounts, titles map[string]string) {
	owners = make(map[string]string)
	accounts = make(map[string]string)
	titles = make(map[string]string)
	for _, r := range rows {
		if _, ok := owners[r.AccountNumber]; !ok {
			owners[r.AccountNumber] = r.ClientName
		}
		if _, ok := accounts[r.GoalNumber]; !ok {
			accounts[r.GoalNumber] = r.AccountNumber
		}
		if _, ok := titles[r.GoalNumber]; !ok && r.GoalTitle != "" {
			titles[r.GoalNumber] = r.GoalTitle
		}
	}
	return owners, accounts, titles
}

func sumAmount(rows []parser.FundRow) money.Amount {
	total := money.ZeroAmount
	for _, r := range rows {
		total = total.Add(r.Amount)
	}
	return total
}
