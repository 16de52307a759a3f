// Package batch implements the upload-batch state machine (§4.H): legal
// transitions, timing stamps, and operator-initiated rollback.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/db"
)

// ErrIllegalTransition is returned when a caller requests a transition the
// state machine does not allow.
type ErrIllegalTransition struct {
	From, To db.ProcessingStatus
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("batch: illegal transition from %s to %s", e.From, e.To)
}

// legalTransitions encodes the state machine in §4.H: queued -> parsing ->
// validating -> {processing|waiting_for_approval|failed}, and processing ->
// {completed|failed}. waiting_for_approval is entered from validating only;
// processing cannot move to it. From waiting_for_approval, approval moves
// to processing and rejection moves to failed. Any non-terminal state may
// move to canceled.
var legalTransitions = map[db.ProcessingStatus][]db.ProcessingStatus{
	db.StatusQueued:             {db.StatusParsing, db.StatusCanceled},
	db.StatusParsing:            {db.StatusValidating, db.StatusFailed, db.StatusCanceled},
	db.StatusValidating:         {db.StatusProcessing, db.StatusFailed, db.StatusCanceled, db.StatusWaitingForApproval},
	db.StatusProcessing:         {db.StatusCompleted, db.StatusFailed, db.StatusCanceled},
	db.StatusWaitingForApproval: {db.StatusProcessing, db.StatusFailed, db.StatusCanceled},
}

// Manager owns every state transition a worker or operator may request.
type Manager struct {
	store           *db.Store
	rollbackTimeout time.Duration
}

func NewManager(store *db.Store, rollbackTimeout time.Duration) *Manager {
	if rollbackTimeout <= 0 {
		rollbackTimeout = 2 * time.Minute
	}
	return &Manager{store: store, rollbackTimeout: rollbackTimeout}
}

// Transition validates and persists a state change, stamping
// processingStartedAt / processingCompletedAt where applicable.
func (m *Manager) Transition(ctx context.Context, id uuid.UUID, from, to db.ProcessingStatus) error {
	allowed := legalTransitions[from]
	ok := false
	for _, s := range allowed {
		if s == to {
			ok = true
			break
		}
	}
	if !ok {
		return &ErrIllegalTransition{From: from, To: to}
	}
	if err := m.store.UpdateStatus(ctx, id, to); err != nil {
		return fmt.Errorf("batch: transition %s->%s: %w", from, to, err)
	}
	if to == db.StatusProcessing {
		if err := m.store.MarkProcessingStarted(ctx, id); err != nil {
			return fmt.Errorf("batch: mark started: %w", err)
		}
	}
	if isTerminal(to) {
		if err := m.store.MarkProcessingCompleted(ctx, id); err != nil {
			return fmt.Errorf("batch: mark completed: %w", err)
		}
	}
	return nil
}

func isTerminal(s db.ProcessingStatus) bool {
	switch s {
	case db.StatusCompleted, db.StatusFailed, db.StatusCanceled:
		return true
	default:
		return false
	}
}

// Rollback is disallowed while a batch is actively processing (§4.H): an
// operator may only roll back a batch that has reached a terminal or
// waiting state. It delegates to the store's single-transaction delete,
// bounding it with the configured timeout.
func (m *Manager) Rollback(ctx context.Context, id uuid.UUID, current db.ProcessingStatus) (db.RollbackCounts, error) {
	if current == db.StatusProcessing || current == db.StatusParsing || current == db.StatusValidating {
		return db.RollbackCounts{}, fmt.Errorf("batch: rollback disallowed while status is %s", current)
	}
	ctx, cancel := context.WithTimeout(ctx, m.rollbackTimeout)
	defer cancel()
	counts, err := m.store.RollbackBatch(ctx, id)
	if err != nil {
		return db.RollbackCounts{}, fmt.Errorf("batch: rollback: %w", err)
	}
	return counts, nil
}
