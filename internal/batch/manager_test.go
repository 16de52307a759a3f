package batch

import (
	"testing"

	"github.com/paynet/trustrecon/internal/db"
)

func TestLegalTransitions_QueuedCannotSkipToProcessing(t *testing.T) {
	allowed := legalTransitions[db.StatusQueued]
	for _, s := range allowed {
		if s == db.StatusProcessing {
			t.Fatalf("queued should not be able to jump straight to processing")
		}
	}
}

func TestLegalTransitions_WaitingForApprovalMovesToProcessingOrFailed(t *testing.T) {
	allowed := legalTransitions[db.StatusWaitingForApproval]
	want := map[db.ProcessingStatus]bool{db.StatusProcessing: false, db.StatusFailed: false, db.StatusCanceled: false}
	for _, s := range allowed {
		if _, ok := want[s]; ok {
			want[s] = true
		}
	}
	for s, found := range want {
		if !found {
			t.Errorf("expected waiting_for_approval to allow %s", s)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	cases := map[db.ProcessingStatus]bool{
		db.StatusCompleted:          true,
		db.StatusFailed:             true,
		db.StatusCanceled:           true,
		db.StatusQueued:             false,
		db.StatusWaitingForApproval: false,
	}
	for status, want := range cases {
		if got := isTerminal(status); got != want {
			t.Errorf("isTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}
