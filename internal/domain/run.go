package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// RunKey addresses one lender's dataset snapshot within a scrape run.
type RunKey struct {
	RunID      uuid.UUID   `json:"run_id"`
	LenderCode string      `json:"lender_code"`
	Dataset    DatasetKind `json:"dataset"`
}

// LenderDatasetRun is the completeness ledger row for one (run, lender,
// dataset) tuple. Expected counts are discovered incrementally; the row is
// finalized exactly once and retained indefinitely as an audit trail.
type LenderDatasetRun struct {
	RunKey
	BankName       string     `json:"bank_name"`
	CollectionDate civil.Date `json:"collection_date"`
	ExpectedCount  int        `json:"expected_detail_count"`
	CompletedCount int        `json:"completed_detail_count"`
	FailedCount    int        `json:"failed_detail_count"`
	FinalizedAt    *time.Time `json:"finalized_at,omitempty"`
	LastError      *string    `json:"last_error,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Finalized reports whether the row has reached its terminal state.
func (r LenderDatasetRun) Finalized() bool {
	return r.FinalizedAt != nil
}

// PendingCount is the number of expected detail units not yet resolved,
// floored at zero for rows whose counters transiently overshoot during
// accumulation.
func (r LenderDatasetRun) PendingCount() int {
	pending := r.ExpectedCount - (r.CompletedCount + r.FailedCount)
	if pending < 0 {
		return 0
	}
	return pending
}

// CompletenessRatio is (completed+failed)/expected. An empty expectation is
// vacuously complete.
func (r LenderDatasetRun) CompletenessRatio() float64 {
	if r.ExpectedCount == 0 {
		return 1.0
	}
	return float64(r.CompletedCount+r.FailedCount) / float64(r.ExpectedCount)
}
