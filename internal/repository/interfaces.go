package repository

import (
	"context"

	"github.com/ratewatch/ratewatch/internal/domain"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// FetchEventRepository stores raw fetch provenance. Append-only: no update
// or delete operation exists.
type FetchEventRepository interface {
	Record(ctx context.Context, event domain.FetchEvent) (uuid.UUID, error)
	ListByRun(ctx context.Context, runID uuid.UUID, limit int) ([]domain.FetchEvent, error)
}

// AnomalyRepository stores rejected and suspicious candidate records for
// triage. Append-only. Record returns nil when the store reports zero rows
// affected.
type AnomalyRepository interface {
	Record(ctx context.Context, anomaly domain.IngestAnomaly) (*uuid.UUID, error)
	ListRecent(ctx context.Context, dataset domain.DatasetKind, limit int) ([]domain.IngestAnomaly, error)
}

// RunRepository is the completeness ledger for lender dataset snapshots.
// Every mutation is a single atomic statement; the tracker is safe to call
// from any number of concurrent processes with no shared memory.
type RunRepository interface {
	// Ensure upserts the ledger row. On conflict it refreshes bank name,
	// collection date, and updated_at only, never counters or finalized
	// state. Safe to call concurrently and repeatedly.
	Ensure(ctx context.Context, key domain.RunKey, bankName string, collectionDate civil.Date) error

	// SetExpected ensures the row, then overwrites expected_detail_count
	// (last-writer-wins, floored at zero). Callers are expected to only
	// raise it as discovery proceeds; lowering is deliberately permitted
	// so a re-planned lender page can correct an overshoot.
	SetExpected(ctx context.Context, key domain.RunKey, bankName string, collectionDate civil.Date, expected int) error

	// MarkDetailProcessed atomically increments exactly one counter by
	// one. On the failure path it also overwrites last_error. A missing
	// key is a silent no-op.
	MarkDetailProcessed(ctx context.Context, key domain.RunKey, failed bool, errorMessage *string) error

	// Get point-reads the row. found is false when no row exists.
	Get(ctx context.Context, key domain.RunKey) (run domain.LenderDatasetRun, found bool, err error)

	// TryFinalize sets finalized_at only if it is currently null and
	// reports whether this call performed the transition. Racing callers
	// see exactly one true.
	TryFinalize(ctx context.Context, key domain.RunKey) (bool, error)

	// ListCoverage reads ledger rows for the coverage report, ordered by
	// collection date descending then lender code ascending.
	ListCoverage(ctx context.Context, dataset domain.DatasetKind, lenderCode *string, collectionDate *civil.Date, limit int) ([]domain.LenderDatasetRun, error)
}

// ObservationRepository reads accepted rate history. This core never writes
// observation rows.
type ObservationRepository interface {
	ListByDataset(ctx context.Context, dataset domain.DatasetKind) ([]domain.RateObservation, error)
}
