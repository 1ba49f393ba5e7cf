// Package coverage answers "how complete is lender X's dataset Y for date Z"
// by aggregating over the completeness ledger. It never mutates ledger rows.
package coverage

import (
	"context"
	"fmt"
	"time"

	"github.com/ratewatch/ratewatch/internal/domain"
	"github.com/ratewatch/ratewatch/internal/repository"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

const (
	defaultLimit = 200
	maxLimit     = 1000
)

// Filter narrows a coverage report to one lender and/or collection date.
type Filter struct {
	LenderCode     *string
	CollectionDate *civil.Date
	Limit          int
}

// Row is one lender dataset snapshot with its derived completeness figures.
type Row struct {
	RunID          uuid.UUID          `json:"run_id"`
	LenderCode     string             `json:"lender_code"`
	BankName       string             `json:"bank_name"`
	Dataset        domain.DatasetKind `json:"dataset"`
	CollectionDate civil.Date         `json:"collection_date"`
	Expected       int                `json:"expected_detail_count"`
	Completed      int                `json:"completed_detail_count"`
	Failed         int                `json:"failed_detail_count"`
	Pending        int                `json:"pending_detail_count"`
	Ratio          float64            `json:"completeness_ratio"`
	Finalized      bool               `json:"finalized"`
	FinalizedAt    *time.Time         `json:"finalized_at,omitempty"`
	LastError      *string            `json:"last_error,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Report is the consumer-facing view of ingestion health for one dataset.
type Report struct {
	Dataset domain.DatasetKind `json:"dataset"`
	Count   int                `json:"count"`
	Rows    []Row              `json:"rows"`
}

// Service reads the ledger and derives completeness.
type Service struct {
	runs repository.RunRepository
}

// NewService builds the reporter over the given ledger.
func NewService(runs repository.RunRepository) *Service {
	return &Service{runs: runs}
}

// Report lists matching ledger rows ordered by collection date descending
// then lender code ascending, with the limit clamped to [1, 1000]
// (default 200). No matching rows yields an empty report, never an error.
func (s *Service) Report(ctx context.Context, dataset domain.DatasetKind, filter Filter) (Report, error) {
	if _, err := domain.ParseDatasetKind(string(dataset)); err != nil {
		return Report{}, err
	}

	limit := ClampLimit(filter.Limit)

	runs, err := s.runs.ListCoverage(ctx, dataset, filter.LenderCode, filter.CollectionDate, limit)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read coverage for %s: %w", dataset, err)
	}

	rows := make([]Row, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, Row{
			RunID:          run.RunID,
			LenderCode:     run.LenderCode,
			BankName:       run.BankName,
			Dataset:        run.Dataset,
			CollectionDate: run.CollectionDate,
			Expected:       run.ExpectedCount,
			Completed:      run.CompletedCount,
			Failed:         run.FailedCount,
			Pending:        run.PendingCount(),
			Ratio:          run.CompletenessRatio(),
			Finalized:      run.Finalized(),
			FinalizedAt:    run.FinalizedAt,
			LastError:      run.LastError,
			UpdatedAt:      run.UpdatedAt,
		})
	}

	return Report{Dataset: dataset, Count: len(rows), Rows: rows}, nil
}

// ClampLimit bounds a requested row limit to [1, 1000] with a 200 default.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
