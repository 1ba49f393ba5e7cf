package repository

import (
	"context"
	"fmt"

	"github.com/ratewatch/ratewatch/internal/domain"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type runRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository wires the completeness ledger backed by pgxpool. All
// mutations are single atomic statements so that concurrent scrape workers
// never interleave into a lost update.
func NewRunRepository(pool *pgxpool.Pool) RunRepository {
	return &runRepository{pool: pool}
}

func (r *runRepository) Ensure(ctx context.Context, key domain.RunKey, bankName string, collectionDate civil.Date) error {
	if r.pool == nil {
		return fmt.Errorf("run repository not initialized")
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO lender_dataset_runs (run_id, lender_code, dataset, bank_name, collection_date, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (run_id, lender_code, dataset) DO UPDATE
		 SET bank_name = EXCLUDED.bank_name,
		     collection_date = EXCLUDED.collection_date,
		     updated_at = now()`,
		key.RunID,
		key.LenderCode,
		string(key.Dataset),
		bankName,
		collectionDate.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to ensure lender dataset run: %w", err)
	}

	return nil
}

func (r *runRepository) SetExpected(ctx context.Context, key domain.RunKey, bankName string, collectionDate civil.Date, expected int) error {
	if err := r.Ensure(ctx, key, bankName, collectionDate); err != nil {
		return err
	}

	// Last-writer-wins with a non-negative floor. Discovery may re-plan a
	// lender page, so lowering is allowed.
	_, err := r.pool.Exec(
		ctx,
		`UPDATE lender_dataset_runs
		 SET expected_detail_count = GREATEST($4, 0), updated_at = now()
		 WHERE run_id = $1 AND lender_code = $2 AND dataset = $3`,
		key.RunID,
		key.LenderCode,
		string(key.Dataset),
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to set expected detail count: %w", err)
	}

	return nil
}

func (r *runRepository) MarkDetailProcessed(ctx context.Context, key domain.RunKey, failed bool, errorMessage *string) error {
	if r.pool == nil {
		return fmt.Errorf("run repository not initialized")
	}

	var err error
	if failed {
		_, err = r.pool.Exec(
			ctx,
			`UPDATE lender_dataset_runs
			 SET failed_detail_count = failed_detail_count + 1,
			     last_error = $4,
			     updated_at = now()
			 WHERE run_id = $1 AND lender_code = $2 AND dataset = $3`,
			key.RunID,
			key.LenderCode,
			string(key.Dataset),
			errorMessage,
		)
	} else {
		_, err = r.pool.Exec(
			ctx,
			`UPDATE lender_dataset_runs
			 SET completed_detail_count = completed_detail_count + 1,
			     updated_at = now()
			 WHERE run_id = $1 AND lender_code = $2 AND dataset = $3`,
			key.RunID,
			key.LenderCode,
			string(key.Dataset),
		)
	}
	if err != nil {
		return fmt.Errorf("failed to mark detail processed: %w", err)
	}

	// Zero rows affected means the key was never ensured; that is a
	// caller-side sequencing bug, not a storage fault, so it stays silent.
	return nil
}

func (r *runRepository) Get(ctx context.Context, key domain.RunKey) (domain.LenderDatasetRun, bool, error) {
	if r.pool == nil {
		return domain.LenderDatasetRun{}, false, fmt.Errorf("run repository not initialized")
	}

	row := r.pool.QueryRow(
		ctx,
		`SELECT run_id, lender_code, dataset, bank_name, collection_date,
		        expected_detail_count, completed_detail_count, failed_detail_count,
		        finalized_at, last_error, updated_at
		 FROM lender_dataset_runs
		 WHERE run_id = $1 AND lender_code = $2 AND dataset = $3`,
		key.RunID,
		key.LenderCode,
		string(key.Dataset),
	)

	run, err := scanRun(row)
	if err == pgx.ErrNoRows {
		return domain.LenderDatasetRun{}, false, nil
	}
	if err != nil {
		return domain.LenderDatasetRun{}, false, fmt.Errorf("failed to get lender dataset run: %w", err)
	}

	return run, true, nil
}

func (r *runRepository) TryFinalize(ctx context.Context, key domain.RunKey) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("run repository not initialized")
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE lender_dataset_runs
		 SET finalized_at = now(), updated_at = now()
		 WHERE run_id = $1 AND lender_code = $2 AND dataset = $3
		   AND finalized_at IS NULL`,
		key.RunID,
		key.LenderCode,
		string(key.Dataset),
	)
	if err != nil {
		return false, fmt.Errorf("failed to finalize lender dataset run: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *runRepository) ListCoverage(ctx context.Context, dataset domain.DatasetKind, lenderCode *string, collectionDate *civil.Date, limit int) ([]domain.LenderDatasetRun, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("run repository not initialized")
	}

	limit = clampLimit(limit, 200, 1000)

	var date any
	if collectionDate != nil {
		date = collectionDate.String()
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT run_id, lender_code, dataset, bank_name, collection_date,
		        expected_detail_count, completed_detail_count, failed_detail_count,
		        finalized_at, last_error, updated_at
		 FROM lender_dataset_runs
		 WHERE dataset = $1
		   AND ($2::text IS NULL OR lender_code = $2)
		   AND ($3::date IS NULL OR collection_date = $3)
		 ORDER BY collection_date DESC, lender_code ASC
		 LIMIT $4`,
		string(dataset),
		lenderCode,
		date,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list coverage rows: %w", err)
	}
	defer rows.Close()

	runs := []domain.LenderDatasetRun{}
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan coverage row: %w", scanErr)
		}
		runs = append(runs, run)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate coverage rows: %w", rowsErr)
	}

	return runs, nil
}

func scanRun(row pgx.Row) (domain.LenderDatasetRun, error) {
	var (
		run         domain.LenderDatasetRun
		kind        string
		date        pgtype.Date
		finalizedAt pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)
	if err := row.Scan(
		&run.RunID,
		&run.LenderCode,
		&kind,
		&run.BankName,
		&date,
		&run.ExpectedCount,
		&run.CompletedCount,
		&run.FailedCount,
		&finalizedAt,
		&run.LastError,
		&updatedAt,
	); err != nil {
		return domain.LenderDatasetRun{}, err
	}

	run.Dataset = domain.DatasetKind(kind)
	if date.Valid {
		run.CollectionDate = civilDate(date.Time)
	}
	if finalizedAt.Valid {
		run.FinalizedAt = &finalizedAt.Time
	}
	if updatedAt.Valid {
		run.UpdatedAt = updatedAt.Time
	}

	return run, nil
}
