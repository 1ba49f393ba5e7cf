package repository

import (
	"context"
	"fmt"

	"github.com/ratewatch/ratewatch/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type observationRepository struct {
	pool *pgxpool.Pool
}

// NewObservationRepository wires the read-only view over the accepted rate
// history tables. The write path belongs to the validation layer, not here.
func NewObservationRepository(pool *pgxpool.Pool) ObservationRepository {
	return &observationRepository{pool: pool}
}

func (r *observationRepository) ListByDataset(ctx context.Context, dataset domain.DatasetKind) ([]domain.RateObservation, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("observation repository not initialized")
	}

	switch dataset {
	case domain.DatasetHomeLoans:
		return r.listHomeLoans(ctx)
	case domain.DatasetSavings:
		return r.listSavings(ctx)
	case domain.DatasetTermDeposits:
		return r.listTermDeposits(ctx)
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDataset, dataset)
}

func (r *observationRepository) listHomeLoans(ctx context.Context) ([]domain.RateObservation, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT bank, product_id, purpose, repayment_type, lvr_tier, rate_structure,
		        collection_date, parsed_at, interest_rate, confidence, run_source
		 FROM home_loan_rates
		 ORDER BY collection_date ASC, parsed_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list home loan observations: %w", err)
	}
	defer rows.Close()

	return collectObservations(rows, domain.DatasetHomeLoans, func(rs pgx.Rows, obs *domain.RateObservation) error {
		var (
			identity domain.HomeLoanIdentity
			date     pgtype.Date
		)
		if err := rs.Scan(
			&identity.Bank,
			&identity.ProductID,
			&identity.Purpose,
			&identity.RepaymentType,
			&identity.LVRTier,
			&identity.RateStructure,
			&date,
			&obs.ParsedAt,
			&obs.Rate,
			&obs.Confidence,
			&obs.RunSource,
		); err != nil {
			return err
		}
		obs.Identity = identity
		if date.Valid {
			obs.CollectionDate = civilDate(date.Time)
		}
		return nil
	})
}

func (r *observationRepository) listSavings(ctx context.Context) ([]domain.RateObservation, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT bank, product_id, account_name, rate_type, deposit_tier,
		        collection_date, parsed_at, interest_rate, confidence, run_source
		 FROM savings_rates
		 ORDER BY collection_date ASC, parsed_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list savings observations: %w", err)
	}
	defer rows.Close()

	return collectObservations(rows, domain.DatasetSavings, func(rs pgx.Rows, obs *domain.RateObservation) error {
		var (
			identity domain.SavingsIdentity
			date     pgtype.Date
		)
		if err := rs.Scan(
			&identity.Bank,
			&identity.ProductID,
			&identity.AccountName,
			&identity.RateType,
			&identity.DepositTier,
			&date,
			&obs.ParsedAt,
			&obs.Rate,
			&obs.Confidence,
			&obs.RunSource,
		); err != nil {
			return err
		}
		obs.Identity = identity
		if date.Valid {
			obs.CollectionDate = civilDate(date.Time)
		}
		return nil
	})
}

func (r *observationRepository) listTermDeposits(ctx context.Context) ([]domain.RateObservation, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT bank, product_id, term_months, deposit_tier, payment_frequency,
		        collection_date, parsed_at, interest_rate, confidence, run_source
		 FROM term_deposit_rates
		 ORDER BY collection_date ASC, parsed_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list term deposit observations: %w", err)
	}
	defer rows.Close()

	return collectObservations(rows, domain.DatasetTermDeposits, func(rs pgx.Rows, obs *domain.RateObservation) error {
		var (
			identity domain.TermDepositIdentity
			date     pgtype.Date
		)
		if err := rs.Scan(
			&identity.Bank,
			&identity.ProductID,
			&identity.TermMonths,
			&identity.DepositTier,
			&identity.PaymentFrequency,
			&date,
			&obs.ParsedAt,
			&obs.Rate,
			&obs.Confidence,
			&obs.RunSource,
		); err != nil {
			return err
		}
		obs.Identity = identity
		if date.Valid {
			obs.CollectionDate = civilDate(date.Time)
		}
		return nil
	})
}

func collectObservations(rows pgx.Rows, dataset domain.DatasetKind, scan func(pgx.Rows, *domain.RateObservation) error) ([]domain.RateObservation, error) {
	observations := []domain.RateObservation{}
	for rows.Next() {
		obs := domain.RateObservation{Dataset: dataset}
		if err := scan(rows, &obs); err != nil {
			return nil, fmt.Errorf("failed to scan %s observation: %w", dataset, err)
		}
		observations = append(observations, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s observations: %w", dataset, err)
	}

	return observations, nil
}
