package repository

import (
	"context"
	"fmt"

	"github.com/ratewatch/ratewatch/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type anomalyRepository struct {
	pool *pgxpool.Pool
}

// NewAnomalyRepository wires a repository backed by pgxpool.
func NewAnomalyRepository(pool *pgxpool.Pool) AnomalyRepository {
	return &anomalyRepository{pool: pool}
}

func (r *anomalyRepository) Record(ctx context.Context, anomaly domain.IngestAnomaly) (*uuid.UUID, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("anomaly repository not initialized")
	}

	severity := anomaly.Severity
	if severity == "" {
		severity = domain.SeverityWarn
	}

	var collectionDate any
	if anomaly.CollectionDate != nil {
		collectionDate = anomaly.CollectionDate.String()
	}

	var id uuid.UUID
	err := r.pool.QueryRow(
		ctx,
		`INSERT INTO ingest_anomalies (
			fetch_event_id, run_id, lender_code, dataset, product_id,
			series_key, collection_date, reason, severity, raw_payload, normalized
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		anomaly.FetchEventID,
		anomaly.RunID,
		anomaly.LenderCode,
		string(anomaly.Dataset),
		anomaly.ProductID,
		anomaly.SeriesKey,
		collectionDate,
		string(anomaly.Reason),
		string(severity),
		[]byte(anomaly.RawPayload),
		[]byte(anomaly.Normalized),
	).Scan(&id)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record anomaly: %w", err)
	}

	return &id, nil
}

func (r *anomalyRepository) ListRecent(ctx context.Context, dataset domain.DatasetKind, limit int) ([]domain.IngestAnomaly, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("anomaly repository not initialized")
	}

	limit = clampLimit(limit, 200, 1000)

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, fetch_event_id, run_id, lender_code, dataset, product_id,
		        series_key, collection_date, reason, severity, raw_payload,
		        normalized, created_at
		 FROM ingest_anomalies
		 WHERE dataset = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		string(dataset),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}
	defer rows.Close()

	anomalies := []domain.IngestAnomaly{}
	for rows.Next() {
		var (
			anomaly   domain.IngestAnomaly
			kind      string
			reason    string
			severity  string
			date      pgtype.Date
			createdAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&anomaly.ID,
			&anomaly.FetchEventID,
			&anomaly.RunID,
			&anomaly.LenderCode,
			&kind,
			&anomaly.ProductID,
			&anomaly.SeriesKey,
			&date,
			&reason,
			&severity,
			&anomaly.RawPayload,
			&anomaly.Normalized,
			&createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", scanErr)
		}

		anomaly.Dataset = domain.DatasetKind(kind)
		anomaly.Reason = domain.AnomalyReason(reason)
		anomaly.Severity = domain.AnomalySeverity(severity)
		if date.Valid {
			value := civilDate(date.Time)
			anomaly.CollectionDate = &value
		}
		if createdAt.Valid {
			anomaly.CreatedAt = createdAt.Time
		}

		anomalies = append(anomalies, anomaly)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate anomalies: %w", rowsErr)
	}

	return anomalies, nil
}
