package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ratewatch/ratewatch/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type fetchEventRepository struct {
	pool *pgxpool.Pool
}

// NewFetchEventRepository wires a repository backed by pgxpool.
func NewFetchEventRepository(pool *pgxpool.Pool) FetchEventRepository {
	return &fetchEventRepository{pool: pool}
}

func (r *fetchEventRepository) Record(ctx context.Context, event domain.FetchEvent) (uuid.UUID, error) {
	if r.pool == nil {
		return uuid.Nil, fmt.Errorf("fetch event repository not initialized")
	}

	var dataset any
	if event.Dataset != nil {
		dataset = string(*event.Dataset)
	}

	headers, err := json.Marshal(event.ResponseHeader)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode response headers: %w", err)
	}

	var id uuid.UUID
	err = r.pool.QueryRow(
		ctx,
		`INSERT INTO fetch_events (
			run_id, lender_code, dataset, source_type, source_url,
			collection_date, fetched_at, http_status, content_hash,
			payload_bytes, response_headers, duration_ms, product_id, raw_persisted
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`,
		event.RunID,
		event.LenderCode,
		dataset,
		event.SourceType,
		event.SourceURL,
		event.CollectionDate.String(),
		event.FetchedAt,
		event.HTTPStatus,
		event.ContentHash,
		event.PayloadBytes,
		headers,
		event.Duration.Milliseconds(),
		event.ProductID,
		event.RawPersisted,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to record fetch event: %w", err)
	}

	return id, nil
}

func (r *fetchEventRepository) ListByRun(ctx context.Context, runID uuid.UUID, limit int) ([]domain.FetchEvent, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("fetch event repository not initialized")
	}

	if limit <= 0 {
		limit = 200
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, run_id, lender_code, dataset, source_type, source_url,
		        collection_date, fetched_at, http_status, content_hash,
		        payload_bytes, response_headers, duration_ms, product_id, raw_persisted
		 FROM fetch_events
		 WHERE run_id = $1
		 ORDER BY fetched_at DESC
		 LIMIT $2`,
		runID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list fetch events: %w", err)
	}
	defer rows.Close()

	events := []domain.FetchEvent{}
	for rows.Next() {
		var (
			event      domain.FetchEvent
			dataset    pgtype.Text
			date       pgtype.Date
			headers    []byte
			durationMS int64
		)
		if scanErr := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.LenderCode,
			&dataset,
			&event.SourceType,
			&event.SourceURL,
			&date,
			&event.FetchedAt,
			&event.HTTPStatus,
			&event.ContentHash,
			&event.PayloadBytes,
			&headers,
			&durationMS,
			&event.ProductID,
			&event.RawPersisted,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan fetch event: %w", scanErr)
		}

		if dataset.Valid {
			kind := domain.DatasetKind(dataset.String)
			event.Dataset = &kind
		}
		if date.Valid {
			event.CollectionDate = civilDate(date.Time)
		}
		if len(headers) > 0 {
			if jsonErr := json.Unmarshal(headers, &event.ResponseHeader); jsonErr != nil {
				return nil, fmt.Errorf("failed to decode response headers: %w", jsonErr)
			}
		}
		event.Duration = time.Duration(durationMS) * time.Millisecond

		events = append(events, event)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate fetch events: %w", rowsErr)
	}

	return events, nil
}
