// Package ratechange derives the per-series rate transition log from the
// accepted observation history. Changes are computed on demand and never
// persisted.
package ratechange

import (
	"context"
	"fmt"
	"sort"

	"github.com/ratewatch/ratewatch/internal/domain"
	"github.com/ratewatch/ratewatch/internal/repository"
)

const (
	defaultLimit = 200
	maxLimit     = 1000
)

// Page bounds a change feed query. Limit is clamped to [1, 1000] with a 200
// default; negative offsets are treated as zero.
type Page struct {
	Limit  int
	Offset int
}

// Feed is one page of the change log plus the total ignoring pagination.
type Feed struct {
	Dataset domain.DatasetKind  `json:"dataset"`
	Total   int                 `json:"total"`
	Rows    []domain.RateChange `json:"rows"`
}

// Detector computes rate changes over one dataset's history.
type Detector struct {
	observations repository.ObservationRepository
}

// NewDetector builds a detector over the given history reader.
func NewDetector(observations repository.ObservationRepository) *Detector {
	return &Detector{observations: observations}
}

// Query returns the paginated change feed for a dataset, newest change
// first. An empty history yields an empty feed, never an error.
func (d *Detector) Query(ctx context.Context, dataset domain.DatasetKind, page Page) (Feed, error) {
	if _, err := domain.ParseDatasetKind(string(dataset)); err != nil {
		return Feed{}, err
	}

	history, err := d.observations.ListByDataset(ctx, dataset)
	if err != nil {
		return Feed{}, fmt.Errorf("failed to read %s history: %w", dataset, err)
	}

	changes := DetectChanges(dataset, history)

	limit := page.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}

	total := len(changes)
	if offset >= total {
		return Feed{Dataset: dataset, Total: total, Rows: []domain.RateChange{}}, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return Feed{Dataset: dataset, Total: total, Rows: changes[offset:end]}, nil
}

// DetectChanges runs the ordered-window comparison over a fixed snapshot of
// observations. Rows outside the dataset's validity band are invisible: they
// can serve as neither side of a change, so a filtered-out row never becomes
// a false predecessor. The result is sorted by change time descending.
func DetectChanges(dataset domain.DatasetKind, history []domain.RateObservation) []domain.RateChange {
	band := dataset.Band()

	series := map[string][]domain.RateObservation{}
	for _, obs := range history {
		if !band.Contains(obs.Rate, obs.Confidence) {
			continue
		}
		key, err := obs.Identity.SeriesKey()
		if err != nil {
			// An accepted observation with a broken identity cannot
			// be grouped; it is skipped rather than mispaired.
			continue
		}
		series[key] = append(series[key], obs)
	}

	changes := []domain.RateChange{}
	for key, rows := range series {
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].CollectionDate != rows[j].CollectionDate {
				return rows[i].CollectionDate.Before(rows[j].CollectionDate)
			}
			return rows[i].ParsedAt.Before(rows[j].ParsedAt)
		})

		for i := 1; i < len(rows); i++ {
			prev, next := rows[i-1], rows[i]
			if next.Rate == prev.Rate {
				continue
			}
			changes = append(changes, domain.RateChange{
				Dataset:      dataset,
				SeriesKey:    key,
				Identity:     next.Identity,
				ChangedAt:    next.ParsedAt,
				PreviousDate: prev.CollectionDate,
				NewDate:      next.CollectionDate,
				PreviousRate: prev.Rate,
				NewRate:      next.Rate,
				DeltaBps:     domain.DeltaBasisPoints(prev.Rate, next.Rate),
				RunSource:    next.RunSource,
			})
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		if !changes[i].ChangedAt.Equal(changes[j].ChangedAt) {
			return changes[i].ChangedAt.After(changes[j].ChangedAt)
		}
		return changes[i].SeriesKey < changes[j].SeriesKey
	})

	return changes
}
