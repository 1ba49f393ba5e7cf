// Package ingest is the façade the scrape workers call: it records fetch
// provenance, classifies rejected candidates into anomalies, and drives the
// completeness ledger. It owns no scheduling; every call is one round trip
// to the store so any number of worker processes can share it.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ratewatch/ratewatch/internal/domain"
	"github.com/ratewatch/ratewatch/internal/repository"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Candidate is one parsed-but-unvalidated record from a detail fetch.
type Candidate struct {
	Identity       domain.SeriesIdentity
	ProductID      *string
	CollectionDate *civil.Date
	FetchEventID   *uuid.UUID
	Raw            json.RawMessage
	Normalized     json.RawMessage
}

// Outcome reports how one candidate fared.
type Outcome struct {
	SeriesKey string
	Accepted  bool
	AnomalyID *uuid.UUID
	Reason    domain.AnomalyReason
}

// Summary aggregates a batch of candidate outcomes.
type Summary struct {
	Accepted int
	Rejected int
	Outcomes []Outcome
}

// Service wires the recorders and the ledger behind one surface.
type Service struct {
	events    repository.FetchEventRepository
	anomalies repository.AnomalyRepository
	runs      repository.RunRepository
	logger    *zap.Logger
}

// NewService builds the ingest façade.
func NewService(
	events repository.FetchEventRepository,
	anomalies repository.AnomalyRepository,
	runs repository.RunRepository,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{events: events, anomalies: anomalies, runs: runs, logger: logger}
}

// RecordFetchEvent appends one immutable provenance row and returns its id.
// The recorder does not retry; the scrape loop owns retries.
func (s *Service) RecordFetchEvent(ctx context.Context, event domain.FetchEvent) (uuid.UUID, error) {
	return s.events.Record(ctx, event)
}

// RecordAnomaly appends one anomaly row. All linkage fields may be absent.
func (s *Service) RecordAnomaly(ctx context.Context, anomaly domain.IngestAnomaly) (*uuid.UUID, error) {
	return s.anomalies.Record(ctx, anomaly)
}

// EnsureRun upserts the ledger row for a lender dataset snapshot.
func (s *Service) EnsureRun(ctx context.Context, key domain.RunKey, bankName string, collectionDate civil.Date) error {
	return s.runs.Ensure(ctx, key, bankName, collectionDate)
}

// SetExpected records the latest known detail-unit count for a key.
func (s *Service) SetExpected(ctx context.Context, key domain.RunKey, bankName string, collectionDate civil.Date, expected int) error {
	return s.runs.SetExpected(ctx, key, bankName, collectionDate, expected)
}

// MarkDetailProcessed resolves one detail unit. Callers must deliver this
// at most once per unit; the increment itself is atomic in the store.
func (s *Service) MarkDetailProcessed(ctx context.Context, key domain.RunKey, failed bool, errorMessage *string) error {
	return s.runs.MarkDetailProcessed(ctx, key, failed, errorMessage)
}

// TryFinalize attempts the one-time terminal transition for a key and
// reports whether this call performed it.
func (s *Service) TryFinalize(ctx context.Context, key domain.RunKey) (bool, error) {
	done, err := s.runs.TryFinalize(ctx, key)
	if err != nil {
		return false, err
	}
	if !done {
		s.logger.Debug("run already finalized",
			zap.String("run_id", key.RunID.String()),
			zap.String("lender", key.LenderCode),
			zap.String("dataset", key.Dataset.String()))
	}
	return done, nil
}

// Classify derives series keys for a batch of candidates, recording an
// anomaly for each one whose identity cannot be built. A bad candidate never
// blocks its siblings; only a storage fault aborts the batch.
func (s *Service) Classify(ctx context.Context, key *domain.RunKey, candidates []Candidate) (Summary, error) {
	summary := Summary{Outcomes: make([]Outcome, 0, len(candidates))}

	for _, candidate := range candidates {
		outcome, err := s.classifyOne(ctx, key, candidate)
		if err != nil {
			return summary, err
		}
		if outcome.Accepted {
			summary.Accepted++
		} else {
			summary.Rejected++
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	return summary, nil
}

func (s *Service) classifyOne(ctx context.Context, key *domain.RunKey, candidate Candidate) (Outcome, error) {
	if candidate.Identity == nil {
		return Outcome{}, fmt.Errorf("candidate has no identity")
	}

	seriesKey, err := candidate.Identity.SeriesKey()
	if err == nil {
		return Outcome{SeriesKey: seriesKey, Accepted: true}, nil
	}

	reason, ok := domain.ClassifyIdentityError(err)
	if !ok {
		return Outcome{}, fmt.Errorf("failed to build series key: %w", err)
	}

	anomaly := domain.IngestAnomaly{
		FetchEventID:   candidate.FetchEventID,
		Dataset:        candidate.Identity.Dataset(),
		ProductID:      candidate.ProductID,
		CollectionDate: candidate.CollectionDate,
		Reason:         reason,
		Severity:       domain.SeverityWarn,
		RawPayload:     candidate.Raw,
		Normalized:     candidate.Normalized,
	}
	if key != nil {
		runID := key.RunID
		lender := key.LenderCode
		anomaly.RunID = &runID
		anomaly.LenderCode = &lender
	}
	if dims, dimsErr := candidate.Identity.DimensionsJSON(); dimsErr == nil && anomaly.Normalized == nil {
		anomaly.Normalized = dims
	}

	id, recordErr := s.anomalies.Record(ctx, anomaly)
	if recordErr != nil {
		return Outcome{}, fmt.Errorf("failed to record identity anomaly: %w", recordErr)
	}

	s.logger.Warn("candidate rejected",
		zap.String("dataset", candidate.Identity.Dataset().String()),
		zap.String("reason", string(reason)),
		zap.Error(err))

	return Outcome{Accepted: false, AnomalyID: id, Reason: reason}, nil
}
