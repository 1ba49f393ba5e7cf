package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ratewatch/ratewatch/internal/coverage"
	"github.com/ratewatch/ratewatch/internal/domain"
	"github.com/ratewatch/ratewatch/internal/ratechange"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

type stubRuns struct {
	rows []domain.LenderDatasetRun
}

func (s *stubRuns) Ensure(context.Context, domain.RunKey, string, civil.Date) error { return nil }
func (s *stubRuns) SetExpected(context.Context, domain.RunKey, string, civil.Date, int) error {
	return nil
}
func (s *stubRuns) MarkDetailProcessed(context.Context, domain.RunKey, bool, *string) error {
	return nil
}
func (s *stubRuns) Get(context.Context, domain.RunKey) (domain.LenderDatasetRun, bool, error) {
	return domain.LenderDatasetRun{}, false, nil
}
func (s *stubRuns) TryFinalize(context.Context, domain.RunKey) (bool, error) { return false, nil }
func (s *stubRuns) ListCoverage(context.Context, domain.DatasetKind, *string, *civil.Date, int) ([]domain.LenderDatasetRun, error) {
	return s.rows, nil
}

type stubObservations struct {
	rows []domain.RateObservation
}

func (s *stubObservations) ListByDataset(context.Context, domain.DatasetKind) ([]domain.RateObservation, error) {
	return s.rows, nil
}

type stubAnomalies struct {
	rows []domain.IngestAnomaly
}

func (s *stubAnomalies) Record(context.Context, domain.IngestAnomaly) (*uuid.UUID, error) {
	return nil, nil
}
func (s *stubAnomalies) ListRecent(context.Context, domain.DatasetKind, int) ([]domain.IngestAnomaly, error) {
	return s.rows, nil
}

type stubEvents struct {
	rows []domain.FetchEvent
}

func (s *stubEvents) Record(context.Context, domain.FetchEvent) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (s *stubEvents) ListByRun(context.Context, uuid.UUID, int) ([]domain.FetchEvent, error) {
	return s.rows, nil
}

func newTestHandler(runs *stubRuns, observations *stubObservations) http.Handler {
	if runs == nil {
		runs = &stubRuns{}
	}
	if observations == nil {
		observations = &stubObservations{}
	}
	mux := http.NewServeMux()
	handler := NewHandler(
		coverage.NewService(runs),
		ratechange.NewDetector(observations),
		&stubAnomalies{},
		&stubEvents{},
		nil,
	)
	handler.Register(mux)
	return mux
}

func TestCoverageEndpointRequiresDataset(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/coverage", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing dataset, got %d", rec.Code)
	}
}

func TestCoverageEndpointRejectsBadDate(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/coverage?dataset=savings&date=01-03-2026", nil)
	newTestHandler(nil, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestCoverageEndpointEmptyIsOK(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/coverage?dataset=home_loans", nil)
	newTestHandler(nil, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty report, got %d", rec.Code)
	}

	var report coverage.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if report.Count != 0 || len(report.Rows) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestCoverageEndpointReturnsRows(t *testing.T) {
	runs := &stubRuns{rows: []domain.LenderDatasetRun{{
		RunKey: domain.RunKey{
			RunID:      uuid.New(),
			LenderCode: "acme",
			Dataset:    domain.DatasetHomeLoans,
		},
		BankName:       "Acme Bank",
		CollectionDate: civil.Date{Year: 2026, Month: time.March, Day: 1},
		ExpectedCount:  10,
		CompletedCount: 6,
		FailedCount:    1,
	}}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/coverage?dataset=home_loans&lender=acme", nil)
	newTestHandler(runs, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var report coverage.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if report.Count != 1 {
		t.Fatalf("expected one row, got %d", report.Count)
	}
	if report.Rows[0].Pending != 3 || report.Rows[0].Ratio != 0.7 {
		t.Fatalf("derived fields wrong: %+v", report.Rows[0])
	}
}

func TestRateChangesEndpointPaginates(t *testing.T) {
	identity := domain.HomeLoanIdentity{
		Bank: "Acme", ProductID: "HL-1", Purpose: "owner_occupied",
		RepaymentType: "pi", LVRTier: "80", RateStructure: "variable",
	}
	obs := func(day int, rate float64) domain.RateObservation {
		return domain.RateObservation{
			Dataset:        domain.DatasetHomeLoans,
			Identity:       identity,
			CollectionDate: civil.Date{Year: 2026, Month: time.January, Day: day},
			ParsedAt:       time.Date(2026, time.January, day, 6, 0, 0, 0, time.UTC),
			Rate:           rate,
			Confidence:     0.9,
		}
	}
	observations := &stubObservations{rows: []domain.RateObservation{
		obs(1, 6.0), obs(8, 6.1), obs(15, 6.2), obs(22, 6.3),
	}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rate-changes?dataset=home_loans&limit=1&offset=1", nil)
	newTestHandler(nil, observations).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var feed struct {
		Total int               `json:"total"`
		Rows  []json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &feed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if feed.Total != 3 {
		t.Fatalf("expected total 3, got %d", feed.Total)
	}
	if len(feed.Rows) != 1 {
		t.Fatalf("expected one paginated row, got %d", len(feed.Rows))
	}
}

func TestRateChangesEndpointRejectsUnknownDataset(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rate-changes?dataset=bonds", nil)
	newTestHandler(nil, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown dataset, got %d", rec.Code)
	}
}

func TestEndpointsRejectNonGET(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/coverage?dataset=savings", nil)
	newTestHandler(nil, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestAnomaliesEndpointRequiresDataset(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anomalies", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing dataset, got %d", rec.Code)
	}
}

func TestFetchEventsEndpointRequiresRunID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fetch-events?run=not-a-uuid", nil)
	newTestHandler(nil, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad run id, got %d", rec.Code)
	}
}
