package coverage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ratewatch/ratewatch/internal/domain"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

type stubRuns struct {
	rows      []domain.LenderDatasetRun
	err       error
	lastLimit int
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

func (s *stubRuns) ListCoverage(_ context.Context, _ domain.DatasetKind, _ *string, _ *civil.Date, limit int) ([]domain.LenderDatasetRun, error) {
	s.lastLimit = limit
	return s.rows, s.err
}

func TestReportDerivesCompleteness(t *testing.T) {
	finalized := time.Date(2026, time.March, 1, 2, 0, 0, 0, time.UTC)
	stub := &stubRuns{rows: []domain.LenderDatasetRun{
		{
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
			FinalizedAt:    &finalized,
		},
		{
			RunKey: domain.RunKey{
				RunID:      uuid.New(),
				LenderCode: "birch",
				Dataset:    domain.DatasetHomeLoans,
			},
			BankName:       "Birch Bank",
			CollectionDate: civil.Date{Year: 2026, Month: time.March, Day: 1},
		},
	}}

	report, err := NewService(stub).Report(context.Background(), domain.DatasetHomeLoans, Filter{})
	if err != nil {
		t.Fatalf("report returned error: %v", err)
	}

	if report.Count != 2 || len(report.Rows) != 2 {
		t.Fatalf("expected 2 rows, got count=%d rows=%d", report.Count, len(report.Rows))
	}

	first := report.Rows[0]
	if first.Pending != 3 {
		t.Fatalf("expected pending 3, got %d", first.Pending)
	}
	if first.Ratio != 0.7 {
		t.Fatalf("expected ratio 0.7, got %v", first.Ratio)
	}
	if !first.Finalized {
		t.Fatalf("expected first row finalized")
	}

	second := report.Rows[1]
	if second.Ratio != 1.0 {
		t.Fatalf("zero expectation must be vacuously complete, got %v", second.Ratio)
	}
	if second.Finalized {
		t.Fatalf("expected second row not finalized")
	}
}

func TestReportClampsLimit(t *testing.T) {
	stub := &stubRuns{}
	svc := NewService(stub)

	if _, err := svc.Report(context.Background(), domain.DatasetSavings, Filter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.lastLimit != 200 {
		t.Fatalf("expected default limit 200, got %d", stub.lastLimit)
	}

	if _, err := svc.Report(context.Background(), domain.DatasetSavings, Filter{Limit: 9999}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.lastLimit != 1000 {
		t.Fatalf("expected max limit 1000, got %d", stub.lastLimit)
	}
}

func TestReportUnknownDataset(t *testing.T) {
	svc := NewService(&stubRuns{})
	if _, err := svc.Report(context.Background(), domain.DatasetKind("crypto"), Filter{}); !errors.Is(err, domain.ErrUnknownDataset) {
		t.Fatalf("expected ErrUnknownDataset, got %v", err)
	}
}

func TestReportEmptyIsNotAnError(t *testing.T) {
	report, err := NewService(&stubRuns{}).Report(context.Background(), domain.DatasetTermDeposits, Filter{})
	if err != nil {
		t.Fatalf("no rows must not error: %v", err)
	}
	if report.Count != 0 || len(report.Rows) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestReportSurfacesStorageFault(t *testing.T) {
	svc := NewService(&stubRuns{err: errors.New("connection refused")})
	if _, err := svc.Report(context.Background(), domain.DatasetHomeLoans, Filter{}); err == nil {
		t.Fatalf("expected storage fault to surface")
	}
}
