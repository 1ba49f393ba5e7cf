// Package api exposes the coverage and rate-change read contracts as thin
// JSON endpoints. The routes are a default shell over the library surface;
// the real serving API lives outside this module.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ratewatch/ratewatch/internal/coverage"
	"github.com/ratewatch/ratewatch/internal/domain"
	"github.com/ratewatch/ratewatch/internal/ratechange"
	"github.com/ratewatch/ratewatch/internal/repository"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler serves the read endpoints: the two consumer contracts plus the
// anomaly and fetch-event triage feeds.
type Handler struct {
	coverage  *coverage.Service
	changes   *ratechange.Detector
	anomalies repository.AnomalyRepository
	events    repository.FetchEventRepository
	logger    *zap.Logger
}

// NewHandler builds the read API.
func NewHandler(
	coverageSvc *coverage.Service,
	changes *ratechange.Detector,
	anomalies repository.AnomalyRepository,
	events repository.FetchEventRepository,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		coverage:  coverageSvc,
		changes:   changes,
		anomalies: anomalies,
		events:    events,
		logger:    logger,
	}
}

// Register mounts the endpoints on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/coverage", h.handleCoverage)
	mux.HandleFunc("/rate-changes", h.handleRateChanges)
	mux.HandleFunc("/anomalies", h.handleAnomalies)
	mux.HandleFunc("/fetch-events", h.handleFetchEvents)
}

func (h *Handler) handleCoverage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dataset, err := domain.ParseDatasetKind(strings.TrimSpace(r.URL.Query().Get("dataset")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	filter := coverage.Filter{}
	if lender := strings.TrimSpace(r.URL.Query().Get("lender")); lender != "" {
		filter.LenderCode = &lender
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		date, dateErr := civil.ParseDate(raw)
		if dateErr != nil {
			http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.CollectionDate = &date
	}
	filter.Limit = intParam(r, "limit")

	report, err := h.coverage.Report(r.Context(), dataset, filter)
	if err != nil {
		h.fail(w, "coverage report failed", err)
		return
	}

	writeJSON(w, report)
}

func (h *Handler) handleRateChanges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dataset, err := domain.ParseDatasetKind(strings.TrimSpace(r.URL.Query().Get("dataset")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page := ratechange.Page{
		Limit:  intParam(r, "limit"),
		Offset: intParam(r, "offset"),
	}

	feed, err := h.changes.Query(r.Context(), dataset, page)
	if err != nil {
		h.fail(w, "rate change query failed", err)
		return
	}

	writeJSON(w, feed)
}

func (h *Handler) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dataset, err := domain.ParseDatasetKind(strings.TrimSpace(r.URL.Query().Get("dataset")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	anomalies, err := h.anomalies.ListRecent(r.Context(), dataset, intParam(r, "limit"))
	if err != nil {
		h.fail(w, "anomaly feed failed", err)
		return
	}

	writeJSON(w, struct {
		Dataset domain.DatasetKind     `json:"dataset"`
		Count   int                    `json:"count"`
		Rows    []domain.IngestAnomaly `json:"rows"`
	}{dataset, len(anomalies), anomalies})
}

func (h *Handler) handleFetchEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("run")))
	if err != nil {
		http.Error(w, "run must be a UUID", http.StatusBadRequest)
		return
	}

	events, err := h.events.ListByRun(r.Context(), runID, intParam(r, "limit"))
	if err != nil {
		h.fail(w, "fetch event feed failed", err)
		return
	}

	writeJSON(w, struct {
		RunID uuid.UUID           `json:"run_id"`
		Count int                 `json:"count"`
		Rows  []domain.FetchEvent `json:"rows"`
	}{runID, len(events), events})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, domain.ErrUnknownDataset) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Error(msg, zap.Error(err))
	http.Error(w, msg, http.StatusInternalServerError)
}

func intParam(r *http.Request, name string) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
