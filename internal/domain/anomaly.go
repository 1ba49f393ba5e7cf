package domain

import (
	"encoding/json"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// AnomalyReason classifies why a candidate record was rejected or flagged.
// The set is closed; unknown reasons indicate a programming error upstream.
type AnomalyReason string

const (
	ReasonMissingDatasetIdentity AnomalyReason = "missing_dataset_identity"
	ReasonMissingProductCode     AnomalyReason = "missing_product_code"
	ReasonInvalidDate            AnomalyReason = "invalid_date"
	ReasonInvalidPayload         AnomalyReason = "invalid_payload"
	ReasonUnknownEnumValue       AnomalyReason = "unknown_enum_value"
	ReasonUnexpectedTermLength   AnomalyReason = "unexpected_term_length"
	ReasonRateOutlier            AnomalyReason = "rate_outlier"
	ReasonProductNameMismatch    AnomalyReason = "product_name_mismatch"
	ReasonValidationRuleMismatch AnomalyReason = "validation_rule_mismatch"
)

// AnomalySeverity grades an anomaly for triage. Most anomalies are warnings;
// errors mean the record was dropped outright.
type AnomalySeverity string

const (
	SeverityWarn  AnomalySeverity = "warn"
	SeverityError AnomalySeverity = "error"
)

// IngestAnomaly is one rejected or suspicious candidate record, retained for
// human triage. Every linkage field is optional so that unidentifiable bad
// data can still be stored.
type IngestAnomaly struct {
	ID             uuid.UUID       `json:"id"`
	FetchEventID   *uuid.UUID      `json:"fetch_event_id,omitempty"`
	RunID          *uuid.UUID      `json:"run_id,omitempty"`
	LenderCode     *string         `json:"lender_code,omitempty"`
	Dataset        DatasetKind     `json:"dataset"`
	ProductID      *string         `json:"product_id,omitempty"`
	SeriesKey      *string         `json:"series_key,omitempty"`
	CollectionDate *civil.Date     `json:"collection_date,omitempty"`
	Reason         AnomalyReason   `json:"reason"`
	Severity       AnomalySeverity `json:"severity"`
	RawPayload     json.RawMessage `json:"raw_payload"`
	Normalized     json.RawMessage `json:"normalized,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ClassifyIdentityError maps a series-key construction failure to its anomaly
// reason. A blank product code gets its own reason; any other missing
// dimension is a generic identity failure. ok is false when the error is not
// an identity failure at all.
func ClassifyIdentityError(err error) (AnomalyReason, bool) {
	var missing MissingIdentityFieldError
	if !errors.As(err, &missing) {
		return "", false
	}
	if missing.Field == "product_id" {
		return ReasonMissingProductCode, true
	}
	return ReasonMissingDatasetIdentity, true
}
