package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// FetchEvent is the raw provenance record for one attempted network fetch,
// success or failure. Rows are immutable once written.
type FetchEvent struct {
	ID             uuid.UUID         `json:"id"`
	RunID          *uuid.UUID        `json:"run_id,omitempty"`
	LenderCode     *string           `json:"lender_code,omitempty"`
	Dataset        *DatasetKind      `json:"dataset,omitempty"`
	SourceType     string            `json:"source_type"`
	SourceURL      string            `json:"source_url"`
	CollectionDate civil.Date        `json:"collection_date"`
	FetchedAt      time.Time         `json:"fetched_at"`
	HTTPStatus     int               `json:"http_status"`
	ContentHash    string            `json:"content_hash"`
	PayloadBytes   int64             `json:"payload_bytes"`
	ResponseHeader map[string]string `json:"response_headers,omitempty"`
	Duration       time.Duration     `json:"duration"`
	ProductID      *string           `json:"product_id,omitempty"`
	RawPersisted   bool              `json:"raw_persisted"`
}
