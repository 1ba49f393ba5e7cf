package domain

import (
	"math"
	"time"

	"cloud.google.com/go/civil"
)

// RateObservation is one accepted historical rate snapshot, read from the
// dataset's history table. This core consumes the history; it never writes
// observations.
type RateObservation struct {
	Dataset        DatasetKind    `json:"dataset"`
	Identity       SeriesIdentity `json:"identity"`
	CollectionDate civil.Date     `json:"collection_date"`
	ParsedAt       time.Time      `json:"parsed_at"`
	Rate           float64        `json:"rate"`
	Confidence     float64        `json:"confidence"`
	RunSource      string         `json:"run_source"`
}

// RateChange is a derived (never persisted) transition between two adjacent
// accepted observations of the same series whose rates differ.
type RateChange struct {
	Dataset      DatasetKind    `json:"dataset"`
	SeriesKey    string         `json:"series_key"`
	Identity     SeriesIdentity `json:"identity"`
	ChangedAt    time.Time      `json:"changed_at"`
	PreviousDate civil.Date     `json:"previous_date"`
	NewDate      civil.Date     `json:"new_date"`
	PreviousRate float64        `json:"previous_rate"`
	NewRate      float64        `json:"new_rate"`
	DeltaBps     float64        `json:"delta_bps"`
	RunSource    string         `json:"run_source"`
}

// DeltaBasisPoints converts a rate transition to basis points, rounded to
// three decimal places.
func DeltaBasisPoints(previous, next float64) float64 {
	return math.Round((next-previous)*100*1000) / 1000
}
