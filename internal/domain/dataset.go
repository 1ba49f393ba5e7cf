package domain

import (
	"errors"
	"fmt"
)

// DatasetKind identifies one of the scraped product families. It determines
// which identity dimensions a series key requires and which validity band the
// change detector applies.
type DatasetKind string

const (
	DatasetHomeLoans    DatasetKind = "home_loans"
	DatasetSavings      DatasetKind = "savings"
	DatasetTermDeposits DatasetKind = "term_deposits"
)

// ErrUnknownDataset is returned when a string does not name a dataset kind.
var ErrUnknownDataset = errors.New("unknown dataset kind")

// AllDatasetKinds lists every kind in a stable order.
func AllDatasetKinds() []DatasetKind {
	return []DatasetKind{DatasetHomeLoans, DatasetSavings, DatasetTermDeposits}
}

// ParseDatasetKind validates a raw string against the closed enumeration.
func ParseDatasetKind(raw string) (DatasetKind, error) {
	switch DatasetKind(raw) {
	case DatasetHomeLoans, DatasetSavings, DatasetTermDeposits:
		return DatasetKind(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDataset, raw)
}

func (k DatasetKind) String() string {
	return string(k)
}

// ValidityBand bounds the observations the change detector will consider.
// Rows outside the band are data-quality artifacts, not rate changes.
type ValidityBand struct {
	MinRate       float64
	MaxRate       float64
	MinConfidence float64
}

// Band returns the plausibility filter for the dataset kind.
func (k DatasetKind) Band() ValidityBand {
	switch k {
	case DatasetHomeLoans:
		return ValidityBand{MinRate: 0.5, MaxRate: 25, MinConfidence: 0.85}
	default:
		return ValidityBand{MinRate: 0, MaxRate: 15, MinConfidence: 0.85}
	}
}

// Contains reports whether an observation's rate and confidence fall inside
// the band.
func (b ValidityBand) Contains(rate, confidence float64) bool {
	return rate >= b.MinRate && rate <= b.MaxRate && confidence >= b.MinConfidence
}
