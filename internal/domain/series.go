package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SeriesKeyDelimiter separates identity dimensions inside a series key.
const SeriesKeyDelimiter = "|"

// MissingIdentityFieldError reports that a series key could not be built
// because a required identity dimension was blank. The validation layer maps
// it to a missing_dataset_identity (or missing_product_code) anomaly instead
// of aborting the batch.
type MissingIdentityFieldError struct {
	Dataset DatasetKind
	Field   string
}

func (e MissingIdentityFieldError) Error() string {
	return fmt.Sprintf("%s series identity missing required field %q", e.Dataset, e.Field)
}

// SeriesIdentity is the discriminated identity of one product variant within
// a dataset kind. The key is a grouping identity recomputed on read or write,
// not a storage primary key.
type SeriesIdentity interface {
	Dataset() DatasetKind

	// SeriesKey derives the deterministic delimited identity string. It
	// fails with MissingIdentityFieldError when any required dimension is
	// blank after trimming.
	SeriesKey() (string, error)

	// LegacySeriesKey derives the identity under the older key scheme.
	// Only term deposits differ (the interest-payment dimension is
	// omitted); every other kind returns the primary key.
	LegacySeriesKey() (string, error)

	// DimensionsJSON projects the kind-specific dimensions to canonical
	// JSON, nulling absent ones, so anomalies stay queryable by partial
	// identity.
	DimensionsJSON() ([]byte, error)
}

type keyPart struct {
	field string
	value string
}

func buildKey(kind DatasetKind, parts []keyPart) (string, error) {
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p.value)
		if v == "" {
			return "", MissingIdentityFieldError{Dataset: kind, Field: p.field}
		}
		values = append(values, v)
	}
	return strings.Join(values, SeriesKeyDelimiter), nil
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// HomeLoanIdentity identifies one home-loan rate series.
type HomeLoanIdentity struct {
	Bank          string `json:"bank"`
	ProductID     string `json:"product_id"`
	Purpose       string `json:"purpose"`
	RepaymentType string `json:"repayment_type"`
	LVRTier       string `json:"lvr_tier"`
	RateStructure string `json:"rate_structure"`
}

func (i HomeLoanIdentity) Dataset() DatasetKind { return DatasetHomeLoans }

func (i HomeLoanIdentity) SeriesKey() (string, error) {
	return buildKey(DatasetHomeLoans, []keyPart{
		{"bank", i.Bank},
		{"product_id", i.ProductID},
		{"purpose", i.Purpose},
		{"repayment_type", i.RepaymentType},
		{"lvr_tier", i.LVRTier},
		{"rate_structure", i.RateStructure},
	})
}

func (i HomeLoanIdentity) LegacySeriesKey() (string, error) { return i.SeriesKey() }

func (i HomeLoanIdentity) DimensionsJSON() ([]byte, error) {
	return json.Marshal(struct {
		Purpose       *string `json:"purpose"`
		RepaymentType *string `json:"repayment_type"`
		LVRTier       *string `json:"lvr_tier"`
		RateStructure *string `json:"rate_structure"`
	}{nullable(i.Purpose), nullable(i.RepaymentType), nullable(i.LVRTier), nullable(i.RateStructure)})
}

// SavingsIdentity identifies one savings-account rate series.
type SavingsIdentity struct {
	Bank        string `json:"bank"`
	ProductID   string `json:"product_id"`
	AccountName string `json:"account_name"`
	RateType    string `json:"rate_type"`
	DepositTier string `json:"deposit_tier"`
}

func (i SavingsIdentity) Dataset() DatasetKind { return DatasetSavings }

func (i SavingsIdentity) SeriesKey() (string, error) {
	return buildKey(DatasetSavings, []keyPart{
		{"bank", i.Bank},
		{"product_id", i.ProductID},
		{"account_name", i.AccountName},
		{"rate_type", i.RateType},
		{"deposit_tier", i.DepositTier},
	})
}

func (i SavingsIdentity) LegacySeriesKey() (string, error) { return i.SeriesKey() }

func (i SavingsIdentity) DimensionsJSON() ([]byte, error) {
	return json.Marshal(struct {
		AccountName *string `json:"account_name"`
		RateType    *string `json:"rate_type"`
		DepositTier *string `json:"deposit_tier"`
	}{nullable(i.AccountName), nullable(i.RateType), nullable(i.DepositTier)})
}

// TermDepositIdentity identifies one term-deposit rate series.
type TermDepositIdentity struct {
	Bank             string `json:"bank"`
	ProductID        string `json:"product_id"`
	TermMonths       int    `json:"term_months"`
	DepositTier      string `json:"deposit_tier"`
	PaymentFrequency string `json:"payment_frequency"`
}

func (i TermDepositIdentity) Dataset() DatasetKind { return DatasetTermDeposits }

func (i TermDepositIdentity) termPart() keyPart {
	value := ""
	if i.TermMonths > 0 {
		value = strconv.Itoa(i.TermMonths)
	}
	return keyPart{"term_months", value}
}

func (i TermDepositIdentity) SeriesKey() (string, error) {
	return buildKey(DatasetTermDeposits, []keyPart{
		{"bank", i.Bank},
		{"product_id", i.ProductID},
		i.termPart(),
		{"deposit_tier", i.DepositTier},
		{"payment_frequency", i.PaymentFrequency},
	})
}

// LegacySeriesKey omits the interest-payment dimension, matching keys minted
// before payment frequency became part of the identity.
func (i TermDepositIdentity) LegacySeriesKey() (string, error) {
	return buildKey(DatasetTermDeposits, []keyPart{
		{"bank", i.Bank},
		{"product_id", i.ProductID},
		i.termPart(),
		{"deposit_tier", i.DepositTier},
	})
}

func (i TermDepositIdentity) DimensionsJSON() ([]byte, error) {
	var term *int
	if i.TermMonths > 0 {
		term = &i.TermMonths
	}
	return json.Marshal(struct {
		TermMonths       *int    `json:"term_months"`
		DepositTier      *string `json:"deposit_tier"`
		PaymentFrequency *string `json:"payment_frequency"`
	}{term, nullable(i.DepositTier), nullable(i.PaymentFrequency)})
}
