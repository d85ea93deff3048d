package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"CropPulse/pkg/util"
)

// RawObservation is a single upstream record as reported by a source
// (Agmarknet, eNAM) before validation and conflict resolution.
type RawObservation struct {
	Commodity   string          `json:"commodity"`
	Variety     string          `json:"variety,omitempty"`
	Grade       string          `json:"grade,omitempty"`
	Market      string          `json:"market"`
	State       string          `json:"state"`
	MinPrice    decimal.Decimal `json:"min_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`
	ModalPrice  decimal.Decimal `json:"modal_price"`
	PriceUnit   string          `json:"price_unit,omitempty"`
	ArrivalDate string          `json:"arrival_date"` // canonical or upstream date layout
	Source      string          `json:"source"`
	ObservedAt  time.Time       `json:"observed_at"` // when the fetcher saw this record
}

// PricePoint is an accepted, immutable commodity price observation.
// Later observations for the same (commodity, market, date) supersede it,
// they never mutate it.
type PricePoint struct {
	Commodity   string          `json:"commodity"`
	Variety     string          `json:"variety,omitempty"`
	Grade       string          `json:"grade,omitempty"`
	Market      string          `json:"market"`
	State       string          `json:"state"`
	MinPrice    decimal.Decimal `json:"min_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`
	ModalPrice  decimal.Decimal `json:"modal_price"`
	PriceUnit   string          `json:"price_unit"`
	ArrivalDate time.Time       `json:"arrival_date"`
	Source      string          `json:"source"`
	ObservedAt  time.Time       `json:"observed_at"`
}

// PriceKey identifies the series slot a point occupies. Two points with the
// same PriceKey from different sources are competing observations.
type PriceKey struct {
	Commodity string
	Market    string
	Date      string // canonical layout, see util.DateLayout
}

// Key returns the (commodity, market, date) slot for the point.
func (p PricePoint) Key() PriceKey {
	return PriceKey{Commodity: p.Commodity, Market: p.Market, Date: util.FormatDate(p.ArrivalDate)}
}

// SeriesID is the (commodity, market) pair alert rules subscribe to.
func (p PricePoint) SeriesID() string {
	return p.Commodity + "/" + p.Market
}

// Validate enforces the price band invariant: all three prices strictly
// positive and min <= modal <= max.
func (p PricePoint) Validate() error {
	if p.Commodity == "" {
		return fmt.Errorf("commodity is required")
	}
	if p.Market == "" {
		return fmt.Errorf("market is required")
	}
	if p.ArrivalDate.IsZero() {
		return fmt.Errorf("arrival date is required")
	}
	if !p.MinPrice.IsPositive() || !p.MaxPrice.IsPositive() || !p.ModalPrice.IsPositive() {
		return fmt.Errorf("prices must be strictly positive (min=%s modal=%s max=%s)",
			p.MinPrice, p.ModalPrice, p.MaxPrice)
	}
	if p.MinPrice.GreaterThan(p.ModalPrice) || p.ModalPrice.GreaterThan(p.MaxPrice) {
		return fmt.Errorf("price band violated: want min <= modal <= max, got min=%s modal=%s max=%s",
			p.MinPrice, p.ModalPrice, p.MaxPrice)
	}
	return nil
}

// ValidationError tags a rejected observation with the reason it failed.
// Rejections never abort the rest of the batch.
type ValidationError struct {
	Index       int            `json:"index"`
	Reason      string         `json:"reason"`
	Observation RawObservation `json:"observation"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("observation %d (%s/%s %s): %s",
		e.Index, e.Observation.Commodity, e.Observation.Market, e.Observation.ArrivalDate, e.Reason)
}

// IngestResult summarizes one submitted batch.
type IngestResult struct {
	Accepted  int               `json:"accepted"`
	Rejected  int               `json:"rejected"`
	Conflicts int               `json:"conflicts"`
	Errors    []ValidationError `json:"errors,omitempty"`
}
