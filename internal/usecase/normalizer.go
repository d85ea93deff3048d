package usecase

import (
	"CropPulse/internal/domain/models"
	domrepo "CropPulse/internal/domain/repository"
	applogger "CropPulse/pkg/logger"
	"CropPulse/pkg/util"
)

const defaultPriceUnit = "Quintal"

// Normalizer validates raw observations and merges competing reports for
// the same (commodity, market, date) into one canonical PricePoint per
// slot. It has no side effects beyond its return value.
type Normalizer struct {
	rank    map[string]int // source priority, lower wins
	logger  *applogger.Logger
	metrics domrepo.Metrics
}

// NewNormalizer creates a normalizer with the ranked source list. An empty
// list means conflicts fall back to most-recently-observed-wins.
func NewNormalizer(priority []string, l *applogger.Logger, m domrepo.Metrics) *Normalizer {
	rank := make(map[string]int, len(priority))
	for i, name := range priority {
		rank[name] = i
	}
	return &Normalizer{rank: rank, logger: l, metrics: m}
}

// Normalize turns a raw batch into accepted points and per-record
// rejections. A violating record never aborts the batch. Conflicting
// same-slot records resolve deterministically: configured source priority
// first, most recent observation otherwise; values are never averaged,
// provenance must stay traceable.
func (n *Normalizer) Normalize(raw []models.RawObservation) ([]models.PricePoint, []models.ValidationError, int) {
	points := make([]models.PricePoint, 0, len(raw))
	errs := make([]models.ValidationError, 0)
	bySlot := make(map[models.PriceKey]int) // slot -> index into points
	conflicts := 0

	for i, obs := range raw {
		p, verr := n.toPoint(i, obs)
		if verr != nil {
			errs = append(errs, *verr)
			continue
		}

		slot := p.Key()
		at, exists := bySlot[slot]
		if !exists {
			bySlot[slot] = len(points)
			points = append(points, p)
			continue
		}

		held := points[at]
		if held.Source == p.Source {
			// Same source repeating the slot within one batch: keep the
			// later observation.
			if p.ObservedAt.After(held.ObservedAt) {
				points[at] = p
			}
			continue
		}

		conflicts++
		winner := n.resolveConflict(held, p)
		n.metrics.RecordConflict(p.Commodity)
		n.logger.Warn("conflicting observations for slot",
			applogger.String("commodity", p.Commodity),
			applogger.String("market", p.Market),
			applogger.String("date", slot.Date),
			applogger.String("kept", winner.Source),
			applogger.String("held_modal", held.ModalPrice.String()),
			applogger.String("new_modal", p.ModalPrice.String()),
		)
		points[at] = winner
	}

	return points, errs, conflicts
}

func (n *Normalizer) toPoint(index int, obs models.RawObservation) (models.PricePoint, *models.ValidationError) {
	reject := func(reason string) (models.PricePoint, *models.ValidationError) {
		return models.PricePoint{}, &models.ValidationError{Index: index, Reason: reason, Observation: obs}
	}

	if obs.Source == "" {
		return reject("source is required")
	}
	day, ok := util.ParseDate(obs.ArrivalDate)
	if !ok {
		return reject("unparseable arrival date " + obs.ArrivalDate)
	}

	unit := obs.PriceUnit
	if unit == "" {
		unit = defaultPriceUnit
	}

	p := models.PricePoint{
		Commodity:   obs.Commodity,
		Variety:     obs.Variety,
		Grade:       obs.Grade,
		Market:      obs.Market,
		State:       obs.State,
		MinPrice:    obs.MinPrice,
		MaxPrice:    obs.MaxPrice,
		ModalPrice:  obs.ModalPrice,
		PriceUnit:   unit,
		ArrivalDate: day,
		Source:      obs.Source,
		ObservedAt:  obs.ObservedAt,
	}
	if err := p.Validate(); err != nil {
		return reject(err.Error())
	}
	return p, nil
}

// resolveConflict picks the winning observation for a slot. Ranked sources
// beat unranked ones; among equals the most recently observed wins, and a
// held point keeps its place on a full tie so the result does not depend
// on map iteration.
func (n *Normalizer) resolveConflict(held, incoming models.PricePoint) models.PricePoint {
	heldRank, heldRanked := n.rank[held.Source]
	inRank, inRanked := n.rank[incoming.Source]

	switch {
	case heldRanked && inRanked:
		if inRank < heldRank {
			return incoming
		}
		return held
	case heldRanked:
		return held
	case inRanked:
		return incoming
	}
	if incoming.ObservedAt.After(held.ObservedAt) {
		return incoming
	}
	return held
}
