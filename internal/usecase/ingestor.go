package usecase

import (
	"context"
	"fmt"
	"time"

	"CropPulse/internal/domain/models"
	domrepo "CropPulse/internal/domain/repository"
	"CropPulse/pkg/cache"
	applogger "CropPulse/pkg/logger"
)

// Ingestor drives a raw batch through validation, storage, cache
// invalidation and alert evaluation. It is the only writer of the price
// series; replayed observations are absorbed without re-triggering any
// downstream work.
type Ingestor struct {
	normalizer *Normalizer
	store      domrepo.PriceStore
	cache      *cache.ReadThrough
	evaluator  *Evaluator
	metrics    domrepo.Metrics
	logger     *applogger.Logger
}

func NewIngestor(
	normalizer *Normalizer,
	store domrepo.PriceStore,
	rt *cache.ReadThrough,
	evaluator *Evaluator,
	metrics domrepo.Metrics,
	logger *applogger.Logger,
) *Ingestor {
	return &Ingestor{
		normalizer: normalizer,
		store:      store,
		cache:      rt,
		evaluator:  evaluator,
		metrics:    metrics,
		logger:     logger,
	}
}

// SubmitObservations ingests one batch attributed to sourceID. Records
// missing an explicit source inherit it. Per-record failures are collected
// in the result, never propagated as an error; only infrastructure
// failures abort the batch.
func (in *Ingestor) SubmitObservations(ctx context.Context, sourceID string, raw []models.RawObservation) (models.IngestResult, error) {
	start := time.Now()
	defer func() {
		in.metrics.RecordLatency("submit_observations", time.Since(start).Seconds())
	}()

	for i := range raw {
		if raw[i].Source == "" {
			raw[i].Source = sourceID
		}
		if raw[i].ObservedAt.IsZero() {
			raw[i].ObservedAt = start
		}
	}

	points, verrs, conflicts := in.normalizer.Normalize(raw)
	result := models.IngestResult{
		Rejected:  len(verrs),
		Conflicts: conflicts,
		Errors:    verrs,
	}
	for _, verr := range verrs {
		in.metrics.RecordObservation(verr.Observation.Source, "rejected")
		in.logger.Warn("observation rejected",
			applogger.String("source", verr.Observation.Source),
			applogger.String("reason", verr.Reason))
	}

	for _, p := range points {
		accepted, err := in.store.Put(ctx, p)
		if err != nil {
			return result, fmt.Errorf("storing %s/%s: %w", p.SeriesID(), p.Key().Date, err)
		}
		if !accepted {
			in.metrics.RecordObservation(p.Source, "replayed")
			continue
		}

		result.Accepted++
		in.metrics.RecordObservation(p.Source, "accepted")
		modal, _ := p.ModalPrice.Float64()
		in.metrics.RecordLastModalPrice(p.Commodity, p.Market, modal)

		in.invalidate(ctx, p)
		in.evaluator.Evaluate(ctx, p)
	}

	in.logger.Info("batch ingested",
		applogger.String("source", sourceID),
		applogger.Int("accepted", result.Accepted),
		applogger.Int("rejected", result.Rejected),
		applogger.Int("conflicts", result.Conflicts))
	return result, nil
}

// invalidate drops every cached read the accepted point makes stale: the
// series view, the commodity aggregate and any range reads over the series.
func (in *Ingestor) invalidate(ctx context.Context, p models.PricePoint) {
	keys := []string{
		cache.SeriesKey(p.Commodity, p.Market),
		cache.CommodityKey(p.Commodity),
	}
	if err := in.cache.Invalidate(ctx, cache.CategoryPrices, keys...); err != nil {
		in.metrics.RecordError("cache_invalidate")
		in.logger.Warn("cache invalidation failed", applogger.Error(err),
			applogger.String("series", p.SeriesID()))
	}
	prefix := cache.GenerateKeyWithParams("history", p.Commodity, p.Market)
	if err := in.cache.InvalidatePrefix(ctx, cache.CategoryPrices, prefix); err != nil {
		in.metrics.RecordError("cache_invalidate")
		in.logger.Warn("history invalidation failed", applogger.Error(err),
			applogger.String("series", p.SeriesID()))
	}
}
