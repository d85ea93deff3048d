package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"CropPulse/internal/domain/models"
	domrepo "CropPulse/internal/domain/repository"
	"CropPulse/pkg/cache"
	applogger "CropPulse/pkg/logger"
	"CropPulse/pkg/util"
)

// CommodityPrices is the aggregate current view of one commodity: the
// latest resolved point per market that reported it.
type CommodityPrices struct {
	Commodity string              `json:"commodity"`
	Markets   []models.PricePoint `json:"markets"`
	AsOf      time.Time           `json:"as_of"`
}

// PriceHistory is a date-ascending range read over one series.
type PriceHistory struct {
	Commodity string              `json:"commodity"`
	Market    string              `json:"market"`
	Days      int                 `json:"days"`
	Points    []models.PricePoint `json:"points"`
}

// PriceReader serves the read boundary. Every read is routed through the
// read-through cache; loader failures surface as errors, never as stale
// data.
type PriceReader struct {
	store   domrepo.PriceStore
	cache   *cache.ReadThrough
	metrics domrepo.Metrics
	logger  *applogger.Logger
	now     func() time.Time
}

func NewPriceReader(store domrepo.PriceStore, rt *cache.ReadThrough, metrics domrepo.Metrics, logger *applogger.Logger) *PriceReader {
	return &PriceReader{store: store, cache: rt, metrics: metrics, logger: logger, now: time.Now}
}

// Current returns the latest resolved point for one series.
func (r *PriceReader) Current(ctx context.Context, commodity, market string) (models.PricePoint, error) {
	key := cache.SeriesKey(commodity, market)
	return cache.GetTyped[models.PricePoint](ctx, r.cache, cache.CategoryPrices, key, func(ctx context.Context) (interface{}, error) {
		p, ok, err := r.store.Latest(ctx, commodity, market)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no prices recorded for %s in %s", commodity, market)
		}
		return p, nil
	})
}

// CurrentPrices returns the latest point per market for a commodity.
func (r *PriceReader) CurrentPrices(ctx context.Context, commodity string) (CommodityPrices, error) {
	key := cache.CommodityKey(commodity)
	return cache.GetTyped[CommodityPrices](ctx, r.cache, cache.CategoryPrices, key, func(ctx context.Context) (interface{}, error) {
		markets, err := r.store.Markets(ctx, commodity)
		if err != nil {
			return nil, err
		}
		if len(markets) == 0 {
			return nil, fmt.Errorf("no prices recorded for %s", commodity)
		}
		out := CommodityPrices{Commodity: commodity, AsOf: r.now()}
		for _, market := range markets {
			p, ok, err := r.store.Latest(ctx, commodity, market)
			if err != nil {
				return nil, err
			}
			if ok {
				out.Markets = append(out.Markets, p)
			}
		}
		sort.Slice(out.Markets, func(i, j int) bool { return out.Markets[i].Market < out.Markets[j].Market })
		return out, nil
	})
}

// History returns the series range for the trailing number of days,
// ascending by arrival date.
func (r *PriceReader) History(ctx context.Context, commodity, market string, days int) (PriceHistory, error) {
	if days <= 0 {
		days = 30
	}
	key := cache.HistoryKey(commodity, market, days)
	return cache.GetTyped[PriceHistory](ctx, r.cache, cache.CategoryPrices, key, func(ctx context.Context) (interface{}, error) {
		to := util.TruncateToDay(r.now())
		from := to.AddDate(0, 0, -days)
		points, err := r.store.Range(ctx, commodity, market, from, to)
		if err != nil {
			return nil, err
		}
		return PriceHistory{Commodity: commodity, Market: market, Days: days, Points: points}, nil
	})
}
