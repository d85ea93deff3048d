package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"CropPulse/internal/domain/models"
	"CropPulse/internal/domain/repository"
	"CropPulse/pkg/util"
)

type storedPoint struct {
	pt  models.PricePoint
	seq uint64
}

// MemoryPriceStore implements PriceStore in process memory. It is the
// backend for the "memory" store config and the reference implementation
// the engine tests run against.
type MemoryPriceStore struct {
	mu      sync.Mutex
	rows    map[models.PriceKey]map[string]*storedPoint // key -> source -> row
	counter uint64
	rank    map[string]int // source priority, lower wins
}

// NewMemoryPriceStore creates an empty in-memory store. priority is the
// ranked source list used to resolve same-day multi-source rows on reads.
func NewMemoryPriceStore(priority []string) *MemoryPriceStore {
	rank := make(map[string]int, len(priority))
	for i, name := range priority {
		rank[name] = i
	}
	return &MemoryPriceStore{
		rows: make(map[models.PriceKey]map[string]*storedPoint),
		rank: rank,
	}
}

var _ repository.PriceStore = (*MemoryPriceStore)(nil)

func (s *MemoryPriceStore) Init(ctx context.Context) error { return nil }

// Put stores a point atomically per (commodity, market, date, source).
// Replaying an identical observation is a no-op with accepted=false; a
// changed observation from the same source supersedes its previous row.
func (s *MemoryPriceStore) Put(ctx context.Context, p models.PricePoint) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}

	key := p.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	bySource, ok := s.rows[key]
	if !ok {
		bySource = make(map[string]*storedPoint)
		s.rows[key] = bySource
	}

	if prev, ok := bySource[p.Source]; ok && samePrices(prev.pt, p) {
		return false, nil
	}

	s.counter++
	bySource[p.Source] = &storedPoint{pt: p, seq: s.counter}
	return true, nil
}

func samePrices(a, b models.PricePoint) bool {
	return a.MinPrice.Equal(b.MinPrice) &&
		a.MaxPrice.Equal(b.MaxPrice) &&
		a.ModalPrice.Equal(b.ModalPrice) &&
		a.PriceUnit == b.PriceUnit
}

// Range returns every stored row for the series within [from, to],
// ascending by arrival date, same-day rows in insertion order.
func (s *MemoryPriceStore) Range(ctx context.Context, commodity, market string, from, to time.Time) ([]models.PricePoint, error) {
	from = util.TruncateToDay(from)
	to = util.TruncateToDay(to)

	s.mu.Lock()
	matched := make([]*storedPoint, 0)
	for key, bySource := range s.rows {
		if key.Commodity != commodity || key.Market != market {
			continue
		}
		for _, row := range bySource {
			d := util.TruncateToDay(row.pt.ArrivalDate)
			if d.Before(from) || d.After(to) {
				continue
			}
			matched = append(matched, row)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		di, dj := matched[i].pt.ArrivalDate, matched[j].pt.ArrivalDate
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return matched[i].seq < matched[j].seq
	})

	out := make([]models.PricePoint, len(matched))
	for i, row := range matched {
		out[i] = row.pt
	}
	return out, nil
}

// Latest returns the newest point for the series. Same-day rows from
// several sources resolve to the highest-priority source; unranked sources
// lose to ranked ones, and among unranked the most recently stored wins.
func (s *MemoryPriceStore) Latest(ctx context.Context, commodity, market string) (models.PricePoint, bool, error) {
	return s.newestBefore(commodity, market, time.Time{})
}

// Previous returns the resolved point for the newest date strictly before
// the given day.
func (s *MemoryPriceStore) Previous(ctx context.Context, commodity, market string, before time.Time) (models.PricePoint, bool, error) {
	return s.newestBefore(commodity, market, util.TruncateToDay(before))
}

func (s *MemoryPriceStore) newestBefore(commodity, market string, before time.Time) (models.PricePoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		bestDay time.Time
		found   bool
	)
	for key, bySource := range s.rows {
		if key.Commodity != commodity || key.Market != market || len(bySource) == 0 {
			continue
		}
		day, _ := util.ParseDate(key.Date)
		if !before.IsZero() && !day.Before(before) {
			continue
		}
		if !found || day.After(bestDay) {
			bestDay = day
			found = true
		}
	}
	if !found {
		return models.PricePoint{}, false, nil
	}

	key := models.PriceKey{Commodity: commodity, Market: market, Date: util.FormatDate(bestDay)}
	winner := s.resolve(s.rows[key])
	return winner.pt, true, nil
}

func (s *MemoryPriceStore) resolve(bySource map[string]*storedPoint) *storedPoint {
	var winner *storedPoint
	winnerRank := 0
	for source, row := range bySource {
		rank, ranked := s.rank[source]
		if !ranked {
			rank = len(s.rank) // all unranked sources tie below ranked ones
		}
		switch {
		case winner == nil:
			winner, winnerRank = row, rank
		case rank < winnerRank:
			winner, winnerRank = row, rank
		case rank == winnerRank && row.seq > winner.seq:
			winner = row
		}
	}
	return winner
}

// Markets lists markets with stored points for the commodity, sorted.
func (s *MemoryPriceStore) Markets(ctx context.Context, commodity string) ([]string, error) {
	s.mu.Lock()
	seen := make(map[string]bool)
	for key := range s.rows {
		if key.Commodity == commodity {
			seen[key.Market] = true
		}
	}
	s.mu.Unlock()

	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryPriceStore) Health(ctx context.Context) error { return nil }

func (s *MemoryPriceStore) Close() error { return nil }
