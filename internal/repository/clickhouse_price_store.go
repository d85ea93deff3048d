package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"CropPulse/internal/domain/models"
	"CropPulse/internal/domain/repository"
	"CropPulse/pkg/util"
)

// ClickHousePriceStore implements PriceStore on a ReplacingMergeTree keyed
// by (commodity, market, arrival_date, source): replays collapse into a
// single row, later observations from the same source supersede.
type ClickHousePriceStore struct {
	db    *sql.DB
	table string
	rank  map[string]int
}

// NewClickHousePriceStore creates ClickHouse-backed price storage.
func NewClickHousePriceStore(db *sql.DB, table string, priority []string) repository.PriceStore {
	rank := make(map[string]int, len(priority))
	for i, name := range priority {
		rank[name] = i
	}
	return &ClickHousePriceStore{db: db, table: table, rank: rank}
}

func (s *ClickHousePriceStore) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHousePriceStore) Put(ctx context.Context, p models.PricePoint) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}

	// Idempotency pre-check: an identical row for the same
	// (commodity, market, date, source) makes the insert a no-op.
	q := fmt.Sprintf(`SELECT min_price, max_price, modal_price, price_unit
		FROM %s FINAL
		WHERE commodity = ? AND market = ? AND arrival_date = ? AND source = ?`, s.table)
	var (
		minStr, maxStr, modalStr, unit string
	)
	err := s.db.QueryRowContext(ctx, q,
		p.Commodity, p.Market, util.FormatDate(p.ArrivalDate), p.Source,
	).Scan(&minStr, &maxStr, &modalStr, &unit)
	switch {
	case err == nil:
		min, e1 := decimal.NewFromString(minStr)
		max, e2 := decimal.NewFromString(maxStr)
		modal, e3 := decimal.NewFromString(modalStr)
		if e1 == nil && e2 == nil && e3 == nil &&
			min.Equal(p.MinPrice) && max.Equal(p.MaxPrice) && modal.Equal(p.ModalPrice) && unit == p.PriceUnit {
			return false, nil
		}
	case errors.Is(err, sql.ErrNoRows):
		// first observation for this slot
	default:
		return false, fmt.Errorf("price store lookup: %w", err)
	}

	ins := fmt.Sprintf(`INSERT INTO %s
		(commodity, variety, grade, market, state, min_price, max_price, modal_price, price_unit, arrival_date, source, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	observed := p.ObservedAt
	if observed.IsZero() {
		observed = time.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx, ins,
		p.Commodity, p.Variety, p.Grade, p.Market, p.State,
		p.MinPrice.String(), p.MaxPrice.String(), p.ModalPrice.String(), p.PriceUnit,
		util.FormatDate(p.ArrivalDate), p.Source, observed,
	); err != nil {
		return false, fmt.Errorf("price store insert: %w", err)
	}
	return true, nil
}

func (s *ClickHousePriceStore) Range(ctx context.Context, commodity, market string, from, to time.Time) ([]models.PricePoint, error) {
	q := fmt.Sprintf(`SELECT commodity, variety, grade, market, state,
			min_price, max_price, modal_price, price_unit, arrival_date, source, observed_at
		FROM %s FINAL
		WHERE commodity = ? AND market = ? AND arrival_date >= ? AND arrival_date <= ?
		ORDER BY arrival_date ASC, observed_at ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q,
		commodity, market, util.FormatDate(from), util.FormatDate(to))
	if err != nil {
		return nil, fmt.Errorf("price store range: %w", err)
	}
	defer rows.Close()

	var out []models.PricePoint
	for rows.Next() {
		p, err := scanPricePoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *ClickHousePriceStore) Latest(ctx context.Context, commodity, market string) (models.PricePoint, bool, error) {
	return s.newest(ctx, commodity, market, "")
}

func (s *ClickHousePriceStore) Previous(ctx context.Context, commodity, market string, before time.Time) (models.PricePoint, bool, error) {
	return s.newest(ctx, commodity, market, util.FormatDate(before))
}

// newest fetches every row of the series' newest arrival date (optionally
// strictly before a day) and resolves multi-source rows by priority rank.
func (s *ClickHousePriceStore) newest(ctx context.Context, commodity, market, before string) (models.PricePoint, bool, error) {
	cond := ""
	args := []interface{}{commodity, market, commodity, market}
	if before != "" {
		cond = " AND arrival_date < ?"
		args = []interface{}{commodity, market, commodity, market, before, before}
	}
	q := fmt.Sprintf(`SELECT commodity, variety, grade, market, state,
			min_price, max_price, modal_price, price_unit, arrival_date, source, observed_at
		FROM %s FINAL
		WHERE commodity = ? AND market = ?
		  AND arrival_date = (SELECT max(arrival_date) FROM %s WHERE commodity = ? AND market = ?%s)%s
		ORDER BY observed_at ASC`, s.table, s.table, cond, cond)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return models.PricePoint{}, false, fmt.Errorf("price store latest: %w", err)
	}
	defer rows.Close()

	var (
		winner     models.PricePoint
		winnerRank int
		found      bool
	)
	for rows.Next() {
		p, err := scanPricePoint(rows)
		if err != nil {
			return models.PricePoint{}, false, err
		}
		rank, ranked := s.rank[p.Source]
		if !ranked {
			rank = len(s.rank)
		}
		// Rows arrive in observed_at order, so on equal rank the most
		// recently observed row wins.
		if !found || rank <= winnerRank {
			winner, winnerRank, found = p, rank, true
		}
	}
	if err := rows.Err(); err != nil {
		return models.PricePoint{}, false, err
	}
	return winner, found, nil
}

func scanPricePoint(rows *sql.Rows) (models.PricePoint, error) {
	var (
		p                              models.PricePoint
		minStr, maxStr, modalStr, date string
	)
	if err := rows.Scan(&p.Commodity, &p.Variety, &p.Grade, &p.Market, &p.State,
		&minStr, &maxStr, &modalStr, &p.PriceUnit, &date, &p.Source, &p.ObservedAt); err != nil {
		return p, fmt.Errorf("scan price point: %w", err)
	}
	var err error
	if p.MinPrice, err = decimal.NewFromString(minStr); err != nil {
		return p, fmt.Errorf("parse min price: %w", err)
	}
	if p.MaxPrice, err = decimal.NewFromString(maxStr); err != nil {
		return p, fmt.Errorf("parse max price: %w", err)
	}
	if p.ModalPrice, err = decimal.NewFromString(modalStr); err != nil {
		return p, fmt.Errorf("parse modal price: %w", err)
	}
	day, ok := util.ParseDate(date)
	if !ok {
		return p, fmt.Errorf("parse arrival date %q", date)
	}
	p.ArrivalDate = day
	return p, nil
}

func (s *ClickHousePriceStore) Markets(ctx context.Context, commodity string) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT market FROM %s WHERE commodity = ? ORDER BY market", s.table)
	rows, err := s.db.QueryContext(ctx, q, commodity)
	if err != nil {
		return nil, fmt.Errorf("price store markets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *ClickHousePriceStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHousePriceStore) Close() error {
	return nil // Managed by pkg
}
