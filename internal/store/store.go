package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/mse-data/internal/locale"
	"github.com/rickgao/mse-data/internal/model"
)

// Querier is the read side of a pgx pool or transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	watermarksSQL = `SELECT code, MAX(date) FROM stock_prices GROUP BY code`

	latestSQL = `
SELECT DISTINCT ON (code) code, date, last_price, percent_change, quantity, total_turnover
FROM stock_prices
ORDER BY code, date DESC`

	historySQL = `
SELECT date, last_price, max_price, min_price, avg_price, percent_change,
       quantity, best_turnover, total_turnover
FROM stock_prices
WHERE code = $1
ORDER BY date DESC
LIMIT $2`
)

// Watermarks maps each security to its last persisted trading day.
type Watermarks map[model.SecurityCode]time.Time

// Lookup returns the watermark of code. ok is false when nothing is stored.
func (w Watermarks) Lookup(code model.SecurityCode) (time.Time, bool) {
	t, ok := w[code]
	return t, ok
}

// Store runs read queries against the price table.
type Store struct {
	db     Querier
	logger *slog.Logger
}

// New creates a Store.
func New(db Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		db:     db,
		logger: logger,
	}
}

// Watermarks returns the max stored date per security.
func (s *Store) Watermarks(ctx context.Context) (Watermarks, error) {
	start := time.Now()

	rows, err := s.db.Query(ctx, watermarksSQL)
	if err != nil {
		return nil, fmt.Errorf("query watermarks: %w", err)
	}
	defer rows.Close()

	marks := make(Watermarks)
	for rows.Next() {
		var (
			code string
			date time.Time
		)
		if err := rows.Scan(&code, &date); err != nil {
			return nil, fmt.Errorf("scan watermark: %w", err)
		}
		marks[model.SecurityCode(code)] = locale.Day(date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read watermarks: %w", err)
	}

	s.logger.Info("resolved watermarks",
		"securities", len(marks),
		"duration", time.Since(start),
	)

	return marks, nil
}

// Latest returns the most recent record of every security, ordered by code.
func (s *Store) Latest(ctx context.Context) ([]model.LatestPrice, error) {
	rows, err := s.db.Query(ctx, latestSQL)
	if err != nil {
		return nil, fmt.Errorf("query latest prices: %w", err)
	}
	defer rows.Close()

	out := make([]model.LatestPrice, 0)
	for rows.Next() {
		var (
			p    model.LatestPrice
			code string
		)
		if err := rows.Scan(&code, &p.Date, &p.LastPrice, &p.PercentChange, &p.Quantity, &p.TotalTurnover); err != nil {
			return nil, fmt.Errorf("scan latest price: %w", err)
		}
		p.Code = model.SecurityCode(code)
		p.Date = locale.Day(p.Date)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read latest prices: %w", err)
	}

	return out, nil
}

// History returns up to limit records of code, newest first.
func (s *Store) History(ctx context.Context, code model.SecurityCode, limit int) ([]model.PriceRecord, error) {
	rows, err := s.db.Query(ctx, historySQL, string(code), limit)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", code, err)
	}
	defer rows.Close()

	out := make([]model.PriceRecord, 0, limit)
	for rows.Next() {
		r := model.PriceRecord{Code: code}
		if err := rows.Scan(
			&r.Date,
			&r.LastPrice,
			&r.MaxPrice,
			&r.MinPrice,
			&r.AvgPrice,
			&r.PercentChange,
			&r.Quantity,
			&r.BestTurnover,
			&r.TotalTurnover,
		); err != nil {
			return nil, fmt.Errorf("scan history for %s: %w", code, err)
		}
		r.Date = locale.Day(r.Date)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history for %s: %w", code, err)
	}

	return out, nil
}
