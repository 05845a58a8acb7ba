package normalize

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/mse-data/internal/api"
	"github.com/rickgao/mse-data/internal/locale"
	"github.com/rickgao/mse-data/internal/metrics"
	"github.com/rickgao/mse-data/internal/model"
)

// SkipPolicy selects which rows are treated as non-trading days.
type SkipPolicy string

const (
	// SkipNonTrading drops rows with zero quantity and zero total turnover.
	SkipNonTrading SkipPolicy = "non_trading"
	// SkipZeroChange also drops rows whose percent change is exactly zero.
	SkipZeroChange SkipPolicy = "zero_change"
	// SkipBoth drops rows matching either rule.
	SkipBoth SkipPolicy = "both"
)

// ParseSkipPolicy validates a configured policy name. Empty means SkipNonTrading.
func ParseSkipPolicy(s string) (SkipPolicy, error) {
	switch p := SkipPolicy(s); p {
	case "":
		return SkipNonTrading, nil
	case SkipNonTrading, SkipZeroChange, SkipBoth:
		return p, nil
	default:
		return "", fmt.Errorf("unknown skip policy %q", s)
	}
}

// Stats counts what happened to the rows of one Normalize call.
type Stats struct {
	Rows               int
	Accepted           int
	SkippedShort       int
	SkippedDate        int
	SkippedOutOfWindow int
	SkippedNonTrading  int
	SkippedZeroChange  int
	ParseWarnings      int
}

// Skipped returns the total number of dropped rows.
func (s Stats) Skipped() int {
	return s.SkippedShort + s.SkippedDate + s.SkippedOutOfWindow + s.SkippedNonTrading + s.SkippedZeroChange
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Rows += other.Rows
	s.Accepted += other.Accepted
	s.SkippedShort += other.SkippedShort
	s.SkippedDate += other.SkippedDate
	s.SkippedOutOfWindow += other.SkippedOutOfWindow
	s.SkippedNonTrading += other.SkippedNonTrading
	s.SkippedZeroChange += other.SkippedZeroChange
	s.ParseWarnings += other.ParseWarnings
}

// Normalizer converts extracted rows into PriceRecords.
type Normalizer struct {
	policy SkipPolicy
	logger *slog.Logger
}

// NewNormalizer creates a normalizer. An empty policy means SkipNonTrading.
func NewNormalizer(policy SkipPolicy, logger *slog.Logger) *Normalizer {
	if policy == "" {
		policy = SkipNonTrading
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		policy: policy,
		logger: logger,
	}
}

// Policy returns the active skip policy.
func (n *Normalizer) Policy() SkipPolicy {
	return n.policy
}

// Normalize parses rows fetched for window w. Rows that fail validation are
// skipped and counted; Normalize itself never fails.
func (n *Normalizer) Normalize(code model.SecurityCode, w model.FetchWindow, rows [][]string) ([]model.PriceRecord, Stats) {
	stats := Stats{Rows: len(rows)}
	records := make([]model.PriceRecord, 0, len(rows))

	for _, row := range rows {
		if len(row) < api.NumColumns {
			stats.SkippedShort++
			n.logger.Debug("skipping short row", "code", code, "cells", len(row))
			continue
		}

		date, ok := locale.ParseDate(row[api.ColDate])
		if !ok {
			stats.SkippedDate++
			n.logger.Warn("skipping row with invalid date", "code", code, "date", row[api.ColDate])
			continue
		}

		if !w.Contains(date) {
			stats.SkippedOutOfWindow++
			n.logger.Debug("skipping row outside window",
				"code", code,
				"date", locale.FormatDate(date),
				"window", w.String(),
			)
			continue
		}

		p := cellParser{code: code, date: date, row: row, logger: n.logger}
		last := p.decimal(api.ColLastPrice, "last_price")
		rec := model.PriceRecord{
			Date:          date,
			LastPrice:     last,
			MaxPrice:      p.optional(api.ColMaxPrice, last),
			MinPrice:      p.optional(api.ColMinPrice, last),
			AvgPrice:      p.optional(api.ColAvgPrice, last),
			PercentChange: p.decimal(api.ColPercentChange, "percent_change"),
			Quantity:      p.quantity(api.ColQuantity),
			BestTurnover:  p.decimal(api.ColBestTurnover, "best_turnover"),
			TotalTurnover: p.decimal(api.ColTotalTurnover, "total_turnover"),
			Code:          code,
		}
		stats.ParseWarnings += p.warnings

		// Non-trading rows are dropped under every policy.
		if rec.IsNonTrading() {
			stats.SkippedNonTrading++
			n.logger.Debug("skipping non-trading day", "code", code, "date", locale.FormatDate(date))
			continue
		}
		if n.policy != SkipNonTrading && rec.PercentChange.IsZero() {
			stats.SkippedZeroChange++
			n.logger.Debug("skipping zero-change day", "code", code, "date", locale.FormatDate(date))
			continue
		}

		records = append(records, rec)
	}

	stats.Accepted = len(records)
	observe(stats)
	return records, stats
}

func observe(s Stats) {
	for result, n := range map[string]int{
		"accepted":      s.Accepted,
		"short":         s.SkippedShort,
		"bad_date":      s.SkippedDate,
		"out_of_window": s.SkippedOutOfWindow,
		"non_trading":   s.SkippedNonTrading,
		"zero_change":   s.SkippedZeroChange,
	} {
		if n > 0 {
			metrics.RowsTotal.WithLabelValues(result).Add(float64(n))
		}
	}
}

// cellParser parses the cells of one row and logs fallbacks.
type cellParser struct {
	code     model.SecurityCode
	date     time.Time
	row      []string
	logger   *slog.Logger
	warnings int
}

func (p *cellParser) decimal(col int, name string) decimal.Decimal {
	v, ok := locale.ParseDecimal(p.row[col])
	if !ok {
		p.warn(col, name)
	}
	return v
}

// optional parses an optional price column, falling back to def when the cell is empty.
func (p *cellParser) optional(col int, def decimal.Decimal) decimal.Decimal {
	if p.row[col] == "" {
		return def
	}
	v, ok := locale.ParseDecimal(p.row[col])
	if !ok {
		p.warnings++
		p.logger.Warn("unparsable price, using last price",
			"code", p.code,
			"date", locale.FormatDate(p.date),
			"column", col,
			"value", p.row[col],
		)
		return def
	}
	return v
}

func (p *cellParser) quantity(col int) int64 {
	v, ok := locale.ParseQuantity(p.row[col])
	if !ok {
		p.warn(col, "quantity")
	}
	return v
}

func (p *cellParser) warn(col int, name string) {
	p.warnings++
	p.logger.Warn("unparsable cell, using zero",
		"code", p.code,
		"date", locale.FormatDate(p.date),
		"column", name,
		"value", p.row[col],
	)
}
