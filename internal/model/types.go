package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/mse-data/internal/locale"
)

// SecurityCode is an alphabetic exchange symbol, e.g. "ALK" or "KMB".
type SecurityCode string

// PriceRecord is one trading-day observation for one security.
// (Code, Date) is the natural key.
type PriceRecord struct {
	Date          time.Time       `json:"date"`           // Trading day (midnight UTC)
	LastPrice     decimal.Decimal `json:"last_price"`     // Closing (last) price
	MaxPrice      decimal.Decimal `json:"max_price"`      // Daily high
	MinPrice      decimal.Decimal `json:"min_price"`      // Daily low
	AvgPrice      decimal.Decimal `json:"avg_price"`      // Volume-weighted average
	PercentChange decimal.Decimal `json:"percent_change"` // Signed change vs previous close
	Quantity      int64           `json:"quantity"`       // Shares traded
	BestTurnover  decimal.Decimal `json:"best_turnover"`  // Turnover in BEST (block) trades
	TotalTurnover decimal.Decimal `json:"total_turnover"` // Total turnover
	Code          SecurityCode    `json:"code"`
}

// IsNonTrading reports whether the record carries no trading activity.
// Such records must never be persisted: they would advance the watermark
// without adding information.
func (r PriceRecord) IsNonTrading() bool {
	return r.Quantity == 0 && r.TotalTurnover.IsZero()
}

// Key returns the natural key of the record.
func (r PriceRecord) Key() string {
	return string(r.Code) + "/" + locale.FormatDate(r.Date)
}

// Args returns the ten positional arguments of the populatestockprices
// procedure: date as DDMMYYYY, numeric fields, quantity, code last.
func (r PriceRecord) Args() []any {
	return []any{
		locale.FormatDate(r.Date),
		r.LastPrice,
		r.MaxPrice,
		r.MinPrice,
		r.AvgPrice,
		r.PercentChange,
		r.Quantity,
		r.BestTurnover,
		r.TotalTurnover,
		string(r.Code),
	}
}

// FetchWindow is a contiguous calendar range requested from the source in one call.
type FetchWindow struct {
	Code SecurityCode
	From time.Time
	To   time.Time
}

// FormValues returns the history endpoint form fields for the window.
func (w FetchWindow) FormValues() map[string]string {
	return map[string]string{
		"FromDate": locale.FormatFormDate(w.From),
		"ToDate":   locale.FormatFormDate(w.To),
		"Code":     string(w.Code),
	}
}

// Contains reports whether day d falls inside the window (inclusive).
func (w FetchWindow) Contains(d time.Time) bool {
	return !d.Before(w.From) && !d.After(w.To)
}

func (w FetchWindow) String() string {
	return fmt.Sprintf("%s %s-%s", w.Code, locale.FormatFormDate(w.From), locale.FormatFormDate(w.To))
}

// LatestPrice is the most recent stored record of a security, as served
// by the latest-prices endpoint.
type LatestPrice struct {
	Code          SecurityCode    `json:"code"`
	Date          time.Time       `json:"date"`
	LastPrice     decimal.Decimal `json:"last_price"`
	PercentChange decimal.Decimal `json:"percent_change"`
	Quantity      int64           `json:"quantity"`
	TotalTurnover decimal.Decimal `json:"total_turnover"`
}
