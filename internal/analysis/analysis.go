// Package analysis computes technical indicators over recent closing prices.
//
// Indicators run over the whole loaded series so the warm-up period is
// covered by older closes; the one-week and one-month views are then cut
// from the end of the series, relative to the latest stored day.
package analysis

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/rickgao/mse-data/internal/model"
)

// ErrNoData is returned when there are no records to analyze.
var ErrNoData = errors.New("no price history")

// HistoryDepth is the number of most recent closes loaded for analysis.
const HistoryDepth = 100

// Config holds indicator periods.
type Config struct {
	RSIPeriod int
	SMAPeriod int
	EMAPeriod int
}

// DefaultConfig returns the usual periods.
func DefaultConfig() Config {
	return Config{
		RSIPeriod: 14,
		SMAPeriod: 10,
		EMAPeriod: 10,
	}
}

// Point is one trading day with its indicator values. Values are nil while
// an indicator is still warming up.
type Point struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
	RSI   *float64  `json:"rsi"`
	SMA   *float64  `json:"sma"`
	EMA   *float64  `json:"ema"`
}

// View is the slice of points within one lookback period.
type View struct {
	Period string    `json:"period"`
	From   time.Time `json:"from"`
	Points []Point   `json:"points"`
}

// Report is the analysis of one security.
type Report struct {
	Code  model.SecurityCode `json:"code"`
	AsOf  time.Time          `json:"as_of"`
	Week  View               `json:"analysis_1w"`
	Month View               `json:"analysis_1m"`
}

// Analyze computes RSI, SMA and EMA for records, given in any order.
func Analyze(code model.SecurityCode, records []model.PriceRecord, cfg Config) (Report, error) {
	if len(records) == 0 {
		return Report{}, ErrNoData
	}

	sorted := make([]model.PriceRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	closes := make([]float64, len(sorted))
	for i, r := range sorted {
		closes[i] = r.LastPrice.InexactFloat64()
	}

	rsi := indicator(closes, cfg.RSIPeriod, cfg.RSIPeriod, talib.Rsi)
	sma := indicator(closes, cfg.SMAPeriod, cfg.SMAPeriod-1, talib.Sma)
	ema := indicator(closes, cfg.EMAPeriod, cfg.EMAPeriod-1, talib.Ema)

	points := make([]Point, len(sorted))
	for i, r := range sorted {
		points[i] = Point{
			Date:  r.Date,
			Close: closes[i],
			RSI:   rsi[i],
			SMA:   sma[i],
			EMA:   ema[i],
		}
	}

	asOf := sorted[len(sorted)-1].Date
	return Report{
		Code:  code,
		AsOf:  asOf,
		Week:  view("1W", asOf.AddDate(0, 0, -7), points),
		Month: view("1M", asOf.AddDate(0, -1, 0), points),
	}, nil
}

// indicator runs fn and blanks the first lookback values. Series too short
// for the period yield all nils.
func indicator(closes []float64, period, lookback int, fn func([]float64, int) []float64) []*float64 {
	out := make([]*float64, len(closes))
	if period < 2 || len(closes) <= lookback {
		return out
	}

	values := fn(closes, period)
	for i := lookback; i < len(values) && i < len(out); i++ {
		v := values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = &v
	}
	return out
}

func view(period string, from time.Time, points []Point) View {
	v := View{Period: period, From: from, Points: []Point{}}
	for _, p := range points {
		if !p.Date.Before(from) {
			v.Points = append(v.Points, p)
		}
	}
	return v
}
