package locale

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Date layouts used by the exchange.
const (
	// CompactDateLayout is the date column layout, e.g. "02012024".
	CompactDateLayout = "02012006"

	// FormDateLayout is the FromDate/ToDate form field layout, e.g. "02.01.2024".
	FormDateLayout = "02.01.2006"
)

// normalizeNumber strips thousands separators and converts the decimal comma.
// "1.234,56" -> "1234.56"
func normalizeNumber(text string) string {
	s := strings.TrimSpace(text)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, ".", "")
	return strings.ReplaceAll(s, ",", ".")
}

// ParseDecimal parses a locale-formatted decimal.
// Returns decimal.Zero and false for empty or invalid input.
func ParseDecimal(text string) (decimal.Decimal, bool) {
	s := normalizeNumber(text)
	if s == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseQuantity parses a locale-formatted integer quantity.
// Returns 0 and false for empty, fractional or invalid input.
func ParseQuantity(text string) (int64, bool) {
	s := normalizeNumber(text)
	if s == "" {
		return 0, false
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseDate parses a DDMMYYYY (or DD.MM.YYYY) string into a UTC date.
// Returns false when the text matches neither layout.
func ParseDate(text string) (time.Time, bool) {
	s := strings.TrimSpace(text)

	layout := CompactDateLayout
	if len(s) == len(FormDateLayout) {
		layout = FormDateLayout
	}
	if len(s) != len(layout) {
		return time.Time{}, false
	}

	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders a date as DDMMYYYY.
func FormatDate(t time.Time) string {
	return t.Format(CompactDateLayout)
}

// FormatFormDate renders a date as DD.MM.YYYY.
func FormatFormDate(t time.Time) string {
	return t.Format(FormDateLayout)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
