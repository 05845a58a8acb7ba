// Package locale converts the exchange's Macedonian-locale strings into typed values.
//
// The source renders numbers with "." as the thousands separator and "," as the
// decimal separator ("1.234,56"), and dates as DDMMYYYY or DD.MM.YYYY.
//
// Parsers never fail hard: they return a zero value and ok=false so callers can
// log a warning and keep going.
package locale
