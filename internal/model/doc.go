// Package model defines shared data types used across the exchange history ingester.
//
// All types mirror the stock_prices table and the populatestockprices procedure
// in schema.sql.
//
// Conventions:
//   - Dates: time.Time at midnight UTC, no time component
//   - Prices and turnovers: decimal.Decimal (denars)
//   - Quantities: int64 shares
//   - Codes: alphabetic exchange symbols (e.g. "ALK")
package model
