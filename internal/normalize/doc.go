// Package normalize turns raw history table rows into validated price records.
//
// Rows are checked against the fetch window, cell values are parsed with the
// exchange locale, and rows carrying no trading activity are dropped so they
// never reach storage.
package normalize
