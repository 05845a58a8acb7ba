// Package store reads persisted price history from PostgreSQL.
//
// Watermarks resolves, in one aggregate query, the last stored trading day
// of every security; incremental scrapes start the day after. Latest and
// History back the query API.
package store
