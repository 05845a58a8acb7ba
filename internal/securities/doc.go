// Package securities discovers the tradable security codes listed by the exchange.
//
// The Registry reads the listing page on every Refresh, drops instruments whose
// codes contain digits (bonds and other non-equity listings) and keeps the
// result for the rest of the run. Codes are never persisted.
package securities
