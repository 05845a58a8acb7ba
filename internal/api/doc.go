// Package api provides the client for the exchange's symbol history page.
//
// The same URL serves both endpoints:
//   - GET  https://www.mse.mk/mk/stats/symbolhistory/REPL  listing page, <select id="Code">
//   - POST https://www.mse.mk/mk/stats/symbolhistory/REPL  history table for FromDate/ToDate/Code
//
// Responses are HTML; ExtractRows and ExtractCodes turn them into raw string cells.
// Transient failures (transport errors, 502/503/504) are retried per RetryPolicy.
package api
