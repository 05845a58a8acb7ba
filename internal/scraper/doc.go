// Package scraper drives the incremental fetch of one security's history.
//
// Windows splits the range between a security's watermark and today into
// calendar-year windows. Scraper.RunForSecurity fetches them in order,
// normalizes the rows and returns the accumulated records. A window that
// cannot be fetched is recorded and skipped; only cancellation aborts a run.
package scraper
