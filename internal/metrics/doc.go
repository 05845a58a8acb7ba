// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - History/listing request counts, retries and latencies
//   - Rows accepted and skipped by the normalizer
//   - Batch commit/rollback counts and persisted records
//   - Per-run security outcomes, in-flight tasks and run duration
package metrics
