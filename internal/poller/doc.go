// Package poller coordinates a scrape run across all listed securities.
//
// A run discovers the security codes, reads every watermark in one query and
// then fans out one task per security over a bounded errgroup. Each task
// scrapes and persists one security and reports a Result on a channel; a
// failing or panicking task never cancels its siblings. The run completes
// when every task has reported.
//
// Start runs a background loop that executes a run whenever Trigger is called,
// so scheduled and manual runs never overlap.
package poller
