// Package database provides connection pool management for PostgreSQL.
//
// One pool is created per process run and shared by the watermark reader,
// the batch writer and the query server. Callers own the pool and must
// Close it on exit.
package database
