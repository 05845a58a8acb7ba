// Package writer persists price records through the populatestockprices
// upsert procedure.
//
// Records are chunked and each chunk is sent as one pgx.Batch inside its own
// transaction. A failing call rolls back only its chunk; chunks committed
// earlier stay committed because the procedure is an idempotent upsert keyed
// by (code, date).
package writer
