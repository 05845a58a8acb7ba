package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/mse-data/internal/metrics"
	"github.com/rickgao/mse-data/internal/model"
)

// upsertSQL takes the ten PriceRecord.Args values.
const upsertSQL = `CALL populatestockprices($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// rollbackTimeout bounds a rollback issued after the caller's context is gone.
const rollbackTimeout = 5 * time.Second

// TxBeginner starts transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PriceWriter commits price records in chunked transactions.
type PriceWriter struct {
	cfg    WriterConfig
	db     TxBeginner
	logger *slog.Logger

	mu      sync.Mutex
	metrics WriterMetrics
}

// NewPriceWriter creates a new PriceWriter.
func NewPriceWriter(cfg WriterConfig, db TxBeginner, logger *slog.Logger) *PriceWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	return &PriceWriter{
		cfg:    cfg,
		db:     db,
		logger: logger,
	}
}

// Stats returns current metrics.
func (w *PriceWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// Persist upserts the records of one security. Non-trading records are
// dropped first. On failure the returned Result covers the chunks committed
// before the failing one and the error is a *PersistError.
func (w *PriceWriter) Persist(ctx context.Context, code model.SecurityCode, records []model.PriceRecord) (Result, error) {
	res := Result{Code: code}

	rows := make([]model.PriceRecord, 0, len(records))
	for _, r := range records {
		if r.IsNonTrading() {
			res.NonTrading++
			continue
		}
		if r.Code == "" {
			r.Code = code
		}
		rows = append(rows, r)
	}
	if res.NonTrading > 0 {
		w.logger.Warn("dropped non-trading records before persist",
			"code", code,
			"count", res.NonTrading,
		)
	}

	for chunk, start := 0, 0; start < len(rows); chunk, start = chunk+1, start+w.cfg.BatchSize {
		end := min(start+w.cfg.BatchSize, len(rows))
		batch := rows[start:end]

		began := time.Now()
		if err := w.persistChunk(ctx, batch); err != nil {
			w.mu.Lock()
			w.metrics.Errors++
			w.mu.Unlock()
			metrics.BatchesTotal.WithLabelValues("rolled_back").Inc()

			w.logFailure(code, chunk, len(batch), err)
			return res, &PersistError{Code: code, Chunk: chunk, Rows: len(batch), Err: err}
		}
		metrics.BatchDurationSeconds.Observe(time.Since(began).Seconds())
		metrics.BatchesTotal.WithLabelValues("committed").Inc()
		metrics.RecordsPersistedTotal.Add(float64(len(batch)))

		w.mu.Lock()
		w.metrics.Inserts += int64(len(batch))
		w.metrics.Batches++
		w.mu.Unlock()

		res.Persisted += len(batch)
		res.Batches++

		w.logger.Debug("committed batch",
			"code", code,
			"chunk", chunk,
			"count", len(batch),
			"duration", time.Since(began),
		)
	}

	return res, nil
}

// persistChunk runs one chunk in its own transaction.
func (w *PriceWriter) persistChunk(ctx context.Context, rows []model.PriceRecord) (err error) {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		// The caller's context may already be cancelled.
		rbCtx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
		defer cancel()
		if rbErr := tx.Rollback(rbCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			w.logger.Error("rollback failed", "error", rbErr)
		}
		w.mu.Lock()
		w.metrics.Rollbacks++
		w.mu.Unlock()
	}()

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsertSQL, r.Args()...)
	}

	results := tx.SendBatch(ctx, batch)
	for _, r := range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upsert %s: %w", r.Key(), err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (w *PriceWriter) logFailure(code model.SecurityCode, chunk, rows int, err error) {
	attrs := []any{
		"code", code,
		"chunk", chunk,
		"rows", rows,
		"error", err,
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		attrs = append(attrs,
			"pg_code", pgErr.Code,
			"pg_detail", pgErr.Detail,
			"pg_constraint", pgErr.ConstraintName,
		)
	}

	w.logger.Error("batch rolled back", attrs...)
}
