package writer

import (
	"fmt"

	"github.com/rickgao/mse-data/internal/model"
)

// WriterConfig holds PriceWriter settings.
type WriterConfig struct {
	// BatchSize is the number of records committed per transaction.
	BatchSize int
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize: 500,
	}
}

// WriterMetrics tracks writer activity across calls.
type WriterMetrics struct {
	Inserts   int64
	Batches   int64
	Errors    int64
	Rollbacks int64
}

// Result summarizes one Persist call.
type Result struct {
	Code       model.SecurityCode
	Persisted  int // Records committed
	Batches    int // Transactions committed
	NonTrading int // Records dropped before sending
}

// PersistError reports a chunk that was rolled back.
type PersistError struct {
	Code  model.SecurityCode
	Chunk int // Zero-based chunk index
	Rows  int
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s chunk %d (%d rows): %v", e.Code, e.Chunk, e.Rows, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
