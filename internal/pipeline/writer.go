package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/firehose-archiver/internal/domain"
	"github.com/BarkinBalci/firehose-archiver/internal/metrics"
	"github.com/BarkinBalci/firehose-archiver/internal/storage"
)

// WriterConfig configures the persistence stage
type WriterConfig struct {
	MaxBatchSize  int
	FlushInterval time.Duration
	ArchiveAll    bool
}

// Writer drains the persistence queue and appends batches to the segment
// store, grouped by hour bucket.
type Writer struct {
	store  storage.RecordStore
	config WriterConfig
	meter  *RateMeter
	log    *zap.Logger

	persisted atomic.Int64
}

// NewWriter creates a new persistence stage. meter may be nil when rate
// measurement is disabled.
func NewWriter(store storage.RecordStore, config WriterConfig, meter *RateMeter, log *zap.Logger) *Writer {
	return &Writer{
		store:  store,
		config: config,
		meter:  meter,
		log:    log,
	}
}

// Run batches records by size and flush interval until the input channel
// closes, then flushes the final batch. Exit is driven only by the channel
// closing so that queued records survive a stop request.
func (w *Writer) Run(ctx context.Context, in <-chan *domain.EventRecord) {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*domain.EventRecord, 0, w.config.MaxBatchSize)

	for {
		select {
		case record, ok := <-in:
			if !ok {
				w.log.Info("Persistence stage input channel closed")
				if len(batch) > 0 {
					w.log.Info("Flushing final batch", zap.Int("record_count", len(batch)))
					w.flush(ctx, batch)
				}
				return
			}

			batch = append(batch, record)

			if len(batch) >= w.config.MaxBatchSize {
				w.flush(ctx, batch)
				batch = make([]*domain.EventRecord, 0, w.config.MaxBatchSize)
				ticker.Reset(w.config.FlushInterval)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = make([]*domain.EventRecord, 0, w.config.MaxBatchSize)
			}
		}
	}
}

// flush appends one batch. A write failure loses the batch for this attempt;
// it is logged, not retried.
func (w *Writer) flush(ctx context.Context, batch []*domain.EventRecord) {
	var written int
	var err error
	if w.config.ArchiveAll {
		written, err = w.store.AppendRaw(ctx, batch)
	} else {
		written, err = w.store.AppendRecords(ctx, batch)
	}

	if err != nil {
		metrics.PersistenceErrors.Inc()
		w.log.Error("Failed to persist batch",
			zap.Int("record_count", len(batch)),
			zap.Int("written", written),
			zap.Error(err))
	}

	if written > 0 {
		w.persisted.Add(int64(written))
		metrics.RecordsPersisted.Add(float64(written))
		if w.meter != nil {
			w.meter.Record(written)
		}
	}
}

// Persisted returns the number of records durably appended.
func (w *Writer) Persisted() int64 {
	return w.persisted.Load()
}
