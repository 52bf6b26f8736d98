package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/BarkinBalci/firehose-archiver/internal/domain"
	"github.com/BarkinBalci/firehose-archiver/internal/metrics"
	"github.com/BarkinBalci/firehose-archiver/internal/resolver"
)

// EnricherConfig configures the enrichment stage
type EnricherConfig struct {
	BatchSize      int
	ResolveHandles bool
}

// Enricher drains the ingestion queue and fills in handles before forwarding
// records to the persistence queue.
type Enricher struct {
	resolver *resolver.Resolver
	config   EnricherConfig
	log      *zap.Logger
}

// NewEnricher creates a new enrichment stage
func NewEnricher(res *resolver.Resolver, config EnricherConfig, log *zap.Logger) *Enricher {
	return &Enricher{
		resolver: res,
		config:   config,
		log:      log,
	}
}

// Run processes batches until the input channel closes, then closes out.
// The loop never abandons an in-flight batch: shutdown is driven by the
// listener closing in, so everything already queued is drained.
func (e *Enricher) Run(ctx context.Context, in <-chan *domain.EventRecord, out chan<- *domain.EventRecord) {
	defer close(out)

	for {
		record, ok := <-in
		if !ok {
			e.log.Info("Enrichment stage input channel closed")
			return
		}

		batch := e.nextBatch(record, in)
		e.processBatch(ctx, batch, out)
		metrics.PersistQueueDepth.Set(float64(len(out)))
	}
}

// nextBatch collects whatever is already waiting on the queue, up to the
// batch size, without blocking beyond the first record.
func (e *Enricher) nextBatch(first *domain.EventRecord, in <-chan *domain.EventRecord) []*domain.EventRecord {
	batch := []*domain.EventRecord{first}
	for len(batch) < e.config.BatchSize {
		select {
		case record, ok := <-in:
			if !ok {
				return batch
			}
			batch = append(batch, record)
		default:
			return batch
		}
	}
	return batch
}

// processBatch resolves handles for the batch. Records with cached handles
// are forwarded synchronously; uncached DIDs resolve concurrently, and each
// record is forwarded individually as soon as its own resolution completes.
func (e *Enricher) processBatch(ctx context.Context, batch []*domain.EventRecord, out chan<- *domain.EventRecord) {
	if !e.config.ResolveHandles {
		for _, record := range batch {
			out <- record
		}
		return
	}

	var wg sync.WaitGroup
	for _, record := range batch {
		// Raw frames bypass resolution, and a record without an actor DID
		// has nothing to look up.
		if record.Raw != nil || record.DID == "" {
			out <- record
			continue
		}

		if handle, ok := e.resolver.Cached(record.DID); ok {
			record.Handle = &handle
			out <- record
			continue
		}

		wg.Add(1)
		go func(record *domain.EventRecord) {
			defer wg.Done()
			handle, err := e.resolver.Resolve(ctx, record.DID)
			if err != nil {
				e.log.Warn("Handle resolution failed",
					zap.String("did", record.DID),
					zap.Error(err))
			} else {
				record.Handle = &handle
			}
			out <- record
		}(record)
	}
	wg.Wait()
}
