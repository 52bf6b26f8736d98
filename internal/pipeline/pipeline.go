package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/firehose-archiver/internal/domain"
	"github.com/BarkinBalci/firehose-archiver/internal/feed"
)

// Config configures the pipeline supervisor
type Config struct {
	IngestQueueSize  int
	PersistQueueSize int
	ShutdownTimeout  time.Duration
}

// Pipeline owns the three stages and the two bounded queues between them,
// and coordinates drain-then-stop shutdown.
type Pipeline struct {
	listener *feed.Listener
	enricher *Enricher
	writer   *Writer
	meter    *RateMeter
	config   Config
	log      *zap.Logger
}

// New creates a new pipeline supervisor. meter may be nil.
func New(listener *feed.Listener, enricher *Enricher, writer *Writer, meter *RateMeter, config Config, log *zap.Logger) *Pipeline {
	return &Pipeline{
		listener: listener,
		enricher: enricher,
		writer:   writer,
		meter:    meter,
		config:   config,
		log:      log,
	}
}

// Run starts all stages and blocks until they exit. Cancelling ctx stops the
// listener, which closes the ingestion queue; the enrichment and persistence
// stages then drain everything already queued before exiting. The drain is
// bounded: past the shutdown timeout, remaining work is abandoned with a
// warning rather than hanging the process.
func (p *Pipeline) Run(ctx context.Context) error {
	ingestQueue := make(chan *domain.EventRecord, p.config.IngestQueueSize)
	persistQueue := make(chan *domain.EventRecord, p.config.PersistQueueSize)

	// Stages use a separate context so in-flight lookups and writes can
	// finish during the drain after ctx itself is cancelled.
	drainCtx, cancelDrain := context.WithCancel(context.Background())
	defer cancelDrain()

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		p.listener.Run(ctx, ingestQueue)
	}()

	go func() {
		defer wg.Done()
		p.enricher.Run(drainCtx, ingestQueue, persistQueue)
	}()

	go func() {
		defer wg.Done()
		p.writer.Run(drainCtx, persistQueue)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.log.Info("Stop requested, draining queues",
			zap.Int("ingest_depth", len(ingestQueue)),
			zap.Int("persist_depth", len(persistQueue)))

		select {
		case <-done:
		case <-time.After(p.config.ShutdownTimeout):
			p.log.Warn("Drain timed out, abandoning remaining work",
				zap.Duration("timeout", p.config.ShutdownTimeout))
			cancelDrain()
		}
	}

	p.summary()
	return nil
}

// Ingested returns the number of records queued by the listener.
func (p *Pipeline) Ingested() int64 {
	return p.listener.Queued()
}

// Persisted returns the number of records durably written.
func (p *Pipeline) Persisted() int64 {
	return p.writer.Persisted()
}

// summary reports ingested vs persisted counts so silent loss is observable.
func (p *Pipeline) summary() {
	if p.meter != nil {
		p.meter.Summary()
	}

	ingested := p.Ingested()
	persisted := p.Persisted()
	p.log.Info("Pipeline summary",
		zap.Int64("ingested", ingested),
		zap.Int64("persisted", persisted),
		zap.Int64("cursor", p.listener.Cursor()))

	if ingested != persisted {
		p.log.Warn("Ingested and persisted counts differ",
			zap.Int64("missing", ingested-persisted))
	}
}
