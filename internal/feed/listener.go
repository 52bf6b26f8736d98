package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/firehose-archiver/internal/domain"
	"github.com/BarkinBalci/firehose-archiver/internal/metrics"
)

// ListenerConfig configures the feed listener
type ListenerConfig struct {
	FeedURL           string
	WantedCollections []string
	Cursor            int64
	ArchiveAll        bool
	Stream            bool
	ReconnectDelay    time.Duration
}

// Listener maintains a connection to the firehose feed, classifies inbound
// frames, and pushes event records into the ingestion queue. It owns the
// resume cursor and the reconnect loop.
type Listener struct {
	dial   Dialer
	config ListenerConfig
	echo   io.Writer
	log    *zap.Logger

	cursor atomic.Int64
	queued atomic.Int64
}

// NewListener creates a new feed listener. echo receives post text when
// streaming is enabled; it may be nil.
func NewListener(dial Dialer, config ListenerConfig, echo io.Writer, log *zap.Logger) *Listener {
	l := &Listener{
		dial:   dial,
		config: config,
		echo:   echo,
		log:    log,
	}
	l.cursor.Store(config.Cursor)
	return l
}

// Run listens until the context is cancelled, reconnecting from the last
// cursor after a fixed delay whenever the connection closes or errors. It
// closes out on exit, which starts the downstream drain.
func (l *Listener) Run(ctx context.Context, out chan<- *domain.EventRecord) {
	defer close(out)

	for {
		if ctx.Err() != nil {
			l.log.Info("Feed listener shutting down")
			return
		}

		err := l.listen(ctx, out)
		if ctx.Err() != nil {
			l.log.Info("Feed listener shutting down")
			return
		}

		metrics.FeedReconnects.Inc()
		l.log.Warn("Feed connection lost",
			zap.Error(err),
			zap.Int64("cursor", l.cursor.Load()),
			zap.Duration("reconnect_delay", l.config.ReconnectDelay))

		select {
		case <-ctx.Done():
			l.log.Info("Feed listener shutting down")
			return
		case <-time.After(l.config.ReconnectDelay):
		}
	}
}

// listen runs a single connection until it fails or the context is cancelled.
func (l *Listener) listen(ctx context.Context, out chan<- *domain.EventRecord) error {
	subscribeURL, err := l.subscribeURL()
	if err != nil {
		return err
	}

	conn, err := l.dial(ctx, subscribeURL)
	if err != nil {
		return fmt.Errorf("failed to dial feed: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-readDone:
		}
	}()

	l.log.Debug("Connected to feed", zap.String("url", subscribeURL))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed read failed: %w", err)
		}
		l.handleMessage(ctx, message, out)
	}
}

// handleMessage decodes and classifies one frame. The cursor advances after
// every successfully decoded frame, whether it was queued or discarded.
func (l *Listener) handleMessage(ctx context.Context, message []byte, out chan<- *domain.EventRecord) {
	var event domain.RawEvent
	if err := json.Unmarshal(message, &event); err != nil {
		metrics.DecodeErrors.Inc()
		l.log.Warn("Skipping malformed frame", zap.Error(err))
		return
	}
	metrics.FramesReceived.Inc()

	if l.config.ArchiveAll {
		record := &domain.EventRecord{
			TimeUS: event.TimeUS,
			Raw:    append([]byte(nil), message...),
		}
		l.push(ctx, record, out, event.TimeUS)
		return
	}

	if event.Kind != "commit" || event.Commit == nil || event.Commit.Operation != "create" {
		metrics.FramesDiscarded.Inc()
		l.cursor.Store(event.TimeUS)
		return
	}

	record := &domain.EventRecord{
		Record: event.Commit.Record,
		RKey:   event.Commit.RKey,
		DID:    event.DID,
		TimeUS: event.TimeUS,
	}
	l.push(ctx, record, out, event.TimeUS)

	if l.config.Stream && l.echo != nil {
		l.streamText(event.Commit.Record)
	}
}

// push is the deliberate backpressure point: if downstream stages stall, the
// listener stalls here rather than dropping or buffering unboundedly.
func (l *Listener) push(ctx context.Context, record *domain.EventRecord, out chan<- *domain.EventRecord, timeUS int64) {
	select {
	case <-ctx.Done():
	case out <- record:
		l.queued.Add(1)
		l.cursor.Store(timeUS)
		metrics.IngestQueueDepth.Set(float64(len(out)))
	}
}

// streamText echoes the text field of a record, best effort.
func (l *Listener) streamText(record json.RawMessage) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(record, &body); err != nil || body.Text == "" {
		return
	}
	fmt.Fprintf(l.echo, "%s\n", body.Text)
}

func (l *Listener) subscribeURL() (string, error) {
	base, err := url.Parse(l.config.FeedURL)
	if err != nil {
		return "", fmt.Errorf("invalid feed URL %q: %w", l.config.FeedURL, err)
	}

	query := base.Query()
	if cursor := l.cursor.Load(); cursor > 0 {
		query.Set("cursor", strconv.FormatInt(cursor, 10))
	}
	if !l.config.ArchiveAll {
		for _, collection := range l.config.WantedCollections {
			query.Add("wantedCollections", collection)
		}
	}
	base.RawQuery = query.Encode()

	return base.String(), nil
}

// Cursor returns the last observed sequence position.
func (l *Listener) Cursor() int64 {
	return l.cursor.Load()
}

// Queued returns the number of records pushed onto the ingestion queue.
func (l *Listener) Queued() int64 {
	return l.queued.Load()
}
