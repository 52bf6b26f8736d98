package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment        string   `envconfig:"ARCHIVER_ENVIRONMENT" default:"development"`
	FeedURL            string   `envconfig:"ARCHIVER_FEED_URL" default:"wss://jetstream2.us-east.bsky.network/subscribe"`
	DirectoryURL       string   `envconfig:"ARCHIVER_DIRECTORY_URL" default:"https://public.api.bsky.app"`
	Username           string   `envconfig:"ARCHIVER_USERNAME"`
	Password           string   `envconfig:"ARCHIVER_PASSWORD"`
	DataDir            string   `envconfig:"ARCHIVER_DATA_DIR" default:"data"`
	RawDataDir         string   `envconfig:"ARCHIVER_RAW_DATA_DIR" default:"data_everything"`
	WantedCollections  []string `envconfig:"ARCHIVER_WANTED_COLLECTIONS" default:"app.bsky.feed.post"`
	IngestQueueSize    int      `envconfig:"ARCHIVER_INGEST_QUEUE_SIZE" default:"1024"`
	PersistQueueSize   int      `envconfig:"ARCHIVER_PERSIST_QUEUE_SIZE" default:"1024"`
	BatchSizeMax       int      `envconfig:"ARCHIVER_BATCH_SIZE_MAX" default:"100"`
	BatchTimeoutSec    int      `envconfig:"ARCHIVER_BATCH_TIMEOUT_SEC" default:"2"`
	ReconnectDelaySec  int      `envconfig:"ARCHIVER_RECONNECT_DELAY_SEC" default:"5"`
	ResolveConcurrency int      `envconfig:"ARCHIVER_RESOLVE_CONCURRENCY" default:"10"`
	ShutdownTimeoutSec int      `envconfig:"ARCHIVER_SHUTDOWN_TIMEOUT_SEC" default:"5"`
	OpsPort            string   `envconfig:"ARCHIVER_OPS_PORT" default:"8081"`
	Debug              bool     `envconfig:"ARCHIVER_DEBUG" default:"false"`
	Stream             bool     `envconfig:"ARCHIVER_STREAM" default:"false"`
	MeasureRate        bool     `envconfig:"ARCHIVER_MEASURE_RATE" default:"false"`
	ResolveHandles     bool     `envconfig:"ARCHIVER_RESOLVE_HANDLES" default:"false"`
	Cursor             int64    `envconfig:"ARCHIVER_CURSOR" default:"0"`
	ArchiveAll         bool     `envconfig:"ARCHIVER_ARCHIVE_ALL" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects flag combinations the pipeline cannot honor.
func (c *Config) Validate() error {
	if c.ArchiveAll && c.ResolveHandles {
		return fmt.Errorf("archive-all mode stores raw frames and cannot resolve handles")
	}
	if c.BatchSizeMax <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSizeMax)
	}
	if c.ResolveConcurrency <= 0 {
		return fmt.Errorf("resolve concurrency must be positive, got %d", c.ResolveConcurrency)
	}
	if c.BatchTimeoutSec <= 0 {
		return fmt.Errorf("batch timeout must be positive, got %d", c.BatchTimeoutSec)
	}
	if c.ReconnectDelaySec < 0 {
		return fmt.Errorf("reconnect delay must not be negative, got %d", c.ReconnectDelaySec)
	}
	if c.ShutdownTimeoutSec < 0 {
		return fmt.Errorf("shutdown timeout must not be negative, got %d", c.ShutdownTimeoutSec)
	}
	return nil
}
