package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BarkinBalci/firehose-archiver/internal/api"
	"github.com/BarkinBalci/firehose-archiver/internal/config"
	"github.com/BarkinBalci/firehose-archiver/internal/feed"
	"github.com/BarkinBalci/firehose-archiver/internal/logger"
	"github.com/BarkinBalci/firehose-archiver/internal/pipeline"
	"github.com/BarkinBalci/firehose-archiver/internal/resolver"
	"github.com/BarkinBalci/firehose-archiver/internal/storage/jsonl"
)

var flags struct {
	username       string
	password       string
	debug          bool
	stream         bool
	measureRate    bool
	resolveHandles bool
	cursor         int64
	archiveAll     bool
	feedURL        string
	dataDir        string
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "archiver",
		Short:        "Archive posts from the Bluesky firehose",
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVar(&flags.username, "username", "", "directory service username")
	rootCmd.Flags().StringVar(&flags.password, "password", "", "directory service password")
	rootCmd.Flags().BoolVar(&flags.debug, "debug", false, "enable debug output")
	rootCmd.Flags().BoolVar(&flags.stream, "stream", false, "stream post text to stdout")
	rootCmd.Flags().BoolVar(&flags.measureRate, "measure-rate", false, "log throughput estimates")
	rootCmd.Flags().BoolVar(&flags.resolveHandles, "resolve-handles", false, "resolve actor handles while archiving")
	rootCmd.Flags().Int64Var(&flags.cursor, "cursor", 0, "resume cursor in unix microseconds")
	rootCmd.Flags().BoolVar(&flags.archiveAll, "all-records", false, "archive every record verbatim")
	rootCmd.Flags().StringVar(&flags.feedURL, "feed-url", "", "override the feed subscribe URL")
	rootCmd.Flags().StringVar(&flags.dataDir, "data-dir", "", "override the archive root directory")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Environment, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	log.Info("Starting firehose archiver",
		zap.String("environment", cfg.Environment),
		zap.String("feed_url", cfg.FeedURL),
		zap.Bool("archive_all", cfg.ArchiveAll),
		zap.Bool("resolve_handles", cfg.ResolveHandles))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Directory client and resolver
	directory := resolver.NewHTTPDirectoryClient(cfg.DirectoryURL, log)
	if cfg.Username != "" && cfg.Password != "" {
		if err := directory.Login(ctx, cfg.Username, cfg.Password); err != nil {
			return fmt.Errorf("failed to create directory session: %w", err)
		}
	}
	cache := resolver.NewHandleCache()
	res := resolver.NewResolver(directory, cache, int64(cfg.ResolveConcurrency), log)

	// Stages
	listener := feed.NewListener(feed.WebsocketDialer, feed.ListenerConfig{
		FeedURL:           cfg.FeedURL,
		WantedCollections: cfg.WantedCollections,
		Cursor:            cfg.Cursor,
		ArchiveAll:        cfg.ArchiveAll,
		Stream:            cfg.Stream,
		ReconnectDelay:    time.Duration(cfg.ReconnectDelaySec) * time.Second,
	}, os.Stdout, log)

	enricher := pipeline.NewEnricher(res, pipeline.EnricherConfig{
		BatchSize:      cfg.BatchSizeMax,
		ResolveHandles: cfg.ResolveHandles,
	}, log)

	var meter *pipeline.RateMeter
	if cfg.MeasureRate {
		meter = pipeline.NewRateMeter(10*time.Second, log)
	}

	store := jsonl.NewStore(cfg.DataDir, cfg.RawDataDir, log)
	writer := pipeline.NewWriter(store, pipeline.WriterConfig{
		MaxBatchSize:  cfg.BatchSizeMax,
		FlushInterval: time.Duration(cfg.BatchTimeoutSec) * time.Second,
		ArchiveAll:    cfg.ArchiveAll,
	}, meter, log)

	pl := pipeline.New(listener, enricher, writer, meter, pipeline.Config{
		IngestQueueSize:  cfg.IngestQueueSize,
		PersistQueueSize: cfg.PersistQueueSize,
		ShutdownTimeout:  time.Duration(cfg.ShutdownTimeoutSec) * time.Second,
	}, log)

	// Ops endpoints
	handler := api.NewHandler(func() api.Stats {
		return api.Stats{
			Ingested:      pl.Ingested(),
			Persisted:     pl.Persisted(),
			Cursor:        listener.Cursor(),
			CachedHandles: cache.Len(),
		}
	}, log)
	go func() {
		addr := ":" + cfg.OpsPort
		log.Info("Ops server starting", zap.String("address", addr))
		if err := http.ListenAndServe(addr, handler); err != nil {
			log.Error("Ops server error", zap.Error(err))
		}
	}()

	return pl.Run(ctx)
}

// applyFlags overrides loaded config with any flag set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("username") {
		cfg.Username = flags.username
	}
	if cmd.Flags().Changed("password") {
		cfg.Password = flags.password
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = flags.debug
	}
	if cmd.Flags().Changed("stream") {
		cfg.Stream = flags.stream
	}
	if cmd.Flags().Changed("measure-rate") {
		cfg.MeasureRate = flags.measureRate
	}
	if cmd.Flags().Changed("resolve-handles") {
		cfg.ResolveHandles = flags.resolveHandles
	}
	if cmd.Flags().Changed("cursor") {
		cfg.Cursor = flags.cursor
	}
	if cmd.Flags().Changed("all-records") {
		cfg.ArchiveAll = flags.archiveAll
	}
	if cmd.Flags().Changed("feed-url") {
		cfg.FeedURL = flags.feedURL
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = flags.dataDir
	}
}
