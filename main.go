package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-index/internal/database"
	"media-index/internal/extractor"
	"media-index/internal/filesystem"
	"media-index/internal/geocode"
	"media-index/internal/indexer"
	"media-index/internal/logging"
	"media-index/internal/metrics"
	"media-index/internal/progress"
	"media-index/internal/startup"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		startup.LogFatal("%v", err)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "media-index",
		Short: "Incrementally index photos and videos into a searchable SQLite database",
		Long: `media-index walks the configured media tree, extracts capture time, GPS
position and camera from new or changed files, resolves positions to places
and keeps a SQLite index with full-text search in sync with the filesystem.

Configuration is read from media-index.yaml and MEDIA_INDEX_* environment
variables.`,
		Args:          cobra.NoArgs,
		Version:       startup.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run()
		},
	}
}

func run() error {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logCloser := logging.Configure(config.LoggingOptions())
	defer logCloser.Close()
	startup.LogConfiguration(config)

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	ext, err := extractor.New(config.ExtractorOptions())
	if err != nil {
		return fmt.Errorf("failed to initialize extractor: %w", err)
	}
	startup.LogExtractorInit(ext.Name(), config)

	geo, err := newGeocoder(config.Geocoder)
	if err != nil {
		return fmt.Errorf("failed to initialize geocoder: %w", err)
	}

	idx := indexer.New(db, ext, geo, config.IndexerConfig())
	idx.SetReporter(progress.New(os.Stdout))

	if config.Metrics.ListenAddr != "" {
		srv, err := metrics.StartStatusServer(config.Metrics.ListenAddr, func() interface{} {
			return idx.Progress()
		}, startup.GetBuildInfo())
		if err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logging.Warn("Status server shutdown error: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, runErr := idx.Run(ctx)

	if config.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := metrics.Push(pushCtx, config.Metrics.PushgatewayURL); err != nil {
			logging.Warn("%v", err)
		}
		cancel()
	}

	if runErr != nil {
		return fmt.Errorf("index run failed: %w", runErr)
	}

	logging.Printf("Finished in %v", time.Since(startTime).Round(time.Millisecond))
	return nil
}

func newGeocoder(cfg startup.GeocoderConfig) (geocode.GeoResolver, error) {
	if !cfg.Enabled {
		logging.Info("Reverse geocoding disabled")
		return geocode.Disabled{}, nil
	}

	backend, err := geocode.NewRGeo(cfg.Dataset, cfg.MaxDistanceKm)
	if err != nil {
		return nil, err
	}

	return geocode.NewResolver(backend, cfg.CacheSize), nil
}
