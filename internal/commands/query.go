package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/logsift/logsift/internal/cache"
	"github.com/logsift/logsift/internal/collector/queue"
	"github.com/logsift/logsift/internal/config"
	"github.com/logsift/logsift/internal/db/elasticsearch/bootstrapper"
	"github.com/logsift/logsift/internal/db/elasticsearch/client"
	"github.com/logsift/logsift/internal/miner"
	"github.com/logsift/logsift/internal/normalizer"
	"github.com/logsift/logsift/internal/pipeline"
	"github.com/logsift/logsift/internal/query"
	"github.com/logsift/logsift/internal/server/middleware"
	"github.com/logsift/logsift/internal/server/router"
	"github.com/logsift/logsift/internal/stats"
	"github.com/logsift/logsift/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownGracePeriod = 10 * time.Second

// NewQueryCommand creates the 'query' subcommand running the HTTP API:
// ingest endpoints, filtered search, template listing and statistics.
func NewQueryCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run the HTTP API for ingest, search and statistics",
		Long: `Start the HTTP server exposing the ingest boundary and the read side:
log search with filters, sorting and pagination, the recent-entries feed,
mined template listing and aggregate statistics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")
	return cmd
}

func runQuery(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Elasticsearch.Addresses})
	if err != nil {
		return fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	if err := bootstrapper.NewBootstrapper(es, logger).BootstrapElasticsearch(); err != nil {
		return fmt.Errorf("failed to bootstrap elasticsearch: %w", err)
	}
	siftClient := client.NewSiftClientImpl(es, client.Async)

	recentCache, err := cache.NewRecentCacheImpl(cfg.Server.RecentCacheCapacity)
	if err != nil {
		return err
	}
	logStore := store.NewLogStoreImpl(siftClient, recentCache, logger)
	templateStore := store.NewTemplateStoreImpl(siftClient, logger)

	templateMiner := miner.NewTemplateMiner(
		miner.Config{
			MaxLiteralLength:    cfg.Miner.MaxLiteralLength,
			SimilarityThreshold: cfg.Miner.SimilarityThreshold,
			BucketWidth:         cfg.Miner.BucketWidth.Std(),
			MaxBuckets:          cfg.Miner.MaxBuckets,
		},
		miner.NewThresholdClassifier(cfg.Miner.TrendRatio, cfg.Miner.AnomalySigma),
		logger,
	)

	// The API server runs the pipeline for its ingest endpoints and the
	// periodic template sync; its queue has no listeners feeding it.
	eventQueue, err := queue.New(cfg.Queue.Capacity, queue.Policy(cfg.Queue.Policy), logger)
	if err != nil {
		return err
	}
	ingestPipeline := pipeline.NewPipeline(
		pipeline.Config{
			Workers:              cfg.Pipeline.Workers,
			BatchSize:            cfg.Pipeline.BatchSize,
			FlushInterval:        cfg.Pipeline.FlushInterval.Std(),
			TemplateSyncInterval: cfg.Pipeline.TemplateSyncInterval.Std(),
		},
		eventQueue,
		normalizer.NewNormalizer("logsift", logger),
		templateMiner,
		logStore,
		templateStore,
		logger,
	)
	ingestPipeline.Start(ctx)
	defer ingestPipeline.Stop()

	queryService := query.NewQueryServiceImpl(siftClient, recentCache, logger)
	statsService := stats.NewStatsServiceImpl(siftClient, logger)
	rateLimiter := middleware.NewClientRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst, logger)
	defer rateLimiter.Stop()

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router.CreateRouter(ctx, ingestPipeline, queryService, statsService, rateLimiter, logger),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()
	logger.Info("HTTP API started", zap.String("addr", cfg.Server.HTTPAddr))

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}
