package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/logsift/logsift/internal/collector/forward"
	"github.com/logsift/logsift/internal/collector/otlp"
	"github.com/logsift/logsift/internal/collector/queue"
	"github.com/logsift/logsift/internal/collector/sink"
	"github.com/logsift/logsift/internal/collector/tail"
	"github.com/logsift/logsift/internal/config"
	"github.com/logsift/logsift/internal/db/elasticsearch/bootstrapper"
	"github.com/logsift/logsift/internal/db/elasticsearch/client"
	"github.com/logsift/logsift/internal/logs/model"
	"github.com/logsift/logsift/internal/miner"
	"github.com/logsift/logsift/internal/normalizer"
	"github.com/logsift/logsift/internal/pipeline"
	"github.com/logsift/logsift/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewIngestCommand creates the 'ingest' subcommand running the collector:
// tail, forward and OTLP inputs feeding the shared queue, pipeline workers
// draining it into Elasticsearch or a remote sink.
func NewIngestCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the log collector and ingestion pipeline",
		Long: `Start the collector inputs (file tailing, forward protocol listener and
OTLP gRPC receiver) together with the pipeline workers that normalize lines,
mine message templates and store entries.

When sink.url is set the collector forwards entries to a remote ingest
endpoint instead of writing to Elasticsearch directly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")
	return cmd
}

func runIngest(configPath string) error {
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

	eventQueue, err := queue.New(cfg.Queue.Capacity, queue.Policy(cfg.Queue.Policy), logger)
	if err != nil {
		return err
	}

	logStore, templateStore, deliverySink, err := buildBackends(cfg, logger)
	if err != nil {
		return err
	}
	if deliverySink != nil {
		deliverySink.Start(ctx)
		defer deliverySink.Stop()
	}

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

	if len(cfg.Tail.Globs) > 0 {
		checkpoints, err := tail.NewSQLiteCheckpointStore(cfg.Tail.CheckpointPath)
		if err != nil {
			return fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		defer func() { _ = checkpoints.Close() }()

		source, err := tail.NewSource(
			tail.SourceConfig{
				Globs:          cfg.Tail.Globs,
				RescanInterval: cfg.Tail.RescanInterval.Std(),
				PollInterval:   cfg.Tail.PollInterval.Std(),
			},
			eventQueue,
			checkpoints,
			logger,
		)
		if err != nil {
			return err
		}
		source.Start()
		defer source.Stop()
	}

	forwardServer, err := forward.NewServer(cfg.Listeners.ForwardHost, cfg.Listeners.ForwardPort, eventQueue, logger)
	if err != nil {
		return err
	}
	if err := forwardServer.Start(); err != nil {
		return fmt.Errorf("failed to start forward listener: %w", err)
	}
	defer forwardServer.Stop()

	otlpServer := otlp.NewServer(cfg.Listeners.GrpcAddr, eventQueue, logger)
	if err := otlpServer.Start(); err != nil {
		return fmt.Errorf("failed to start OTLP listener: %w", err)
	}
	defer otlpServer.Stop()

	logger.Info("Collector started",
		zap.Strings("globs", cfg.Tail.Globs),
		zap.Int("forward_port", cfg.Listeners.ForwardPort),
		zap.String("grpc_addr", cfg.Listeners.GrpcAddr),
	)

	<-ctx.Done()
	logger.Info("Shutting down collector")
	return nil
}

// buildBackends decides where pipeline output goes. With a sink URL the
// collector runs detached from Elasticsearch and forwards everything.
func buildBackends(
	cfg config.Config,
	logger *zap.Logger,
) (store.LogStore, store.TemplateStore, *sink.Sink, error) {
	if cfg.Sink.URL != "" {
		deliverySink, err := sink.NewSink(sink.Config{
			URL:           cfg.Sink.URL,
			BatchSize:     cfg.Sink.BatchSize,
			BatchDelay:    cfg.Sink.BatchDelay.Std(),
			MaxRetries:    cfg.Sink.MaxRetries,
			RetryDelay:    cfg.Sink.RetryDelay.Std(),
			Timeout:       cfg.Sink.Timeout.Std(),
			BufferSize:    cfg.Sink.BufferSize,
			AppendLogPath: cfg.Sink.AppendLogPath,
		}, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return &sinkStore{sink: deliverySink, logger: logger}, nopTemplateStore{}, deliverySink, nil
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Elasticsearch.Addresses})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	if err := bootstrapper.NewBootstrapper(es, logger).BootstrapElasticsearch(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to bootstrap elasticsearch: %w", err)
	}

	siftClient := client.NewSiftClientImpl(es, client.Async)
	return store.NewLogStoreImpl(siftClient, nil, logger),
		store.NewTemplateStoreImpl(siftClient, logger),
		nil,
		nil
}

// sinkStore adapts the delivery sink to the pipeline's store interface so
// forwarding mode reuses the same worker loop.
type sinkStore struct {
	sink   *sink.Sink
	logger *zap.Logger
}

func (s *sinkStore) Put(ctx context.Context, entries []model.LogEntry) error {
	for _, entry := range entries {
		if !s.sink.Offer(entry) {
			s.logger.Warn("Delivery sink buffer full, entry dropped")
		}
	}
	return nil
}

type nopTemplateStore struct{}

func (nopTemplateStore) Sync(ctx context.Context, templates []model.Template) error {
	return nil
}
