package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logsift/logsift/internal/collector/queue"
	"github.com/logsift/logsift/internal/logs/model"
	"github.com/logsift/logsift/internal/miner"
	"github.com/logsift/logsift/internal/normalizer"
	"github.com/logsift/logsift/internal/store"
	"go.uber.org/zap"
)

// Config carries the pipeline knobs. Zero values fall back to the defaults
// below.
type Config struct {
	Workers              int
	BatchSize            int
	FlushInterval        time.Duration
	TemplateSyncInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}
	if c.TemplateSyncInterval <= 0 {
		c.TemplateSyncInterval = 10 * time.Second
	}
	return c
}

// Pipeline drains the collector queue with a pool of workers. Each event is
// normalized, matched against the template index and buffered into bulk puts.
// A failure on one event never stops the pipeline; it is logged and counted.
type Pipeline struct {
	config        Config
	queue         *queue.Queue
	normalizer    normalizer.Normalizer
	miner         miner.TemplateMiner
	logStore      store.LogStore
	templateStore store.TemplateStore
	logger        *zap.Logger

	processed     atomic.Uint64
	parseFailures atomic.Uint64
	storeFailures atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPipeline(
	config Config,
	eventQueue *queue.Queue,
	logNormalizer normalizer.Normalizer,
	templateMiner miner.TemplateMiner,
	logStore store.LogStore,
	templateStore store.TemplateStore,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		config:        config.withDefaults(),
		queue:         eventQueue,
		normalizer:    logNormalizer,
		miner:         templateMiner,
		logStore:      logStore,
		templateStore: templateStore,
		logger:        logger,
	}
}

func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.work(ctx)
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.syncTemplates(ctx)
	}()
}

// Stop drains in-flight batches and performs a final template sync.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	syncCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.templateStore.Sync(syncCtx, p.miner.Snapshot()); err != nil {
		p.logger.Error("Failed to sync templates on shutdown", zap.Error(err))
	}
}

func (p *Pipeline) work(ctx context.Context) {
	batch := make([]model.LogEntry, 0, p.config.BatchSize)
	for {
		dequeueCtx, cancel := context.WithTimeout(ctx, p.config.FlushInterval)
		event, ok := p.queue.Dequeue(dequeueCtx)
		cancel()
		if !ok {
			batch = p.flush(batch)
			if ctx.Err() != nil {
				return
			}
			continue
		}

		entry, parseErr := p.normalizer.Normalize(event)
		if parseErr != nil {
			p.parseFailures.Add(1)
			p.logger.Debug("Degraded parse of log line",
				zap.String("reason", parseErr.Reason),
			)
		}
		templateId, _ := p.miner.Mine(entry.Message, entry.Timestamp)
		entry.TemplateId = templateId

		batch = append(batch, entry)
		if len(batch) >= p.config.BatchSize {
			batch = p.flush(batch)
		}
	}
}

// flush bulk-puts the batch and returns an empty batch reusing the same
// backing array. Store failures drop the batch after logging; the queue must
// keep moving.
func (p *Pipeline) flush(batch []model.LogEntry) []model.LogEntry {
	if len(batch) == 0 {
		return batch
	}
	putCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.logStore.Put(putCtx, batch); err != nil {
		p.storeFailures.Add(1)
		p.logger.Error("Failed to put batch into log store",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
	} else {
		p.processed.Add(uint64(len(batch)))
	}
	return batch[:0]
}

func (p *Pipeline) syncTemplates(ctx context.Context) {
	ticker := time.NewTicker(p.config.TemplateSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := p.templateStore.Sync(syncCtx, p.miner.Snapshot()); err != nil {
				p.logger.Error("Failed to sync templates", zap.Error(err))
			}
			cancel()
		}
	}
}

// Ingest handles entries that arrive already normalized, e.g. pushed over
// the HTTP ingest endpoints by a remote collector. Entries without a
// template are matched against the index before the put.
func (p *Pipeline) Ingest(ctx context.Context, entries []model.LogEntry) error {
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
		if entries[i].Timestamp.IsZero() {
			entries[i].Timestamp = now
		}
		if entries[i].Level == "" {
			entries[i].Level = model.InfoLevel
		}
		if entries[i].TemplateId == "" && entries[i].Message != "" {
			templateId, _ := p.miner.Mine(entries[i].Message, entries[i].Timestamp)
			entries[i].TemplateId = templateId
		}
	}
	if err := p.logStore.Put(ctx, entries); err != nil {
		p.storeFailures.Add(1)
		return err
	}
	p.processed.Add(uint64(len(entries)))
	return nil
}

func (p *Pipeline) Processed() uint64 {
	return p.processed.Load()
}

func (p *Pipeline) ParseFailures() uint64 {
	return p.parseFailures.Load()
}

func (p *Pipeline) StoreFailures() uint64 {
	return p.storeFailures.Load()
}
