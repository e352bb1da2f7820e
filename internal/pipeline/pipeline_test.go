package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	collectorModel "github.com/logsift/logsift/internal/collector/model"
	"github.com/logsift/logsift/internal/collector/queue"
	"github.com/logsift/logsift/internal/logs/model"
	"github.com/logsift/logsift/internal/miner"
	"github.com/logsift/logsift/internal/normalizer"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeLogStore struct {
	mu      sync.Mutex
	entries []model.LogEntry
	failing bool
}

func (f *fakeLogStore) Put(ctx context.Context, entries []model.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("store unavailable")
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeLogStore) stored() []model.LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.LogEntry(nil), f.entries...)
}

type fakeTemplateStore struct {
	mu        sync.Mutex
	syncCount int
	last      []model.Template
}

func (f *fakeTemplateStore) Sync(ctx context.Context, templates []model.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCount++
	f.last = append([]model.Template(nil), templates...)
	return nil
}

func newTestPipeline(t *testing.T, logStore *fakeLogStore, templateStore *fakeTemplateStore) (*Pipeline, *queue.Queue) {
	t.Helper()
	eventQueue, err := queue.New(64, queue.PolicyBlock, zap.NewNop())
	assert.NoError(t, err)
	p := NewPipeline(
		Config{
			Workers:              2,
			BatchSize:            4,
			FlushInterval:        20 * time.Millisecond,
			TemplateSyncInterval: 20 * time.Millisecond,
		},
		eventQueue,
		normalizer.NewNormalizer("test", zap.NewNop()),
		miner.NewTemplateMiner(miner.Config{}, nil, zap.NewNop()),
		logStore,
		templateStore,
		zap.NewNop(),
	)
	return p, eventQueue
}

func TestPipeline_NormalizesMinesAndStores(t *testing.T) {
	logStore := &fakeLogStore{}
	templateStore := &fakeTemplateStore{}
	p, eventQueue := newTestPipeline(t, logStore, templateStore)

	ctx := context.Background()
	for _, line := range []string{
		"2024-05-01 12:00:00 ERROR User alice logged in",
		"2024-05-01 12:00:01 ERROR User bob logged in",
	} {
		assert.NoError(t, eventQueue.Enqueue(ctx, collectorModel.RawEvent{Line: line, Source: "web01"}))
	}

	p.Start(ctx)
	assert.Eventually(t, func() bool {
		return len(logStore.stored()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	p.Stop()

	stored := logStore.stored()
	assert.NotEmpty(t, stored[0].TemplateId)
	// Structurally identical messages share one template.
	assert.Equal(t, stored[0].TemplateId, stored[1].TemplateId)
	assert.Equal(t, uint64(2), p.Processed())

	// Shutdown performs a final template sync.
	assert.GreaterOrEqual(t, templateStore.syncCount, 1)
	assert.NotEmpty(t, templateStore.last)
}

func TestPipeline_ParseFailureIsCountedNotFatal(t *testing.T) {
	logStore := &fakeLogStore{}
	p, eventQueue := newTestPipeline(t, logStore, &fakeTemplateStore{})

	ctx := context.Background()
	assert.NoError(t, eventQueue.Enqueue(ctx, collectorModel.RawEvent{Line: `{"level": "ERROR", broken`}))
	assert.NoError(t, eventQueue.Enqueue(ctx, collectorModel.RawEvent{Line: "plain line"}))

	p.Start(ctx)
	assert.Eventually(t, func() bool {
		return len(logStore.stored()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	p.Stop()

	assert.Equal(t, uint64(1), p.ParseFailures())
}

func TestPipeline_StoreFailureDropsBatchAndContinues(t *testing.T) {
	logStore := &fakeLogStore{failing: true}
	p, eventQueue := newTestPipeline(t, logStore, &fakeTemplateStore{})

	ctx := context.Background()
	assert.NoError(t, eventQueue.Enqueue(ctx, collectorModel.RawEvent{Line: "first line"}))

	p.Start(ctx)
	assert.Eventually(t, func() bool {
		return p.StoreFailures() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	logStore.mu.Lock()
	logStore.failing = false
	logStore.mu.Unlock()

	assert.NoError(t, eventQueue.Enqueue(ctx, collectorModel.RawEvent{Line: "second line"}))
	assert.Eventually(t, func() bool {
		return len(logStore.stored()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	p.Stop()

	assert.Equal(t, "second line", logStore.stored()[0].Message)
}

func TestIngest_AnnotatesAndDefaults(t *testing.T) {
	logStore := &fakeLogStore{}
	p, _ := newTestPipeline(t, logStore, &fakeTemplateStore{})

	err := p.Ingest(context.Background(), []model.LogEntry{
		{Message: "Payment failed for order 991", Source: "billing"},
	})
	assert.NoError(t, err)

	stored := logStore.stored()
	assert.Len(t, stored, 1)
	assert.NotEmpty(t, stored[0].TemplateId)
	assert.Equal(t, model.InfoLevel, stored[0].Level)
	assert.False(t, stored[0].Timestamp.IsZero())
	assert.Equal(t, uint64(1), p.Processed())
}
