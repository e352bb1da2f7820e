package miner

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/logsift/logsift/internal/logs/model"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestMiner() *TemplateMinerImpl {
	return NewTemplateMiner(Config{}, nil, zap.NewNop())
}

func TestMine_SharedTemplateForVaryingToken(t *testing.T) {
	m := newTestMiner()
	now := time.Now().UTC()

	firstId, isNew := m.Mine("User alice logged in", now)
	assert.True(t, isNew)

	secondId, isNew := m.Mine("User bob logged in", now)
	assert.False(t, isNew)
	assert.Equal(t, firstId, secondId)

	template, ok := m.Template(firstId)
	assert.True(t, ok)
	assert.Equal(t, "User <STR> logged in", template.Pattern)
	assert.Equal(t, int64(2), template.Count)
}

func TestMine_NumericTokensBecomeNumPlaceholder(t *testing.T) {
	m := newTestMiner()
	now := time.Now().UTC()

	id1, _ := m.Mine("request took 12 ms", now)
	id2, _ := m.Mine("request took 348 ms", now)
	assert.Equal(t, id1, id2)

	template, _ := m.Template(id1)
	assert.Equal(t, "request took <NUM> ms", template.Pattern)
}

func TestMine_MatchingIsIdempotent(t *testing.T) {
	m := newTestMiner()
	now := time.Now().UTC()

	messages := []string{
		"Database connection failed: timeout after 30s",
		"User carol logged in",
		`{"weird": "line"}`,
		"GET /health 200",
	}
	ids := make(map[string]string)
	for _, message := range messages {
		id, _ := m.Mine(message, now)
		ids[message] = id
	}
	for _, message := range messages {
		id, isNew := m.Mine(message, now)
		assert.False(t, isNew)
		assert.Equal(t, ids[message], id, message)
	}
}

func TestMine_DifferentLayoutsGetDifferentTemplates(t *testing.T) {
	m := newTestMiner()
	now := time.Now().UTC()

	id1, _ := m.Mine("cache miss for key session", now)
	id2, _ := m.Mine("cache flushed", now)
	assert.NotEqual(t, id1, id2)
}

func TestMine_HighEntropyTokensConvergeOnOneTemplate(t *testing.T) {
	m := newTestMiner()
	now := time.Now().UTC()

	bigId, _ := m.Mine("worker node17a started", now)
	for i := 0; i < 10; i++ {
		m.Mine(fmt.Sprintf("worker node%d8b started", i), now)
	}

	matchedId, isNew := m.Mine("worker node99z started", now)
	assert.False(t, isNew)
	assert.Equal(t, bigId, matchedId)

	template, _ := m.Template(bigId)
	assert.Equal(t, "worker <STR> started", template.Pattern)
	assert.Equal(t, int64(12), template.Count)
}

func TestMine_TieBreakPrefersLargerCount(t *testing.T) {
	m := newTestMiner()
	now := time.Now().UTC()

	bigId, _ := m.Mine("session cache warm up complete", now)
	for i := 0; i < 4; i++ {
		m.Mine("session cache warm up complete", now)
	}
	smallId, _ := m.Mine("session token refresh for admin", now)
	assert.NotEqual(t, bigId, smallId)

	// Scores 3/5 against both templates; the bigger one wins.
	matchedId, isNew := m.Mine("session cache warm for admin", now)
	assert.False(t, isNew)
	assert.Equal(t, bigId, matchedId)
}

func TestMine_ConcurrentFirstSightCreatesOneTemplate(t *testing.T) {
	m := newTestMiner()
	now := time.Now().UTC()

	const workers = 32
	ids := make([]string, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			ids[i], _ = m.Mine("disk pressure on volume var", now)
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	template, _ := m.Template(ids[0])
	assert.Equal(t, int64(workers), template.Count)
}

func TestMine_ConcurrentGeneralizationSharesOneTemplate(t *testing.T) {
	m := newTestMiner()
	now := time.Now().UTC()

	seedId, _ := m.Mine("User alice logged in", now)

	// Every variant generalizes the user position while other goroutines are
	// still matching against it.
	const workers = 16
	const perWorker = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	ids := make([]string, workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				ids[i], _ = m.Mine(fmt.Sprintf("User u%d-%d logged in", i, j), now)
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, seedId, id)
	}
	template, ok := m.Template(seedId)
	assert.True(t, ok)
	assert.Equal(t, "User <STR> logged in", template.Pattern)
	assert.Equal(t, int64(workers*perWorker+1), template.Count)
}

func TestMine_BucketsRollOver(t *testing.T) {
	m := NewTemplateMiner(Config{BucketWidth: time.Hour, MaxBuckets: 4}, nil, zap.NewNop())
	start := time.Date(2024, 6, 1, 0, 15, 0, 0, time.UTC)

	var id string
	for hour := 0; hour < 6; hour++ {
		id, _ = m.Mine("heartbeat from scheduler", start.Add(time.Duration(hour)*time.Hour))
	}

	template, _ := m.Template(id)
	assert.Len(t, template.RecentCounts, 4)
	assert.Equal(t, int64(6), template.Count)
	assert.Equal(t, start.Add(5*time.Hour).Truncate(time.Hour), template.RecentCounts[3].Start)
}

func TestSnapshot_OrderedByCount(t *testing.T) {
	m := newTestMiner()
	now := time.Now().UTC()

	m.Mine("rare condition observed", now)
	for i := 0; i < 5; i++ {
		m.Mine("frequent heartbeat tick", now)
	}

	templates := m.Snapshot()
	assert.Len(t, templates, 2)
	assert.Equal(t, int64(5), templates[0].Count)
	assert.Equal(t, "frequent heartbeat tick", templates[0].Pattern)
}

func TestThresholdClassifier(t *testing.T) {
	classifier := NewThresholdClassifier(1.5, 3.0)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	buckets := func(counts ...int64) []model.BucketCount {
		out := make([]model.BucketCount, len(counts))
		for i, count := range counts {
			out[i] = model.BucketCount{Start: base.Add(time.Duration(i) * time.Hour), Count: count}
		}
		return out
	}

	t.Run("Stable with flat history", func(t *testing.T) {
		trend, anomaly := classifier.Classify(buckets(10, 10, 10, 10))
		assert.Equal(t, model.TrendStable, trend)
		assert.False(t, anomaly)
	})

	t.Run("Increasing when recent complete bucket grows", func(t *testing.T) {
		trend, _ := classifier.Classify(buckets(10, 20, 5))
		assert.Equal(t, model.TrendIncreasing, trend)
	})

	t.Run("Decreasing when recent complete bucket shrinks", func(t *testing.T) {
		trend, _ := classifier.Classify(buckets(30, 10, 5))
		assert.Equal(t, model.TrendDecreasing, trend)
	})

	t.Run("Anomaly on current bucket spike", func(t *testing.T) {
		_, anomaly := classifier.Classify(buckets(10, 12, 11, 500))
		assert.True(t, anomaly)
	})

	t.Run("Too little history is never anomalous", func(t *testing.T) {
		_, anomaly := classifier.Classify(buckets(1, 500))
		assert.False(t, anomaly)
	})
}
