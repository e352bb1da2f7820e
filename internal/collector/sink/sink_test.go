package sink

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/logsift/logsift/internal/logs/model"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testEntries(messages ...string) []model.LogEntry {
	entries := make([]model.LogEntry, len(messages))
	for i, message := range messages {
		entries[i] = model.LogEntry{
			Timestamp: time.Date(2024, 5, 1, 12, 0, i, 0, time.UTC),
			Level:     model.InfoLevel,
			Message:   message,
			Source:    "test",
		}
	}
	return entries
}

func newTestSink(t *testing.T, config Config) *Sink {
	t.Helper()
	s, err := NewSink(config, zap.NewNop())
	assert.NoError(t, err)
	return s
}

func TestSendBatch_DeliversJSONLines(t *testing.T) {
	var received atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)
		received.Store(body.String())
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := newTestSink(t, Config{URL: server.URL, RetryDelay: time.Millisecond})
	s.sendBatch(testEntries("first", "second"))

	assert.Equal(t, uint64(0), s.LostBatches())
	assert.Equal(t, uint64(1), s.TotalBatches())

	body, _ := received.Load().(string)
	scanner := bufio.NewScanner(bytes.NewBufferString(body))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	assert.Len(t, lines, 2)

	var entry model.LogEntry
	assert.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "first", entry.Message)
}

func TestSendBatch_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := newTestSink(t, Config{URL: server.URL, MaxRetries: 3, RetryDelay: time.Millisecond})
	s.sendBatch(testEntries("retried"))

	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, uint64(0), s.LostBatches())
}

func TestSendBatch_CountsLostBatchOnExhaustion(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := newTestSink(t, Config{URL: server.URL, MaxRetries: 2, RetryDelay: time.Millisecond})
	s.sendBatch(testEntries("doomed"))

	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, uint64(1), s.LostBatches())
}

func TestSendBatch_ClientErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	s := newTestSink(t, Config{URL: server.URL, MaxRetries: 5, RetryDelay: time.Millisecond})
	s.sendBatch(testEntries("rejected"))

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, uint64(1), s.LostBatches())
}

func TestSendBatch_WritesAppendLogBeforeDelivery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	appendPath := filepath.Join(t.TempDir(), "delivery.jsonl")
	s := newTestSink(t, Config{
		URL:           server.URL,
		MaxRetries:    1,
		RetryDelay:    time.Millisecond,
		AppendLogPath: appendPath,
	})
	s.sendBatch(testEntries("kept locally"))

	// The batch was lost remotely but must survive in the append log.
	assert.Equal(t, uint64(1), s.LostBatches())
	content, err := os.ReadFile(appendPath)
	assert.NoError(t, err)
	assert.Contains(t, string(content), "kept locally")
}

func TestStop_DeliversEntriesStillInBuffer(t *testing.T) {
	var received atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)
		received.Store(body.String())
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := newTestSink(t, Config{URL: server.URL, RetryDelay: time.Millisecond})
	// Offered but never picked up by the process loop, which is not running.
	for _, entry := range testEntries("buffered one", "buffered two", "buffered three") {
		assert.True(t, s.Offer(entry))
	}
	s.Stop()

	assert.Equal(t, uint64(1), s.TotalBatches())
	assert.Equal(t, uint64(0), s.LostBatches())
	body, _ := received.Load().(string)
	assert.Contains(t, body, "buffered one")
	assert.Contains(t, body, "buffered two")
	assert.Contains(t, body, "buffered three")
}

func TestOffer_DropsWhenBufferFull(t *testing.T) {
	s := newTestSink(t, Config{URL: "http://localhost:0", BufferSize: 1})

	assert.True(t, s.Offer(model.LogEntry{Message: "fits"}))
	assert.False(t, s.Offer(model.LogEntry{Message: "overflow"}))
	assert.Equal(t, uint64(1), s.DroppedInput())
}
