package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logsift/logsift/internal/logs/model"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Config carries the delivery sink knobs. Zero values fall back to the
// defaults applied in NewSink.
type Config struct {
	URL           string
	BatchSize     int
	BatchDelay    time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	Timeout       time.Duration
	BufferSize    int
	AppendLogPath string
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = 2 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	return c
}

// Sink batches normalized entries and POSTs them as JSON lines to a remote
// ingest endpoint. Delivery is best effort: a batch that still fails after
// the retry limit is dropped and counted, never re-queued, so a dead remote
// cannot stall the collector. Every batch is appended to a local file before
// the first send attempt when an append log is configured.
type Sink struct {
	config Config
	client *fasthttp.Client

	input chan model.LogEntry

	batchMu sync.Mutex
	batch   []model.LogEntry

	appendMu  sync.Mutex
	appendLog *os.File

	done chan struct{}
	wg   sync.WaitGroup

	totalEntries atomic.Uint64
	totalBatches atomic.Uint64
	lostBatches  atomic.Uint64
	droppedInput atomic.Uint64

	logger *zap.Logger
}

func NewSink(config Config, logger *zap.Logger) (*Sink, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("delivery sink requires a target URL")
	}
	config = config.withDefaults()

	s := &Sink{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     10,
			MaxIdleConnDuration: 10 * time.Second,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
		},
		input:  make(chan model.LogEntry, config.BufferSize),
		batch:  make([]model.LogEntry, 0, config.BatchSize),
		done:   make(chan struct{}),
		logger: logger,
	}

	if config.AppendLogPath != "" {
		file, err := os.OpenFile(config.AppendLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open sink append log: %w", err)
		}
		s.appendLog = file
	}
	return s, nil
}

// Offer hands an entry to the sink without blocking. It reports whether the
// entry was accepted; a full buffer drops the entry and counts it.
func (s *Sink) Offer(entry model.LogEntry) bool {
	select {
	case s.input <- entry:
		return true
	default:
		s.droppedInput.Add(1)
		return false
	}
}

func (s *Sink) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.processLoop(ctx)
	go s.flushLoop(ctx)
	s.logger.Info(
		"Delivery sink started",
		zap.String("url", s.config.URL),
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("max_retries", s.config.MaxRetries),
	)
}

func (s *Sink) Stop() {
	close(s.done)
	s.wg.Wait()

	s.batchMu.Lock()
	remaining := s.batch
	s.batch = nil
	s.batchMu.Unlock()

	// Entries offered but not yet picked up by the process loop are still
	// sitting in the buffer; they go out with the final batch.
drain:
	for {
		select {
		case entry := <-s.input:
			s.totalEntries.Add(1)
			remaining = append(remaining, entry)
		default:
			break drain
		}
	}
	if len(remaining) > 0 {
		s.sendBatch(remaining)
	}

	if s.appendLog != nil {
		if err := s.appendLog.Close(); err != nil {
			s.logger.Warn("Failed to close sink append log", zap.Error(err))
		}
	}
	s.logger.Info(
		"Delivery sink stopped",
		zap.Uint64("total_batches", s.totalBatches.Load()),
		zap.Uint64("lost_batches", s.lostBatches.Load()),
	)
}

func (s *Sink) LostBatches() uint64  { return s.lostBatches.Load() }
func (s *Sink) TotalBatches() uint64 { return s.totalBatches.Load() }
func (s *Sink) DroppedInput() uint64 { return s.droppedInput.Load() }

func (s *Sink) processLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case entry := <-s.input:
			s.totalEntries.Add(1)
			s.batchMu.Lock()
			s.batch = append(s.batch, entry)
			if len(s.batch) >= s.config.BatchSize {
				batch := s.batch
				s.batch = make([]model.LogEntry, 0, s.config.BatchSize)
				s.batchMu.Unlock()
				s.sendBatch(batch)
			} else {
				s.batchMu.Unlock()
			}
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *Sink) flushLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.BatchDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.batchMu.Lock()
			if len(s.batch) == 0 {
				s.batchMu.Unlock()
				continue
			}
			batch := s.batch
			s.batch = make([]model.LogEntry, 0, s.config.BatchSize)
			s.batchMu.Unlock()
			s.sendBatch(batch)
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *Sink) sendBatch(batch []model.LogEntry) {
	body, err := encodeBatch(batch)
	if err != nil {
		s.logger.Error("Failed to encode batch", zap.Int("batch_size", len(batch)), zap.Error(err))
		s.lostBatches.Add(1)
		return
	}
	s.totalBatches.Add(1)
	s.writeAppendLog(body)

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.config.RetryDelay)
		}

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		req.SetRequestURI(s.config.URL)
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.SetContentType("application/json")
		req.SetBody(body)

		err := s.client.DoTimeout(req, resp, s.config.Timeout)
		statusCode := resp.StatusCode()
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)

		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			s.logger.Warn(
				"Batch delivery attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}
		if statusCode >= 200 && statusCode < 300 {
			s.logger.Debug(
				"Batch delivered",
				zap.Int("batch_size", len(batch)),
				zap.Int("status_code", statusCode),
				zap.Int("attempt", attempt+1),
			)
			return
		}
		lastErr = fmt.Errorf("server returned status %d", statusCode)
		// 4xx means the batch itself is unacceptable; retrying cannot help.
		if statusCode >= 400 && statusCode < 500 {
			break
		}
		s.logger.Warn(
			"Batch rejected with retryable status",
			zap.Int("attempt", attempt+1),
			zap.Int("status_code", statusCode),
		)
	}

	s.lostBatches.Add(1)
	s.logger.Error(
		"Dropping batch after exhausting retries",
		zap.Int("batch_size", len(batch)),
		zap.Int("max_retries", s.config.MaxRetries),
		zap.Error(lastErr),
	)
}

func (s *Sink) writeAppendLog(body []byte) {
	if s.appendLog == nil {
		return
	}
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	if _, err := s.appendLog.Write(body); err != nil {
		s.logger.Warn("Failed to write sink append log", zap.Error(err))
	}
}

// encodeBatch renders entries as JSON lines, one entry per line.
func encodeBatch(batch []model.LogEntry) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	for _, entry := range batch {
		if err := encoder.Encode(entry); err != nil {
			return nil, fmt.Errorf("failed to encode entry: %w", err)
		}
	}
	return buffer.Bytes(), nil
}
