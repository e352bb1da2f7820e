package tail

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/logsift/logsift/internal/collector/model"
	"github.com/logsift/logsift/internal/collector/queue"
	"go.uber.org/zap"
)

const defaultRescanInterval = 5 * time.Second

// Source tails every file matched by a set of glob patterns and feeds the
// resulting lines into the collector queue. The globs are rescanned on an
// interval so files created after startup are picked up.
type Source struct {
	globs          []string
	rescanInterval time.Duration
	pollInterval   time.Duration
	queue          *queue.Queue
	store          CheckpointStore

	mu       sync.Mutex
	watchers map[string]*fileWatcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *zap.Logger
}

type SourceConfig struct {
	Globs          []string
	RescanInterval time.Duration
	PollInterval   time.Duration
}

func NewSource(
	config SourceConfig,
	eventQueue *queue.Queue,
	store CheckpointStore,
	logger *zap.Logger,
) (*Source, error) {
	if len(config.Globs) == 0 {
		return nil, errors.New("tail source requires at least one glob pattern")
	}
	for _, glob := range config.Globs {
		if _, err := filepath.Match(glob, ""); err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", glob, err)
		}
	}
	if config.RescanInterval <= 0 {
		config.RescanInterval = defaultRescanInterval
	}
	if store == nil {
		store = NopCheckpointStore{}
	}
	return &Source{
		globs:          config.Globs,
		rescanInterval: config.RescanInterval,
		pollInterval:   config.PollInterval,
		queue:          eventQueue,
		store:          store,
		watchers:       make(map[string]*fileWatcher),
		logger:         logger,
	}, nil
}

func (s *Source) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go s.rescanLoop()
	s.logger.Info(
		"Tail source started",
		zap.Strings("globs", s.globs),
		zap.Duration("rescan_interval", s.rescanInterval),
	)
}

func (s *Source) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	for _, watcher := range s.watchers {
		watcher.stop()
	}
	s.mu.Unlock()

	if err := s.store.Close(); err != nil {
		s.logger.Warn("Failed to close checkpoint store", zap.Error(err))
	}
	s.logger.Info("Tail source stopped")
}

func (s *Source) rescanLoop() {
	defer s.wg.Done()

	s.rescan()

	ticker := time.NewTicker(s.rescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.rescan()
		}
	}
}

func (s *Source) rescan() {
	for _, glob := range s.globs {
		matches, err := filepath.Glob(glob)
		if err != nil {
			s.logger.Warn("Failed to expand glob pattern", zap.String("glob", glob), zap.Error(err))
			continue
		}
		for _, path := range matches {
			s.ensureWatcher(path)
		}
	}
}

func (s *Source) ensureWatcher(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.watchers[path]; exists {
		return
	}

	watcher := newFileWatcher(path, s.publish, s.store, s.pollInterval, s.logger)
	s.watchers[path] = watcher
	s.logger.Debug("Created file watcher", zap.String("path", path))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := watcher.watch(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("File watcher failed", zap.String("path", path), zap.Error(err))
		}
		s.mu.Lock()
		delete(s.watchers, path)
		s.mu.Unlock()
	}()
}

func (s *Source) publish(event model.RawEvent) {
	if err := s.queue.Enqueue(s.ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("Failed to enqueue tailed line", zap.Error(err))
	}
}
