package store

import (
	"context"
	"fmt"
	"time"

	"github.com/logsift/logsift/internal/cache"
	"github.com/logsift/logsift/internal/db/elasticsearch/bootstrapper"
	"github.com/logsift/logsift/internal/db/elasticsearch/client"
	"github.com/logsift/logsift/internal/logs/model"
	"go.uber.org/zap"
)

const putTimeout = 10 * time.Second

// LogStore persists normalized entries. Put is idempotent: every entry is
// indexed under its fingerprint, so re-processing a batch cannot duplicate
// documents.
type LogStore interface {
	Put(ctx context.Context, entries []model.LogEntry) error
}

type LogStoreImpl struct {
	client      client.SiftClient
	recentCache cache.RecentCache
	logger      *zap.Logger
}

func NewLogStoreImpl(
	siftClient client.SiftClient,
	recentCache cache.RecentCache,
	logger *zap.Logger,
) *LogStoreImpl {
	return &LogStoreImpl{
		client:      siftClient,
		recentCache: recentCache,
		logger:      logger,
	}
}

func (s *LogStoreImpl) Put(ctx context.Context, entries []model.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	toIndex := make([]model.LogEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Id == "" {
			entry.Id = Fingerprint(entry)
		}
		if s.recentCache != nil && s.recentCache.Seen(entry.Id) {
			continue
		}
		toIndex = append(toIndex, entry)
	}
	if len(toIndex) == 0 {
		s.logger.Debug("Skipping batch of already stored entries", zap.Int("batch_size", len(entries)))
		return nil
	}

	metaInfo, documentInfo, err := client.ToMetaAndDataMap(toIndex)
	if err != nil {
		return fmt.Errorf("failed to convert entries for bulk index: %w", err)
	}
	// Sorting cannot use _id, so the fingerprint is also stored as a field.
	for i, entry := range toIndex {
		documentInfo[i]["fingerprint"] = entry.Id
	}

	putCtx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()
	if err := s.client.BulkIndex(putCtx, metaInfo, documentInfo, bootstrapper.LogIndexName); err != nil {
		return fmt.Errorf("failed to bulk index log entries: %w", err)
	}

	if s.recentCache != nil {
		for _, entry := range toIndex {
			s.recentCache.MarkSeen(entry.Id)
			s.recentCache.Add(entry)
		}
	}
	return nil
}
