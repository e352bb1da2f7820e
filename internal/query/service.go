package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/logsift/logsift/internal/cache"
	"github.com/logsift/logsift/internal/db/elasticsearch/bootstrapper"
	"github.com/logsift/logsift/internal/db/elasticsearch/client"
	"github.com/logsift/logsift/internal/logs/model"
	"go.uber.org/zap"
)

const queryTimeout = 10 * time.Second

const maxRecentLimit = 200

// TimeoutError marks a query that exceeded its time budget rather than a
// malformed or failed one.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("query timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

type QueryService interface {
	// Query applies every present filter conjunctively, sorts, paginates
	// and reports the total match count.
	Query(ctx context.Context, request LogQueryRequest) (LogQueryResponse, error)
	// Recent returns the bounded live-feed window in stable order.
	Recent(ctx context.Context, limit int) ([]model.LogEntry, error)
}

type QueryServiceImpl struct {
	client      client.SiftClient
	recentCache cache.RecentCache
	logger      *zap.Logger
}

func NewQueryServiceImpl(
	siftClient client.SiftClient,
	recentCache cache.RecentCache,
	logger *zap.Logger,
) *QueryServiceImpl {
	return &QueryServiceImpl{
		client:      siftClient,
		recentCache: recentCache,
		logger:      logger,
	}
}

func (s *QueryServiceImpl) Query(
	ctx context.Context,
	request LogQueryRequest,
) (LogQueryResponse, error) {
	validated, err := validate(request)
	if err != nil {
		return LogQueryResponse{}, err
	}

	queryBody, err := json.Marshal(buildLogQuery(validated))
	if err != nil {
		return LogQueryResponse{}, fmt.Errorf("failed to marshal query: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	size := validated.limit
	result, err := s.client.Search(queryCtx, string(queryBody), []string{bootstrapper.LogIndexName}, &size)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return LogQueryResponse{}, &TimeoutError{Err: err}
		}
		return LogQueryResponse{}, fmt.Errorf("failed to query log index: %w", err)
	}
	if result.TimedOut {
		return LogQueryResponse{}, &TimeoutError{Err: errors.New("search reported timed_out")}
	}

	logs, err := hitsToLogEntries(result.Hits)
	if err != nil {
		return LogQueryResponse{}, err
	}
	return LogQueryResponse{
		Logs:       logs,
		TotalCount: result.TotalCount,
	}, nil
}

func (s *QueryServiceImpl) Recent(ctx context.Context, limit int) ([]model.LogEntry, error) {
	if limit <= 0 || limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	if s.recentCache != nil {
		return s.recentCache.Recent(limit), nil
	}

	// Without a cache the recent feed falls back to a store query.
	order := "desc"
	sortBy := "timestamp"
	response, err := s.Query(ctx, LogQueryRequest{
		Limit:     &limit,
		SortBy:    &sortBy,
		SortOrder: &order,
	})
	if err != nil {
		return nil, err
	}
	return response.Logs, nil
}

func hitsToLogEntries(hits []map[string]interface{}) ([]model.LogEntry, error) {
	logs := make([]model.LogEntry, 0, len(hits))
	for _, hit := range hits {
		delete(hit, "fingerprint")
		data, err := json.Marshal(hit)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal hit: %w", err)
		}
		var entry model.LogEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal hit into log entry: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, nil
}
