package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/logsift/logsift/internal/db/elasticsearch/bootstrapper"
	"github.com/logsift/logsift/internal/db/elasticsearch/client"
	esModel "github.com/logsift/logsift/internal/db/elasticsearch/model"
	logModel "github.com/logsift/logsift/internal/logs/model"
	"go.uber.org/zap"
)

const statsTimeout = 15 * time.Second

// StatsService computes read-side rollups. A snapshot is derived entirely
// from the store; nothing here mutates state.
type StatsService interface {
	// Snapshot aggregates either the whole store (fileId nil) or one file.
	Snapshot(ctx context.Context, fileId *string) (StatsSnapshot, error)
	// Templates lists stored templates ordered by count descending.
	Templates(ctx context.Context, limit int) ([]logModel.Template, error)
}

type StatsServiceImpl struct {
	client client.SiftClient
	logger *zap.Logger
}

func NewStatsServiceImpl(siftClient client.SiftClient, logger *zap.Logger) *StatsServiceImpl {
	return &StatsServiceImpl{
		client: siftClient,
		logger: logger,
	}
}

func (s *StatsServiceImpl) Snapshot(ctx context.Context, fileId *string) (StatsSnapshot, error) {
	statsCtx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	queryBody, err := json.Marshal(buildStatsQuery(fileId))
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("failed to marshal stats query: %w", err)
	}
	aggregations, err := s.client.Aggregate(statsCtx, string(queryBody), []string{bootstrapper.LogIndexName})
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("failed to aggregate log index: %w", err)
	}

	snapshot := StatsSnapshot{
		LevelDistribution:   []BucketStat{},
		LogTypeDistribution: []BucketStat{},
		TopSources:          []BucketStat{},
		HourlyHistogram:     []HourBucket{},
		TopTemplates:        []TemplateStat{},
	}

	snapshot.LevelDistribution, err = parseTerms(aggregations, "levels")
	if err != nil {
		return StatsSnapshot{}, err
	}
	snapshot.LogTypeDistribution, err = parseTerms(aggregations, "log_types")
	if err != nil {
		return StatsSnapshot{}, err
	}
	snapshot.TopSources, err = parseTerms(aggregations, "sources")
	if err != nil {
		return StatsSnapshot{}, err
	}
	snapshot.HourlyHistogram, err = parseHourly(aggregations)
	if err != nil {
		return StatsSnapshot{}, err
	}

	snapshot.TotalLogs, err = parseSingleValue(aggregations, "total")
	if err != nil {
		return StatsSnapshot{}, err
	}

	errorCount, err := parseFilterCount(aggregations, "errors")
	if err != nil {
		return StatsSnapshot{}, err
	}
	if snapshot.TotalLogs > 0 {
		snapshot.ErrorRate = float64(errorCount) / float64(snapshot.TotalLogs) * 100
	}

	withNetwork, err := parseFilterCount(aggregations, "with_network")
	if err != nil {
		return StatsSnapshot{}, err
	}
	snapshot.NetworkCoverage = NetworkCoverage{
		WithNetworkInfo:    withNetwork,
		WithoutNetworkInfo: snapshot.TotalLogs - withNetwork,
	}

	fileCount, err := parseSingleValue(aggregations, "files")
	if err != nil {
		return StatsSnapshot{}, err
	}
	snapshot.TotalFiles = fileCount

	if err := s.addTemplateStats(statsCtx, &snapshot); err != nil {
		return StatsSnapshot{}, err
	}
	return snapshot, nil
}

func (s *StatsServiceImpl) addTemplateStats(ctx context.Context, snapshot *StatsSnapshot) error {
	total, err := s.client.Count(
		ctx,
		`{"query":{"match_all":{}}}`,
		[]string{bootstrapper.TemplateIndexName},
	)
	if err != nil {
		return fmt.Errorf("failed to count templates: %w", err)
	}
	snapshot.TotalTemplates = total

	queryBody, err := json.Marshal(buildTopTemplatesQuery())
	if err != nil {
		return fmt.Errorf("failed to marshal top templates query: %w", err)
	}
	size := topTemplatesSize
	result, err := s.client.Search(ctx, string(queryBody), []string{bootstrapper.TemplateIndexName}, &size)
	if err != nil {
		return fmt.Errorf("failed to search templates: %w", err)
	}
	for _, hit := range result.Hits {
		stat := TemplateStat{}
		if id, ok := hit["_id"].(string); ok {
			stat.TemplateId = id
		}
		if pattern, ok := hit["pattern"].(string); ok {
			stat.Pattern = pattern
		}
		if count, ok := hit["count"].(float64); ok {
			stat.Count = int64(count)
		}
		snapshot.TopTemplates = append(snapshot.TopTemplates, stat)
	}
	return nil
}

func parseTerms(aggregations map[string]json.RawMessage, name string) ([]BucketStat, error) {
	raw, ok := aggregations[name]
	if !ok {
		return []BucketStat{}, nil
	}
	var parsed esModel.TermsAggregation
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse %s aggregation: %w", name, err)
	}
	buckets := make([]BucketStat, 0, len(parsed.Buckets))
	for _, bucket := range parsed.Buckets {
		key, ok := bucket.Key.(string)
		if !ok {
			key = fmt.Sprintf("%v", bucket.Key)
		}
		buckets = append(buckets, BucketStat{Key: key, Count: bucket.DocCount})
	}
	return buckets, nil
}

func parseHourly(aggregations map[string]json.RawMessage) ([]HourBucket, error) {
	raw, ok := aggregations["hourly"]
	if !ok {
		return []HourBucket{}, nil
	}
	var parsed esModel.TermsAggregation
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse hourly aggregation: %w", err)
	}
	buckets := make([]HourBucket, 0, len(parsed.Buckets))
	for _, bucket := range parsed.Buckets {
		millis, ok := bucket.Key.(float64)
		if !ok {
			return nil, fmt.Errorf("unexpected hourly bucket key %v", bucket.Key)
		}
		buckets = append(buckets, HourBucket{
			Hour:  time.UnixMilli(int64(millis)).UTC(),
			Count: bucket.DocCount,
		})
	}
	return buckets, nil
}

func parseFilterCount(aggregations map[string]json.RawMessage, name string) (int64, error) {
	raw, ok := aggregations[name]
	if !ok {
		return 0, nil
	}
	var parsed esModel.FilterAggregation
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse %s aggregation: %w", name, err)
	}
	return parsed.DocCount, nil
}

func parseSingleValue(aggregations map[string]json.RawMessage, name string) (int64, error) {
	raw, ok := aggregations[name]
	if !ok {
		return 0, nil
	}
	var parsed esModel.SingleValueAggregation
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse %s aggregation: %w", name, err)
	}
	return int64(parsed.Value), nil
}
