package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/logsift/logsift/internal/db/elasticsearch/model"
)

func (c *SiftClientImpl) Search(
	ctx context.Context,
	query string,
	indices []string,
	queryResultSize *int,
) (SearchResult, error) {
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(indices...),
		c.es.Search.WithBody(strings.NewReader(query)),
		c.es.Search.WithTrackTotalHits(true),
		c.es.Search.WithSize(getQuerySize(queryResultSize)),
	)
	if err != nil {
		return SearchResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return SearchResult{}, fmt.Errorf("failed to execute query: %s", res.String())
	}

	var esResponse model.EsResponse
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return SearchResult{}, fmt.Errorf("failed to decode response body: %w", err)
	}

	result := SearchResult{
		TotalCount: esResponse.Hits.Total.Value,
		TimedOut:   esResponse.TimedOut,
	}
	for _, hit := range esResponse.Hits.HitArray {
		source := hit.Source
		if source == nil {
			source = map[string]interface{}{}
		}
		source["_id"] = hit.ID
		result.Hits = append(result.Hits, source)
	}
	return result, nil
}

func (c *SiftClientImpl) Aggregate(
	ctx context.Context,
	query string,
	indices []string,
) (map[string]json.RawMessage, error) {
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(indices...),
		c.es.Search.WithBody(strings.NewReader(query)),
		c.es.Search.WithSize(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute aggregation: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("failed to execute aggregation: %s", res.String())
	}

	var esResponse model.EsResponse
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return esResponse.Aggregations, nil
}

func (c *SiftClientImpl) Count(
	ctx context.Context,
	query string,
	indices []string,
) (int64, error) {
	res, err := c.es.Count(
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(indices...),
		c.es.Count.WithBody(strings.NewReader(query)),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to execute count: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("failed to execute count: %s", res.String())
	}

	var countResponse model.CountResponse
	if err := json.NewDecoder(res.Body).Decode(&countResponse); err != nil {
		return 0, fmt.Errorf("failed to decode response body: %w", err)
	}
	return countResponse.Count, nil
}

func getQuerySize(querySize *int) int {
	if querySize == nil || *querySize < 0 {
		return SearchResultSize
	}
	return *querySize
}
