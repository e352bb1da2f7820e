package client

import (
	"context"
	"encoding/json"

	"github.com/elastic/go-elasticsearch/v8"
)

const SearchResultSize = 100

type RefreshRate string

const (
	// Wait for the changes made by the request to be made visible by a refresh before replying.
	Wait RefreshRate = "wait_for"
	// Immediate Refresh the relevant primary and replica shards (not the whole index) immediately after the operation occurs.
	Immediate RefreshRate = "true"
	// Async Take no refresh related actions. The changes made by this request will be made visible at some point after the request returns.
	Async RefreshRate = "false"
)

// SearchResult carries the hits of one search together with the tracked
// total, which can exceed the number of returned hits when paginating.
type SearchResult struct {
	Hits       []map[string]interface{}
	TotalCount int64
	TimedOut   bool
}

type SiftClient interface {
	// BulkIndex indexes (inserts) multiple documents in the same index
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/docs-bulk.html
	BulkIndex(ctx context.Context, metaInfo []MetaMap, documentInfo []DocumentMap, index string) error
	// Index indexes (inserts) a single document in the index
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/docs-index_.html
	Index(ctx context.Context, metaInfo MetaMap, documentInfo DocumentMap, index string) error
	// Search searches for documents in the index
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/search-search.html
	// queryResultSize is the number of results to return, -1 for default
	Search(ctx context.Context, query string, indices []string, queryResultSize *int) (SearchResult, error)
	// Aggregate runs a size-0 search and returns the raw aggregation results
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/search-aggregations.html
	Aggregate(ctx context.Context, query string, indices []string) (map[string]json.RawMessage, error)
	// Upsert updates or inserts a document in the index using a script or upsert annotation
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/docs-update.html#upserts
	Upsert(ctx context.Context, upsertScript map[string]interface{}, index string, id string) error
	// Count counts the number of documents in the index matching the query
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/search-count.html
	Count(ctx context.Context, query string, indices []string) (int64, error)
}

type SiftClientImpl struct {
	es          *elasticsearch.Client
	refreshRate string
}

func NewSiftClientImpl(es *elasticsearch.Client, refreshRate RefreshRate) *SiftClientImpl {
	return &SiftClientImpl{es: es, refreshRate: string(refreshRate)}
}
