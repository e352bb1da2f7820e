package model

import "encoding/json"

// Structs for parsing the Elasticsearch response
type EsResponse struct {
	Took         int                        `json:"took"`
	TimedOut     bool                       `json:"timed_out"`
	Shards       ShardInfo                  `json:"_shards"`
	Hits         Hits                       `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

type ShardInfo struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

type Hits struct {
	Total    Total       `json:"total"`
	MaxScore float64     `json:"max_score"`
	HitArray []HitSource `json:"hits"`
}

type Total struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

type HitSource struct {
	Index  string                 `json:"_index"`
	ID     string                 `json:"_id"`
	Score  float64                `json:"_score"`
	Source map[string]interface{} `json:"_source"`
	Sort   []interface{}          `json:"sort"`
}

type CountResponse struct {
	Count  int64     `json:"count"`
	Shards ShardInfo `json:"_shards"`
}

// TermsAggregation parses the buckets of a terms or date_histogram
// aggregation.
type TermsAggregation struct {
	Buckets []TermsBucket `json:"buckets"`
}

type TermsBucket struct {
	Key         interface{} `json:"key"`
	KeyAsString string      `json:"key_as_string"`
	DocCount    int64       `json:"doc_count"`
}

// SingleValueAggregation parses value_count / cardinality style results.
type SingleValueAggregation struct {
	Value float64 `json:"value"`
}

// FilterAggregation parses a filter aggregation's doc count.
type FilterAggregation struct {
	DocCount int64 `json:"doc_count"`
}
