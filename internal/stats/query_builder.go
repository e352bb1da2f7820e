package stats

const topSourcesSize = 10
const topTemplatesSize = 10
const distributionSize = 50

// buildStatsQuery renders the aggregation request for one scope. Terms
// aggregations order by count descending with a key tie-break so the bucket
// order is deterministic.
func buildStatsQuery(fileId *string) map[string]interface{} {
	terms := func(field string, size int) map[string]interface{} {
		return map[string]interface{}{
			"terms": map[string]interface{}{
				"field": field,
				"size":  size,
				"order": []map[string]interface{}{
					{"_count": "desc"},
					{"_key": "asc"},
				},
			},
		}
	}

	var query map[string]interface{}
	if fileId != nil {
		query = map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []map[string]interface{}{
					{"term": map[string]interface{}{"file_id": *fileId}},
				},
			},
		}
	} else {
		query = map[string]interface{}{"match_all": map[string]interface{}{}}
	}

	return map[string]interface{}{
		"size":  0,
		"query": query,
		"aggs": map[string]interface{}{
			// Scope total; the terms distributions are size-capped and may
			// not cover every document.
			"total": map[string]interface{}{
				"value_count": map[string]interface{}{"field": "fingerprint"},
			},
			"levels":    terms("level", distributionSize),
			"log_types": terms("log_type", distributionSize),
			"sources":   terms("source", topSourcesSize),
			"hourly": map[string]interface{}{
				"date_histogram": map[string]interface{}{
					"field":             "timestamp",
					"calendar_interval": "hour",
					"min_doc_count":     0,
				},
			},
			"errors": map[string]interface{}{
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"level": "ERROR"},
				},
			},
			"with_network": map[string]interface{}{
				"filter": map[string]interface{}{
					"exists": map[string]interface{}{"field": "network_info"},
				},
			},
			"files": map[string]interface{}{
				"cardinality": map[string]interface{}{"field": "file_id"},
			},
		},
	}
}

// buildTopTemplatesQuery lists the highest-count templates with a stable
// tie-break on pattern.
func buildTopTemplatesQuery() map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort": []map[string]interface{}{
			{"count": map[string]interface{}{"order": "desc"}},
			{"pattern.raw": map[string]interface{}{"order": "asc"}},
		},
		"size": topTemplatesSize,
	}
}
