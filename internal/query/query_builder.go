package query

import (
	"strings"
	"time"
)

// escapeWildcard neutralizes pattern metacharacters so a filter value is
// always matched literally.
var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(value string) string {
	return wildcardEscaper.Replace(value)
}

// buildLogQuery renders a validated query as an Elasticsearch bool query with
// sort and pagination. All filters land in the bool filter context; scoring
// is irrelevant here.
func buildLogQuery(validated validatedQuery) map[string]interface{} {
	request := validated.request
	var filters []map[string]interface{}

	term := func(field string, value interface{}) {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{field: value},
		})
	}

	if request.TemplateId != nil {
		term("template_id", *request.TemplateId)
	}
	if request.Level != nil {
		term("level", *request.Level)
	}
	if request.Source != nil {
		term("source", *request.Source)
	}
	if request.FileId != nil {
		term("file_id", *request.FileId)
	}
	if request.LogType != nil {
		term("log_type", *request.LogType)
	}
	if request.Protocol != nil {
		term("network_info.protocol", *request.Protocol)
	}

	if request.MessageContains != nil {
		filters = append(filters, map[string]interface{}{
			"wildcard": map[string]interface{}{
				"message.raw": map[string]interface{}{
					"value":            "*" + escapeWildcard(*request.MessageContains) + "*",
					"case_insensitive": true,
				},
			},
		})
	}

	if request.IPAddress != nil {
		filters = append(filters, map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{"term": map[string]interface{}{"network_info.ip_address": *request.IPAddress}},
					{"term": map[string]interface{}{"network_info.src_ip": *request.IPAddress}},
					{"term": map[string]interface{}{"network_info.dst_ip": *request.IPAddress}},
				},
				"minimum_should_match": 1,
			},
		})
	}

	if request.HasNetworkInfo != nil {
		exists := map[string]interface{}{
			"exists": map[string]interface{}{"field": "network_info"},
		}
		if *request.HasNetworkInfo {
			filters = append(filters, exists)
		} else {
			filters = append(filters, map[string]interface{}{
				"bool": map[string]interface{}{"must_not": exists},
			})
		}
	}

	if request.StartTime != nil || request.EndTime != nil {
		timeRange := map[string]interface{}{}
		if request.StartTime != nil {
			timeRange["gte"] = request.StartTime.UTC().Format(time.RFC3339Nano)
		}
		if request.EndTime != nil {
			timeRange["lte"] = request.EndTime.UTC().Format(time.RFC3339Nano)
		}
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"timestamp": timeRange},
		})
	}

	boolQuery := map[string]interface{}{}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	} else {
		boolQuery["must"] = []map[string]interface{}{
			{"match_all": map[string]interface{}{}},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []map[string]interface{}{
			{validated.sortField: map[string]interface{}{"order": validated.sortOrder}},
			{"fingerprint": map[string]interface{}{"order": "asc"}},
		},
		"from":             validated.offset,
		"size":             validated.limit,
		"track_total_hits": true,
	}
}
