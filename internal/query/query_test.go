package query

import (
	"context"
	"testing"
	"time"

	"github.com/logsift/logsift/internal/db/elasticsearch/client"
	"github.com/logsift/logsift/internal/logs/model"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func stringPtr(s string) *string { return &s }
func intPtr(i int) *int          { return &i }
func boolPtr(b bool) *bool       { return &b }

func TestValidate_Defaults(t *testing.T) {
	validated, err := validate(LogQueryRequest{})
	assert.NoError(t, err)
	assert.Equal(t, DefaultLimit, validated.limit)
	assert.Equal(t, 0, validated.offset)
	assert.Equal(t, "timestamp", validated.sortField)
	assert.Equal(t, "desc", validated.sortOrder)
}

func TestValidate_LimitSilentlyCapped(t *testing.T) {
	validated, err := validate(LogQueryRequest{Limit: intPtr(50000)})
	assert.NoError(t, err)
	assert.Equal(t, MaxLimit, validated.limit)
}

func TestValidate_Rejections(t *testing.T) {
	start := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		request LogQueryRequest
	}{
		{"negative limit", LogQueryRequest{Limit: intPtr(-1)}},
		{"negative offset", LogQueryRequest{Offset: intPtr(-5)}},
		{"unknown sort field", LogQueryRequest{SortBy: stringPtr("message")}},
		{"unknown sort order", LogQueryRequest{SortOrder: stringPtr("sideways")}},
		{"inverted time range", LogQueryRequest{StartTime: &start, EndTime: &end}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := validate(test.request)
			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestValidate_SortByFileMapsToFileId(t *testing.T) {
	validated, err := validate(LogQueryRequest{SortBy: stringPtr("file"), SortOrder: stringPtr("ASC")})
	assert.NoError(t, err)
	assert.Equal(t, "file_id", validated.sortField)
	assert.Equal(t, "asc", validated.sortOrder)
}

func TestBuildLogQuery_ConjunctiveFilters(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	validated, err := validate(LogQueryRequest{
		Level:           stringPtr("error"),
		Source:          stringPtr("web01"),
		MessageContains: stringPtr("connection failed"),
		StartTime:       &start,
		HasNetworkInfo:  boolPtr(true),
		Offset:          intPtr(200),
	})
	assert.NoError(t, err)

	queryMap := buildLogQuery(validated)
	boolQuery := queryMap["query"].(map[string]interface{})["bool"].(map[string]interface{})
	filters := boolQuery["filter"].([]map[string]interface{})
	assert.Len(t, filters, 5)

	// Level filter was canonicalized to upper case.
	assert.Contains(t, filters, map[string]interface{}{
		"term": map[string]interface{}{"level": "ERROR"},
	})
	assert.Contains(t, filters, map[string]interface{}{
		"wildcard": map[string]interface{}{
			"message.raw": map[string]interface{}{
				"value":            "*connection failed*",
				"case_insensitive": true,
			},
		},
	})

	assert.Equal(t, 200, queryMap["from"])
	assert.Equal(t, DefaultLimit, queryMap["size"])
	assert.Equal(t, true, queryMap["track_total_hits"])

	sorts := queryMap["sort"].([]map[string]interface{})
	assert.Len(t, sorts, 2)
	assert.Contains(t, sorts[0], "timestamp")
	assert.Contains(t, sorts[1], "fingerprint")
}

func TestBuildLogQuery_MessageContainsEscapesMetacharacters(t *testing.T) {
	validated, err := validate(LogQueryRequest{MessageContains: stringPtr(`50% of *.tmp?`)})
	assert.NoError(t, err)

	queryMap := buildLogQuery(validated)
	boolQuery := queryMap["query"].(map[string]interface{})["bool"].(map[string]interface{})
	filters := boolQuery["filter"].([]map[string]interface{})
	assert.Contains(t, filters, map[string]interface{}{
		"wildcard": map[string]interface{}{
			"message.raw": map[string]interface{}{
				"value":            `*50% of \*.tmp\?*`,
				"case_insensitive": true,
			},
		},
	})
}

func TestBuildLogQuery_NoFiltersMatchesAll(t *testing.T) {
	validated, err := validate(LogQueryRequest{})
	assert.NoError(t, err)

	queryMap := buildLogQuery(validated)
	boolQuery := queryMap["query"].(map[string]interface{})["bool"].(map[string]interface{})
	_, hasFilter := boolQuery["filter"]
	assert.False(t, hasFilter)
	assert.NotNil(t, boolQuery["must"])
}

type fakeSearchClient struct {
	client.SiftClient
	result    client.SearchResult
	err       error
	lastQuery string
}

func (f *fakeSearchClient) Search(
	ctx context.Context,
	query string,
	indices []string,
	queryResultSize *int,
) (client.SearchResult, error) {
	f.lastQuery = query
	if f.err != nil {
		return client.SearchResult{}, f.err
	}
	return f.result, nil
}

func TestQuery_DecodesHitsAndTotal(t *testing.T) {
	fake := &fakeSearchClient{
		result: client.SearchResult{
			Hits: []map[string]interface{}{
				{
					"_id":         "fp-1",
					"fingerprint": "fp-1",
					"timestamp":   "2024-05-01T12:00:00Z",
					"level":       "ERROR",
					"message":     "Database connection failed: timeout after 30s",
					"source":      "api",
				},
			},
			TotalCount: 41,
		},
	}
	s := NewQueryServiceImpl(fake, nil, zap.NewNop())

	response, err := s.Query(context.Background(), LogQueryRequest{Level: stringPtr("ERROR")})
	assert.NoError(t, err)
	assert.Equal(t, int64(41), response.TotalCount)
	assert.Len(t, response.Logs, 1)
	assert.Equal(t, "fp-1", response.Logs[0].Id)
	assert.Equal(t, model.ErrorLevel, response.Logs[0].Level)
	assert.Contains(t, fake.lastQuery, `"level":"ERROR"`)
}

func TestQuery_EmptyResultIsNotAnError(t *testing.T) {
	s := NewQueryServiceImpl(&fakeSearchClient{}, nil, zap.NewNop())

	response, err := s.Query(context.Background(), LogQueryRequest{Source: stringPtr("ghost")})
	assert.NoError(t, err)
	assert.Empty(t, response.Logs)
	assert.Equal(t, int64(0), response.TotalCount)
}

func TestQuery_ReportsTimeout(t *testing.T) {
	fake := &fakeSearchClient{err: context.DeadlineExceeded}
	s := NewQueryServiceImpl(fake, nil, zap.NewNop())

	_, err := s.Query(context.Background(), LogQueryRequest{})
	var timeoutErr *TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)

	fake.err = nil
	fake.result = client.SearchResult{TimedOut: true}
	_, err = s.Query(context.Background(), LogQueryRequest{})
	assert.ErrorAs(t, err, &timeoutErr)
}
