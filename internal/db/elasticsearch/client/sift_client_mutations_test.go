package client

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
)

type stubTransport struct {
	status int
	body   string
}

func (s *stubTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: s.status,
		Header: http.Header{
			"X-Elastic-Product": []string{"Elasticsearch"},
			"Content-Type":      []string{"application/json"},
		},
		Body: io.NopCloser(strings.NewReader(s.body)),
	}, nil
}

func newStubClient(t *testing.T, status int, body string) *SiftClientImpl {
	t.Helper()
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://stub:9200"},
		Transport: &stubTransport{status: status, body: body},
	})
	assert.NoError(t, err)
	return NewSiftClientImpl(es, Immediate)
}

func TestBulkIndex_SurfacesPerItemRejections(t *testing.T) {
	// The bulk endpoint answers 200 even when single actions failed.
	body := `{"took":3,"errors":true,"items":[
		{"index":{"_id":"a","status":201}},
		{"index":{"_id":"b","status":400,"error":{"type":"mapper_parsing_exception",
			"reason":"failed to parse field [network_info.src_ip] of type [ip]"}}}]}`
	c := newStubClient(t, http.StatusOK, body)

	err := c.BulkIndex(
		context.Background(),
		nil,
		[]DocumentMap{{"message": "ok"}, {"message": "bad"}},
		"logs",
	)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
	assert.Contains(t, err.Error(), "rejected 1 of 2")
}

func TestBulkIndex_CleanResponseIsNotAnError(t *testing.T) {
	body := `{"took":1,"errors":false,"items":[{"index":{"_id":"a","status":201}}]}`
	c := newStubClient(t, http.StatusOK, body)

	err := c.BulkIndex(context.Background(), nil, []DocumentMap{{"message": "ok"}}, "logs")
	assert.NoError(t, err)
}
