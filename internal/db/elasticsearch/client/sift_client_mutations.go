package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

func (c *SiftClientImpl) BulkIndex(
	ctx context.Context,
	metaInfo []MetaMap,
	documentInfo []DocumentMap,
	index string,
) error {
	var buf bytes.Buffer
	for i, document := range documentInfo {
		var meta map[string]interface{}
		if metaInfo != nil && i < len(metaInfo) {
			meta = metaInfo[i]
		} else {
			// empty meta for bulk index
			meta = map[string]interface{}{"index": map[string]interface{}{}}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("error marshaling meta to bulk index: %w", err)
		}
		buf.Write(metaJSON)
		buf.WriteByte('\n')

		documentJSON, err := json.Marshal(document)
		if err != nil {
			return fmt.Errorf("error marshaling document to bulk index: %w", err)
		}
		buf.Write(documentJSON)
		buf.WriteByte('\n')
	}

	res, err := c.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithIndex(index),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithRefresh(c.refreshRate),
	)
	if err != nil {
		return fmt.Errorf("error bulk indexing: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	// The bulk endpoint answers 200 even when individual actions were
	// rejected; the per-item results carry the real outcome.
	var bulkResponse struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int             `json:"status"`
			Error  json.RawMessage `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResponse); err != nil {
		return fmt.Errorf("error decoding bulk response: %w", err)
	}
	if bulkResponse.Errors {
		failed := 0
		var firstError string
		for _, item := range bulkResponse.Items {
			for _, result := range item {
				if len(result.Error) == 0 {
					continue
				}
				failed++
				if firstError == "" {
					firstError = fmt.Sprintf("status %d: %s", result.Status, result.Error)
				}
			}
		}
		return fmt.Errorf("bulk index rejected %d of %d actions, first: %s",
			failed, len(bulkResponse.Items), firstError)
	}
	return nil
}

func (c *SiftClientImpl) Index(
	ctx context.Context,
	metaInfo MetaMap,
	documentInfo DocumentMap,
	index string,
) error {
	if metaInfo == nil {
		return c.BulkIndex(ctx, nil, []DocumentMap{documentInfo}, index)
	}
	return c.BulkIndex(ctx, []MetaMap{metaInfo}, []DocumentMap{documentInfo}, index)
}

func (c *SiftClientImpl) Upsert(
	ctx context.Context,
	upsertScript map[string]interface{},
	index string,
	id string,
) error {
	upsertJSON, err := json.Marshal(upsertScript)
	if err != nil {
		return fmt.Errorf("error marshaling upsert: %w", err)
	}

	res, err := c.es.Update(
		index, id,
		bytes.NewReader(upsertJSON),
		c.es.Update.WithContext(ctx),
		c.es.Update.WithRefresh(c.refreshRate),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert in Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("upsert error: %s", res.String())
	}
	return nil
}
