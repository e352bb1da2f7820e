package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/logsift/logsift/internal/db/elasticsearch/bootstrapper"
	"github.com/logsift/logsift/internal/db/elasticsearch/client"
	"github.com/logsift/logsift/internal/logs/model"
	"go.uber.org/zap"
)

const upsertTimeout = 10 * time.Second

// TemplateStore mirrors the in-memory template index into Elasticsearch so
// the read side can list and aggregate templates. The miner's snapshot is
// authoritative; each sync overwrites the stored document wholesale.
type TemplateStore interface {
	Sync(ctx context.Context, templates []model.Template) error
}

type TemplateStoreImpl struct {
	client client.SiftClient
	logger *zap.Logger
}

func NewTemplateStoreImpl(siftClient client.SiftClient, logger *zap.Logger) *TemplateStoreImpl {
	return &TemplateStoreImpl{
		client: siftClient,
		logger: logger,
	}
}

func (s *TemplateStoreImpl) Sync(ctx context.Context, templates []model.Template) error {
	syncCtx, cancel := context.WithTimeout(ctx, upsertTimeout)
	defer cancel()

	for _, template := range templates {
		document, err := templateDocument(template)
		if err != nil {
			return err
		}
		upsert := map[string]interface{}{
			"doc":           document,
			"doc_as_upsert": true,
		}
		if err := s.client.Upsert(syncCtx, upsert, bootstrapper.TemplateIndexName, template.TemplateId); err != nil {
			return fmt.Errorf("failed to upsert template %s: %w", template.TemplateId, err)
		}
	}
	return nil
}

func templateDocument(template model.Template) (map[string]interface{}, error) {
	data, err := json.Marshal(template)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template %s: %w", template.TemplateId, err)
	}
	var document map[string]interface{}
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template %s: %w", template.TemplateId, err)
	}
	delete(document, "template_id")
	return document, nil
}
