package stats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/logsift/logsift/internal/db/elasticsearch/bootstrapper"
	"github.com/logsift/logsift/internal/logs/model"
)

const maxTemplateListSize = 1000

// Templates lists stored templates ordered by count descending. It backs the
// template listing endpoint, so it returns the full documents rather than
// the snapshot's trimmed-down stats.
func (s *StatsServiceImpl) Templates(ctx context.Context, limit int) ([]model.Template, error) {
	if limit <= 0 || limit > maxTemplateListSize {
		limit = maxTemplateListSize
	}

	listCtx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	queryBody, err := json.Marshal(buildTemplateListQuery(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template list query: %w", err)
	}
	result, err := s.client.Search(listCtx, string(queryBody), []string{bootstrapper.TemplateIndexName}, &limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	templates := make([]model.Template, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, _ := hit["_id"].(string)
		delete(hit, "_id")
		data, err := json.Marshal(hit)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal template hit: %w", err)
		}
		var template model.Template
		if err := json.Unmarshal(data, &template); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template hit: %w", err)
		}
		template.TemplateId = id
		templates = append(templates, template)
	}
	return templates, nil
}

func buildTemplateListQuery(limit int) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort": []map[string]interface{}{
			{"count": map[string]interface{}{"order": "desc"}},
			{"pattern.raw": map[string]interface{}{"order": "asc"}},
		},
		"size": limit,
	}
}
