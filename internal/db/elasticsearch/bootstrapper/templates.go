package bootstrapper

const TemplateIndexName = "templates"

var templateIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type": "text",
				"fields": map[string]interface{}{
					"raw": map[string]interface{}{
						"type": "keyword",
					},
				},
			},
			"count": map[string]interface{}{
				"type": "long",
			},
			"first_seen": map[string]interface{}{
				"type": "date",
			},
			"last_seen": map[string]interface{}{
				"type": "date",
			},
			"trend": map[string]interface{}{
				"type": "keyword",
			},
			"anomaly": map[string]interface{}{
				"type": "boolean",
			},
			"recent_counts": map[string]interface{}{
				"properties": map[string]interface{}{
					"start": map[string]interface{}{
						"type": "date",
					},
					"count": map[string]interface{}{
						"type": "long",
					},
				},
			},
		},
	},
}
