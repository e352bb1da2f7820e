package bootstrapper

const LogIndexName = "logs"

var logIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
		"analysis": map[string]interface{}{
			"analyzer": map[string]interface{}{
				"message_analyzer": map[string]interface{}{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"lowercase"},
				},
			},
		},
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"created_at": map[string]interface{}{
				"type": "date",
			},
			"timestamp": map[string]interface{}{
				"type": "date",
			},
			"level": map[string]interface{}{
				"type": "keyword",
			},
			// Duplicate of the document _id; _id itself is not sortable.
			"fingerprint": map[string]interface{}{
				"type": "keyword",
			},
			"message": map[string]interface{}{
				"type":     "text",
				"analyzer": "message_analyzer",
				// The analyzed field only matches on token boundaries; the
				// wildcard subfield serves mid-token substring filters.
				"fields": map[string]interface{}{
					"raw": map[string]interface{}{
						"type": "wildcard",
					},
				},
			},
			"template_id": map[string]interface{}{
				"type": "keyword",
			},
			"source": map[string]interface{}{
				"type": "keyword",
			},
			"file_id": map[string]interface{}{
				"type": "keyword",
			},
			"log_type": map[string]interface{}{
				"type": "keyword",
			},
			"component": map[string]interface{}{
				"type": "keyword",
			},
			"severity": map[string]interface{}{
				"type": "keyword",
			},
			"user_id": map[string]interface{}{
				"type": "keyword",
			},
			"session_id": map[string]interface{}{
				"type": "keyword",
			},
			"tags": map[string]interface{}{
				"type": "keyword",
			},
			"network_info": map[string]interface{}{
				"properties": map[string]interface{}{
					"protocol": map[string]interface{}{
						"type": "keyword",
					},
					"ip_address": map[string]interface{}{
						"type": "ip",
					},
					"src_ip": map[string]interface{}{
						"type": "ip",
					},
					"dst_ip": map[string]interface{}{
						"type": "ip",
					},
					"port": map[string]interface{}{
						"type": "integer",
					},
					"method": map[string]interface{}{
						"type": "keyword",
					},
					"status_code": map[string]interface{}{
						"type": "integer",
					},
					"user_agent": map[string]interface{}{
						"type": "keyword",
					},
				},
			},
			"metadata": map[string]interface{}{
				"type":    "object",
				"enabled": false,
			},
		},
	},
}
