package query

import (
	"time"

	"github.com/logsift/logsift/internal/logs/model"
)

// LogQueryRequest carries the filter dimensions of one query. Every field is
// optional; present fields combine conjunctively.
type LogQueryRequest struct {
	TemplateId      *string    `json:"template_id,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Level           *string    `json:"level,omitempty"`
	Source          *string    `json:"source,omitempty"`
	MessageContains *string    `json:"message_contains,omitempty"`
	FileId          *string    `json:"file_id,omitempty"`
	LogType         *string    `json:"log_type,omitempty"`
	HasNetworkInfo  *bool      `json:"has_network_info,omitempty"`
	Protocol        *string    `json:"protocol,omitempty"`
	IPAddress       *string    `json:"ip_address,omitempty"`
	Limit           *int       `json:"limit,omitempty"`
	Offset          *int       `json:"offset,omitempty"`
	SortBy          *string    `json:"sort_by,omitempty"`
	SortOrder       *string    `json:"sort_order,omitempty"`
}

// LogQueryResponse is one page of matches. TotalCount counts every match,
// not just the returned page.
type LogQueryResponse struct {
	Logs       []model.LogEntry `json:"logs"`
	TotalCount int64            `json:"total_count"`
}
