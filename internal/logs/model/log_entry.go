package model

import "time"

type Level string

const (
	DebugLevel Level = "DEBUG"
	InfoLevel  Level = "INFO"
	WarnLevel  Level = "WARN"
	ErrorLevel Level = "ERROR"
)

// NetworkInfo holds the network-shaped fields extracted from a message or a
// structured record. It is only attached to an entry when at least one field
// was found.
type NetworkInfo struct {
	Protocol   string `json:"protocol,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	SrcIP      string `json:"src_ip,omitempty"`
	DstIP      string `json:"dst_ip,omitempty"`
	Port       int    `json:"port,omitempty"`
	Method     string `json:"method,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

func (n *NetworkInfo) Empty() bool {
	if n == nil {
		return true
	}
	return *n == NetworkInfo{}
}

// LogEntry is immutable once stored. Corrections happen by inserting a
// superseding entry, never by mutation.
type LogEntry struct {
	Id          string                 `json:"_id,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	Timestamp   time.Time              `json:"timestamp"`
	Level       Level                  `json:"level"`
	Message     string                 `json:"message"`
	TemplateId  string                 `json:"template_id"`
	Source      string                 `json:"source"`
	FileId      string                 `json:"file_id,omitempty"`
	LogType     string                 `json:"log_type,omitempty"`
	NetworkInfo *NetworkInfo           `json:"network_info,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Component   string                 `json:"component,omitempty"`
	Severity    string                 `json:"severity,omitempty"`
	UserId      string                 `json:"user_id,omitempty"`
	SessionId   string                 `json:"session_id,omitempty"`
}
