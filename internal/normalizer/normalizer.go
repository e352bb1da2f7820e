package normalizer

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	collectorModel "github.com/logsift/logsift/internal/collector/model"
	"github.com/logsift/logsift/internal/logs/model"
	"go.uber.org/zap"
)

// ParseError describes a line that could not be fully parsed. It is
// informational: the line is still surfaced as a best-effort entry.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Reason
}

type Normalizer interface {
	// Normalize converts a raw event into a LogEntry. It never fails hard;
	// when parsing degrades it returns a best-effort entry together with a
	// ParseError describing what went wrong.
	Normalize(event collectorModel.RawEvent) (model.LogEntry, *ParseError)
	ParseErrorCount() uint64
}

type NormalizerImpl struct {
	defaultSource string
	parseErrors   atomic.Uint64
	logger        *zap.Logger
}

func NewNormalizer(defaultSource string, logger *zap.Logger) *NormalizerImpl {
	return &NormalizerImpl{
		defaultSource: defaultSource,
		logger:        logger,
	}
}

func (n *NormalizerImpl) Normalize(event collectorModel.RawEvent) (model.LogEntry, *ParseError) {
	now := time.Now().UTC()
	receivedAt := event.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = now
	}

	entry := model.LogEntry{
		CreatedAt: now,
		Timestamp: receivedAt,
		Level:     model.InfoLevel,
		Message:   strings.TrimSpace(event.Line),
		Source:    event.Source,
		FileId:    event.FileId,
	}
	if entry.Source == "" {
		entry.Source = n.defaultSource
	}
	if event.Tag != "" {
		entry.Metadata = map[string]interface{}{"tag": event.Tag}
	}

	var parseErr *ParseError
	switch {
	case len(event.Fields) > 0:
		n.applyFields(&entry, event.Fields)
	case strings.HasPrefix(entry.Message, "{"):
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(entry.Message), &fields); err != nil {
			parseErr = &ParseError{Line: event.Line, Reason: "malformed JSON line: " + err.Error()}
		} else {
			n.applyFields(&entry, fields)
		}
	default:
		if structured := parseStructuredLine(entry.Message, now); structured != nil {
			applyStructured(&entry, structured)
		}
	}

	if entry.Level == model.InfoLevel {
		entry.Level = ExtractLevel(entry.Message, model.InfoLevel)
	}
	if entry.NetworkInfo == nil {
		entry.NetworkInfo = ExtractNetworkInfo(entry.Message)
	}
	if entry.LogType == "" {
		entry.LogType = "plain"
	}

	if parseErr != nil {
		n.parseErrors.Add(1)
		n.logger.Debug("Degraded parse of raw line",
			zap.String("source", entry.Source),
			zap.String("reason", parseErr.Reason),
		)
	}
	return entry, parseErr
}

func (n *NormalizerImpl) ParseErrorCount() uint64 {
	return n.parseErrors.Load()
}

// applyFields maps a structured record (JSON line, forward record, OTLP
// attributes) onto the entry. Unconsumed keys are preserved as metadata.
func (n *NormalizerImpl) applyFields(entry *model.LogEntry, fields map[string]interface{}) {
	entry.LogType = "json"
	metadata := make(map[string]interface{})
	network := &model.NetworkInfo{}

	for key, value := range fields {
		switch key {
		case "message", "msg", "log":
			if s, ok := value.(string); ok && s != "" {
				entry.Message = s
			}
		case "level", "severity":
			if s, ok := value.(string); ok {
				entry.Level = CanonicalLevel(s)
			}
		case "timestamp", "time":
			if ts, ok := parseTimestampField(value); ok {
				entry.Timestamp = ts
			}
		case "source":
			if s, ok := value.(string); ok && s != "" {
				entry.Source = s
			}
		case "log_type":
			if s, ok := value.(string); ok && s != "" {
				entry.LogType = s
			}
		case "component":
			if s, ok := value.(string); ok {
				entry.Component = s
			}
		case "user_id":
			if s, ok := value.(string); ok {
				entry.UserId = s
			}
		case "session_id":
			if s, ok := value.(string); ok {
				entry.SessionId = s
			}
		case "tags":
			if list, ok := value.([]interface{}); ok {
				for _, item := range list {
					if s, ok := item.(string); ok {
						entry.Tags = append(entry.Tags, s)
					}
				}
			}
		case "protocol":
			if s, ok := value.(string); ok {
				network.Protocol = ResolveProtocol(s)
			}
		case "ip_address":
			if s, ok := value.(string); ok {
				network.IPAddress = s
			}
		case "src_ip":
			if s, ok := value.(string); ok {
				network.SrcIP = s
				if network.IPAddress == "" {
					network.IPAddress = s
				}
			}
		case "dst_ip":
			if s, ok := value.(string); ok {
				network.DstIP = s
			}
		case "port", "src_port", "dst_port":
			if port, ok := asInt(value); ok && network.Port == 0 {
				network.Port = port
			}
		default:
			metadata[key] = value
		}
	}

	if !network.Empty() {
		entry.NetworkInfo = network
	}
	if len(metadata) > 0 {
		if entry.Metadata == nil {
			entry.Metadata = metadata
		} else {
			for key, value := range metadata {
				entry.Metadata[key] = value
			}
		}
	}
}

func applyStructured(entry *model.LogEntry, structured *structuredLine) {
	entry.LogType = structured.LogType
	if structured.Message != "" {
		entry.Message = structured.Message
	}
	if structured.Level != "" {
		entry.Level = structured.Level
	}
	if structured.HasTime {
		entry.Timestamp = structured.Timestamp
	}
	if structured.Source != "" {
		entry.Source = structured.Source
	}
	entry.NetworkInfo = structured.NetworkInfo
	if len(structured.Metadata) > 0 {
		if entry.Metadata == nil {
			entry.Metadata = structured.Metadata
		} else {
			for key, value := range structured.Metadata {
				entry.Metadata[key] = value
			}
		}
	}
}

func parseTimestampField(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts.UTC(), true
			}
		}
	case float64:
		// Epoch seconds, as emitted by forward-protocol clients.
		seconds := int64(v)
		nanos := int64((v - float64(seconds)) * float64(time.Second))
		return time.Unix(seconds, nanos).UTC(), true
	}
	return time.Time{}, false
}

func asInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		var parsed int
		for _, r := range v {
			if r < '0' || r > '9' {
				return 0, false
			}
			parsed = parsed*10 + int(r-'0')
		}
		if v == "" {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
