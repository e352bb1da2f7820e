package normalizer

import (
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/logsift/logsift/internal/logs/model"
)

// structuredLine is the outcome of matching one of the known line formats.
type structuredLine struct {
	LogType     string
	Message     string
	Level       model.Level
	Timestamp   time.Time
	HasTime     bool
	Source      string
	NetworkInfo *model.NetworkInfo
	Metadata    map[string]interface{}
}

var (
	syslogLine = regexp.MustCompile(
		`^(?P<timestamp>\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+(?P<hostname>\S+)\s+(?P<program>[^\s:\[]+)(?:\[(?P<pid>\d+)\])?:\s*(?P<message>.*)$`)
	apacheAccessLine = regexp.MustCompile(
		`^(?P<remote_addr>\S+)\s+\S+\s+\S+\s+\[(?P<timestamp>[^\]]+)\]\s+"(?P<method>\S+)\s+(?P<url>\S+)\s+(?P<protocol>\S+)"\s+(?P<status>\d+)\s+(?P<size>\S+)(?:\s+"(?P<referer>[^"]*)")?\s*(?:"(?P<user_agent>[^"]*)")?`)
	firewallLine = regexp.MustCompile(
		`(?P<action>ACCEPT|DENY|DROP|REJECT).*?SRC=(?P<src_ip>\d+\.\d+\.\d+\.\d+).*?DST=(?P<dst_ip>\d+\.\d+\.\d+\.\d+)`)
	firewallPort  = regexp.MustCompile(`DPT=(?P<port>\d+)`)
	firewallProto = regexp.MustCompile(`PROTO=(?P<proto>\w+)`)
	ciscoLine     = regexp.MustCompile(
		`^(?P<timestamp>\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}(?:\.\d{3})?)\s*\S*\s*:?\s*%(?P<facility>\w+)-(?P<severity>\d+)-(?P<mnemonic>\w+):\s*(?P<message>.*)$`)
	windowsEventLine = regexp.MustCompile(
		`^(?P<timestamp>\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})\s+(?P<level>\w+)\s+(?P<event_id>\d+)\s+(?P<source>\S+)\s+(?P<message>.*)$`)
	dockerLine = regexp.MustCompile(
		`^(?P<timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+Z)\s+(?P<level>\w+)\s+(?P<container_id>\w+)\s+(?P<message>.*)$`)
)

var firewallActionLevels = map[string]model.Level{
	"ACCEPT": model.InfoLevel,
	"DENY":   model.WarnLevel,
	"DROP":   model.WarnLevel,
	"REJECT": model.ErrorLevel,
}

// parseStructuredLine tries the known non-JSON line formats in order and
// returns nil when none matches.
func parseStructuredLine(line string, now time.Time) *structuredLine {
	if groups := matchGroups(syslogLine, line); groups != nil {
		parsed := &structuredLine{
			LogType:  "syslog",
			Message:  groups["message"],
			Source:   groups["hostname"],
			Metadata: map[string]interface{}{"program": groups["program"]},
		}
		if pid := groups["pid"]; pid != "" {
			parsed.Metadata["pid"] = pid
		}
		// syslog timestamps carry no year; assume the current one.
		if ts, err := time.Parse("Jan _2 15:04:05 2006", groups["timestamp"]+" "+strconv.Itoa(now.Year())); err == nil {
			parsed.Timestamp = ts.UTC()
			parsed.HasTime = true
		}
		return parsed
	}

	if groups := matchGroups(apacheAccessLine, line); groups != nil {
		status, _ := strconv.Atoi(groups["status"])
		parsed := &structuredLine{
			LogType: "access",
			Message: line,
			NetworkInfo: &model.NetworkInfo{
				Protocol:   "HTTP",
				Method:     groups["method"],
				StatusCode: status,
				UserAgent:  groups["user_agent"],
			},
			Metadata: map[string]interface{}{
				"url":  groups["url"],
				"size": groups["size"],
			},
		}
		// The remote host field may hold a hostname; the store maps src_ip
		// as an ip field, so only real addresses go there.
		if net.ParseIP(groups["remote_addr"]) != nil {
			parsed.NetworkInfo.SrcIP = groups["remote_addr"]
			parsed.NetworkInfo.IPAddress = groups["remote_addr"]
		}
		switch {
		case status >= 500:
			parsed.Level = model.ErrorLevel
		case status >= 400:
			parsed.Level = model.WarnLevel
		default:
			parsed.Level = model.InfoLevel
		}
		if ts, err := time.Parse("02/Jan/2006:15:04:05 -0700", groups["timestamp"]); err == nil {
			parsed.Timestamp = ts.UTC()
			parsed.HasTime = true
		}
		return parsed
	}

	if groups := matchGroups(firewallLine, line); groups != nil {
		parsed := &structuredLine{
			LogType:     "firewall",
			Message:     line,
			Level:       firewallActionLevels[groups["action"]],
			NetworkInfo: &model.NetworkInfo{},
			Metadata:    map[string]interface{}{"action": groups["action"]},
		}
		if net.ParseIP(groups["src_ip"]) != nil {
			parsed.NetworkInfo.SrcIP = groups["src_ip"]
			parsed.NetworkInfo.IPAddress = groups["src_ip"]
		}
		if net.ParseIP(groups["dst_ip"]) != nil {
			parsed.NetworkInfo.DstIP = groups["dst_ip"]
		}
		if port := matchGroups(firewallPort, line); port != nil {
			if p, err := strconv.Atoi(port["port"]); err == nil {
				parsed.NetworkInfo.Port = p
			}
		}
		if proto := matchGroups(firewallProto, line); proto != nil {
			parsed.NetworkInfo.Protocol = ResolveProtocol(proto["proto"])
		}
		if parsed.NetworkInfo.Empty() {
			parsed.NetworkInfo = nil
		}
		return parsed
	}

	if groups := matchGroups(ciscoLine, line); groups != nil {
		parsed := &structuredLine{
			LogType: "cisco",
			Message: groups["message"],
			Metadata: map[string]interface{}{
				"facility": groups["facility"],
				"mnemonic": groups["mnemonic"],
			},
		}
		if severity, err := strconv.Atoi(groups["severity"]); err == nil {
			if level, ok := syslogSeverityMap[severity]; ok {
				parsed.Level = level
			}
		}
		return parsed
	}

	if groups := matchGroups(windowsEventLine, line); groups != nil {
		parsed := &structuredLine{
			LogType:  "windows_event",
			Message:  groups["message"],
			Level:    CanonicalLevel(groups["level"]),
			Source:   groups["source"],
			Metadata: map[string]interface{}{"event_id": groups["event_id"]},
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", groups["timestamp"]); err == nil {
			parsed.Timestamp = ts.UTC()
			parsed.HasTime = true
		}
		return parsed
	}

	if groups := matchGroups(dockerLine, line); groups != nil {
		parsed := &structuredLine{
			LogType:  "docker",
			Message:  groups["message"],
			Level:    CanonicalLevel(groups["level"]),
			Metadata: map[string]interface{}{"container_id": groups["container_id"]},
		}
		if ts, err := time.Parse(time.RFC3339Nano, groups["timestamp"]); err == nil {
			parsed.Timestamp = ts.UTC()
			parsed.HasTime = true
		}
		return parsed
	}

	return nil
}

func matchGroups(pattern *regexp.Regexp, line string) map[string]string {
	match := pattern.FindStringSubmatch(line)
	if match == nil {
		return nil
	}
	groups := make(map[string]string)
	for i, name := range pattern.SubexpNames() {
		if name != "" && i < len(match) {
			groups[name] = match[i]
		}
	}
	return groups
}
