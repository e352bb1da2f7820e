package normalizer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/logsift/logsift/internal/logs/model"
)

var levelPattern = regexp.MustCompile(
	`(?i)\b(EMERGENCY|EMERG|PANIC|ALERT|CRITICAL|CRIT|FATAL|ERROR|ERR|FAIL|FAILED|WARNING|WARN|NOTICE|INFO|INFORMATION|DEBUG|TRACE)\b`,
)

var syslogPriorityPattern = regexp.MustCompile(`<(\d+)>`)

// levelMap folds the many level spellings seen in the wild onto canonical
// values. Spellings outside the core enum (EMERGENCY, ALERT, CRITICAL) are
// preserved verbatim rather than rejected.
var levelMap = map[string]model.Level{
	"EMERGENCY":   "EMERGENCY",
	"EMERG":       "EMERGENCY",
	"PANIC":       "EMERGENCY",
	"ALERT":       "ALERT",
	"CRITICAL":    "CRITICAL",
	"CRIT":        "CRITICAL",
	"FATAL":       "CRITICAL",
	"ERROR":       model.ErrorLevel,
	"ERR":         model.ErrorLevel,
	"FAIL":        model.ErrorLevel,
	"FAILED":      model.ErrorLevel,
	"WARNING":     model.WarnLevel,
	"WARN":        model.WarnLevel,
	"NOTICE":      model.WarnLevel,
	"INFO":        model.InfoLevel,
	"INFORMATION": model.InfoLevel,
	"DEBUG":       model.DebugLevel,
	"TRACE":       model.DebugLevel,
}

var syslogSeverityMap = map[int]model.Level{
	0: "EMERGENCY",
	1: "ALERT",
	2: "CRITICAL",
	3: model.ErrorLevel,
	4: model.WarnLevel,
	5: model.WarnLevel,
	6: model.InfoLevel,
	7: model.DebugLevel,
}

// ExtractLevel derives a log level from free text. It falls back to
// defaultLevel when nothing recognizable is found.
func ExtractLevel(message string, defaultLevel model.Level) model.Level {
	if match := levelPattern.FindStringSubmatch(message); match != nil {
		if level, ok := levelMap[strings.ToUpper(match[1])]; ok {
			return level
		}
		return defaultLevel
	}

	if match := syslogPriorityPattern.FindStringSubmatch(message); match != nil {
		priority, err := strconv.Atoi(match[1])
		if err == nil {
			if level, ok := syslogSeverityMap[priority%8]; ok {
				return level
			}
		}
	}

	upper := strings.ToUpper(message)
	switch {
	case containsAny(upper, "FAIL", "ERROR", "EXCEPTION", "CRASH"):
		return model.ErrorLevel
	case containsAny(upper, "WARN", "ALERT", "DENY", "BLOCK"):
		return model.WarnLevel
	case containsAny(upper, "DEBUG", "TRACE"):
		return model.DebugLevel
	}
	return defaultLevel
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

// CanonicalLevel folds an externally supplied level string; unknown values
// are kept verbatim, upper-cased.
func CanonicalLevel(raw string) model.Level {
	if raw == "" {
		return model.InfoLevel
	}
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if level, ok := levelMap[upper]; ok {
		return level
	}
	return model.Level(upper)
}
