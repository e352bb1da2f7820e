package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/logsift/logsift/internal/logs/model"
)

// Fingerprint derives a stable id from the fields that identify an entry.
// Re-processing the same line therefore overwrites the same document instead
// of duplicating it.
func Fingerprint(entry model.LogEntry) string {
	data := fmt.Sprintf("%s:%s:%s", entry.Timestamp.UTC().Format(time.RFC3339Nano), entry.Message, entry.Source)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
