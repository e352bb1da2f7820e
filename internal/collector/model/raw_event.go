package model

import "time"

// RawEvent is a single raw line read from a collector input before any
// normalization. Fields carries structured values already present at the
// boundary (a forward-protocol record, an OTLP attribute set) so the
// normalizer does not need to re-parse them out of the line.
type RawEvent struct {
	Line       string
	Source     string
	Tag        string
	FileId     string
	ReceivedAt time.Time
	Fields     map[string]interface{}
}
