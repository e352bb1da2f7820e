package model

import "time"

type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// BucketCount is the number of matches observed inside one fixed-width time
// bucket. Start is truncated to the bucket width.
type BucketCount struct {
	Start time.Time `json:"start"`
	Count int64     `json:"count"`
}

// Template is a canonical message shape with variable spans replaced by
// placeholders. The token layout is fixed at creation; literal positions may
// widen into placeholders as more matches arrive, but a different layout
// allocates a new template instead.
type Template struct {
	TemplateId   string        `json:"template_id"`
	Pattern      string        `json:"pattern"`
	Count        int64         `json:"count"`
	FirstSeen    time.Time     `json:"first_seen"`
	LastSeen     time.Time     `json:"last_seen"`
	RecentCounts []BucketCount `json:"recent_counts,omitempty"`
	Trend        Trend         `json:"trend,omitempty"`
	Anomaly      bool          `json:"anomaly"`
}
