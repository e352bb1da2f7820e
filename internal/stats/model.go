package stats

import "time"

// BucketStat is one key of a distribution, e.g. one level or one source.
type BucketStat struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// HourBucket is one hour of the ingestion histogram.
type HourBucket struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

// TemplateStat is the read-side summary of one mined template.
type TemplateStat struct {
	TemplateId string `json:"template_id"`
	Pattern    string `json:"pattern"`
	Count      int64  `json:"count"`
}

// NetworkCoverage splits the scope into entries with and without extracted
// network information.
type NetworkCoverage struct {
	WithNetworkInfo    int64 `json:"with_network_info"`
	WithoutNetworkInfo int64 `json:"without_network_info"`
}

// StatsSnapshot is recomputed per request from the same entries the query
// side would return for the scope. Distribution slices are ordered by count
// descending with ties broken by key, so a fixed store snapshot always
// yields the same payload.
type StatsSnapshot struct {
	TotalLogs           int64           `json:"total_logs"`
	TotalTemplates      int64           `json:"total_templates"`
	TotalFiles          int64           `json:"total_files"`
	LevelDistribution   []BucketStat    `json:"level_distribution"`
	LogTypeDistribution []BucketStat    `json:"log_type_distribution"`
	TopSources          []BucketStat    `json:"top_sources"`
	HourlyHistogram     []HourBucket    `json:"hourly_histogram"`
	ErrorRate           float64         `json:"error_rate"`
	NetworkCoverage     NetworkCoverage `json:"network_coverage"`
	TopTemplates        []TemplateStat  `json:"top_templates"`
}
