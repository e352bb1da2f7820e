package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML durations in Go notation, e.g. "500ms" or "2h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type ListenersConfig struct {
	ForwardHost string `yaml:"forward_host"`
	ForwardPort int    `yaml:"forward_port"`
	GrpcAddr    string `yaml:"grpc_addr"`
}

type TailConfig struct {
	Globs          []string `yaml:"globs"`
	RescanInterval Duration `yaml:"rescan_interval"`
	PollInterval   Duration `yaml:"poll_interval"`
	CheckpointPath string   `yaml:"checkpoint_path"`
}

type QueueConfig struct {
	Capacity int    `yaml:"capacity"`
	Policy   string `yaml:"policy"`
}

type PipelineConfig struct {
	Workers              int      `yaml:"workers"`
	BatchSize            int      `yaml:"batch_size"`
	FlushInterval        Duration `yaml:"flush_interval"`
	TemplateSyncInterval Duration `yaml:"template_sync_interval"`
}

type MinerConfig struct {
	SimilarityThreshold float64  `yaml:"similarity_threshold"`
	MaxLiteralLength    int      `yaml:"max_literal_length"`
	BucketWidth         Duration `yaml:"bucket_width"`
	MaxBuckets          int      `yaml:"max_buckets"`
	TrendRatio          float64  `yaml:"trend_ratio"`
	AnomalySigma        float64  `yaml:"anomaly_sigma"`
}

type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses"`
}

type SinkConfig struct {
	URL           string   `yaml:"url"`
	BatchSize     int      `yaml:"batch_size"`
	BatchDelay    Duration `yaml:"batch_delay"`
	MaxRetries    int      `yaml:"max_retries"`
	RetryDelay    Duration `yaml:"retry_delay"`
	Timeout       Duration `yaml:"timeout"`
	BufferSize    int      `yaml:"buffer_size"`
	AppendLogPath string   `yaml:"append_log_path"`
}

type ServerConfig struct {
	HTTPAddr            string  `yaml:"http_addr"`
	RateLimitPerSec     float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst      int     `yaml:"rate_limit_burst"`
	RecentCacheCapacity int     `yaml:"recent_cache_capacity"`
}

type Config struct {
	Listeners     ListenersConfig     `yaml:"listeners"`
	Tail          TailConfig          `yaml:"tail"`
	Queue         QueueConfig         `yaml:"queue"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Miner         MinerConfig         `yaml:"miner"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Sink          SinkConfig          `yaml:"sink"`
	Server        ServerConfig        `yaml:"server"`
}

// Default returns the configuration used when a file sets nothing. Every
// field can be overridden individually.
func Default() Config {
	return Config{
		Listeners: ListenersConfig{
			ForwardHost: "0.0.0.0",
			ForwardPort: 24224,
			GrpcAddr:    "0.0.0.0:4317",
		},
		Tail: TailConfig{
			RescanInterval: Duration(5 * time.Second),
			PollInterval:   Duration(500 * time.Millisecond),
			CheckpointPath: "logsift-checkpoints.db",
		},
		Queue: QueueConfig{
			Capacity: 10000,
			Policy:   "block",
		},
		Pipeline: PipelineConfig{
			Workers:              4,
			BatchSize:            100,
			FlushInterval:        Duration(2 * time.Second),
			TemplateSyncInterval: Duration(10 * time.Second),
		},
		Miner: MinerConfig{
			SimilarityThreshold: 0.5,
			MaxLiteralLength:    40,
			BucketWidth:         Duration(time.Hour),
			MaxBuckets:          48,
			TrendRatio:          1.5,
			AnomalySigma:        3.0,
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses: []string{"http://localhost:9200"},
		},
		Sink: SinkConfig{
			BatchSize:  100,
			BatchDelay: Duration(2 * time.Second),
			MaxRetries: 3,
			RetryDelay: Duration(500 * time.Millisecond),
			Timeout:    Duration(10 * time.Second),
			BufferSize: 1000,
		},
		Server: ServerConfig{
			HTTPAddr:            "0.0.0.0:8080",
			RateLimitPerSec:     50,
			RateLimitBurst:      100,
			RecentCacheCapacity: 200,
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected so a
// typoed setting fails loudly instead of silently using the default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := unmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func unmarshalStrict(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err := decoder.Decode(cfg)
	if errors.Is(err, io.EOF) {
		// Empty file keeps the defaults.
		return nil
	}
	return err
}
