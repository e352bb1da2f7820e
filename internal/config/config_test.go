package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logsift.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_NoPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, 24224, cfg.Listeners.ForwardPort)
	assert.Equal(t, "block", cfg.Queue.Policy)
	assert.Equal(t, time.Hour, cfg.Miner.BucketWidth.Std())
	assert.Equal(t, 3, cfg.Sink.MaxRetries)
}

func TestLoad_OverridesMergeOverDefaults(t *testing.T) {
	path := writeConfig(t, `
queue:
  capacity: 500
  policy: drop_oldest
tail:
  globs:
    - /var/log/*.log
  rescan_interval: 30s
miner:
  similarity_threshold: 0.7
`)

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 500, cfg.Queue.Capacity)
	assert.Equal(t, "drop_oldest", cfg.Queue.Policy)
	assert.Equal(t, []string{"/var/log/*.log"}, cfg.Tail.Globs)
	assert.Equal(t, 30*time.Second, cfg.Tail.RescanInterval.Std())
	assert.Equal(t, 0.7, cfg.Miner.SimilarityThreshold)
	// Untouched sections keep their defaults.
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.HTTPAddr)
}

func TestLoad_UnknownKeyIsRejected(t *testing.T) {
	path := writeConfig(t, "queue:\n  capactiy: 500\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_BadDurationIsRejected(t *testing.T) {
	path := writeConfig(t, "tail:\n  rescan_interval: fast\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
