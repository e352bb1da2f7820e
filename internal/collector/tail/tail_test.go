package tail

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/logsift/logsift/internal/collector/model"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func collectingWatcher(t *testing.T, path string, store CheckpointStore) (*fileWatcher, *[]model.RawEvent) {
	t.Helper()
	events := &[]model.RawEvent{}
	emit := func(event model.RawEvent) {
		*events = append(*events, event)
	}
	if store == nil {
		store = NopCheckpointStore{}
	}
	return newFileWatcher(path, emit, store, 0, zap.NewNop()), events
}

func appendLines(t *testing.T, path string, lines string) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	assert.NoError(t, err)
	_, err = file.WriteString(lines)
	assert.NoError(t, err)
	assert.NoError(t, file.Close())
}

func TestFileWatcher_ReadsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendLines(t, path, "first line\nsecond line\n")

	watcher, events := collectingWatcher(t, path, nil)
	assert.NoError(t, watcher.restore())
	assert.NoError(t, watcher.poll())

	assert.Len(t, *events, 2)
	assert.Equal(t, "first line", (*events)[0].Line)
	assert.Equal(t, "app.log", (*events)[0].Source)
	assert.Equal(t, path, (*events)[0].FileId)

	appendLines(t, path, "third line\n")
	assert.NoError(t, watcher.poll())
	assert.Len(t, *events, 3)
	assert.Equal(t, "third line", (*events)[2].Line)
}

func TestFileWatcher_TruncationResetsOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendLines(t, path, "old content that is fairly long\n")

	watcher, events := collectingWatcher(t, path, nil)
	assert.NoError(t, watcher.restore())
	assert.NoError(t, watcher.poll())
	assert.Len(t, *events, 1)

	assert.NoError(t, os.Truncate(path, 0))
	appendLines(t, path, "fresh\n")
	assert.NoError(t, watcher.poll())

	assert.Len(t, *events, 2)
	assert.Equal(t, "fresh", (*events)[1].Line)
}

func TestFileWatcher_RotationRereadsNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	appendLines(t, path, "before rotation\n")

	watcher, events := collectingWatcher(t, path, nil)
	assert.NoError(t, watcher.restore())
	assert.NoError(t, watcher.poll())
	assert.Len(t, *events, 1)

	assert.NoError(t, os.Rename(path, filepath.Join(dir, "app.log.1")))
	appendLines(t, path, "after rotation\n")
	assert.NoError(t, watcher.poll())

	assert.Len(t, *events, 2)
	assert.Equal(t, "after rotation", (*events)[1].Line)
}

func TestFileWatcher_ResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	appendLines(t, path, "already ingested\n")

	store, err := NewSQLiteCheckpointStore(filepath.Join(dir, "checkpoints.db"))
	assert.NoError(t, err)
	defer store.Close()

	first, firstEvents := collectingWatcher(t, path, store)
	assert.NoError(t, first.restore())
	assert.NoError(t, first.poll())
	assert.Len(t, *firstEvents, 1)

	// A fresh watcher over the same store must skip what was already read.
	appendLines(t, path, "new after restart\n")
	second, secondEvents := collectingWatcher(t, path, store)
	assert.NoError(t, second.restore())
	assert.NoError(t, second.poll())

	assert.Len(t, *secondEvents, 1)
	assert.Equal(t, "new after restart", (*secondEvents)[0].Line)
}

func TestSQLiteCheckpointStore_RoundTrip(t *testing.T) {
	store, err := NewSQLiteCheckpointStore(filepath.Join(t.TempDir(), "checkpoints.db"))
	assert.NoError(t, err)
	defer store.Close()

	_, found, err := store.Load("/var/log/missing.log")
	assert.NoError(t, err)
	assert.False(t, found)

	saved := Checkpoint{Path: "/var/log/app.log", Inode: 42, Offset: 1337}
	assert.NoError(t, store.Save(saved))
	assert.NoError(t, store.Save(Checkpoint{Path: "/var/log/app.log", Inode: 42, Offset: 2000}))

	loaded, found, err := store.Load("/var/log/app.log")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(2000), loaded.Offset)
	assert.Equal(t, uint64(42), loaded.Inode)
}

func TestNewSource_RejectsEmptyGlobs(t *testing.T) {
	_, err := NewSource(SourceConfig{}, nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestTagFor(t *testing.T) {
	assert.Equal(t, "log.app", tagFor("/var/log/app.log"))
	assert.Equal(t, "nginx.access", tagFor("/var/log/nginx/access.log"))
	assert.Equal(t, "noext", tagFor("noext"))
}
