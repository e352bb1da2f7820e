package tail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/logsift/logsift/internal/collector/model"
	"go.uber.org/zap"
)

const (
	pollInterval  = 500 * time.Millisecond
	maxLineLength = 1024 * 1024
)

// fileWatcher tails a single file. Rotation and truncation are detected by
// comparing inode and size against the last poll; a rotated file is re-read
// from offset zero.
type fileWatcher struct {
	path     string
	emit     func(model.RawEvent)
	store    CheckpointStore
	interval time.Duration

	mu        sync.Mutex
	offset    int64
	inode     uint64
	stopped   bool
	linesRead atomic.Uint64

	logger *zap.Logger
}

func newFileWatcher(
	path string,
	emit func(model.RawEvent),
	store CheckpointStore,
	interval time.Duration,
	logger *zap.Logger,
) *fileWatcher {
	if interval <= 0 {
		interval = pollInterval
	}
	return &fileWatcher{
		path:     path,
		emit:     emit,
		store:    store,
		interval: interval,
		offset:   -1,
		logger:   logger,
	}
}

func (w *fileWatcher) watch(ctx context.Context) error {
	if err := w.restore(); err != nil {
		return fmt.Errorf("failed to restore watcher state for %s: %w", w.path, err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if w.isStopped() {
				return nil
			}
			if err := w.poll(); err != nil {
				w.logger.Warn(
					"Failed to poll tailed file",
					zap.String("path", w.path),
					zap.Error(err),
				)
			}
		}
	}
}

// restore initializes the read offset from the checkpoint store. A checkpoint
// whose inode no longer matches the file on disk belongs to a rotated-away
// file and is discarded.
func (w *fileWatcher) restore() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.offset = 0
	checkpoint, found, err := w.store.Load(w.path)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	info, err := os.Stat(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	inode := inodeOf(info)
	if inode != checkpoint.Inode || info.Size() < checkpoint.Offset {
		return nil
	}

	w.offset = checkpoint.Offset
	w.inode = inode
	return nil
}

func (w *fileWatcher) poll() error {
	file, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	currentSize := info.Size()
	currentInode := inodeOf(info)

	w.mu.Lock()
	offset := w.offset
	previousInode := w.inode
	w.mu.Unlock()

	if previousInode != 0 && currentInode != 0 && currentInode != previousInode {
		w.logger.Info(
			"Tailed file was rotated",
			zap.String("path", w.path),
			zap.Uint64("old_inode", previousInode),
			zap.Uint64("new_inode", currentInode),
		)
		offset = 0
	} else if currentSize < offset {
		w.logger.Info(
			"Tailed file was truncated",
			zap.String("path", w.path),
			zap.Int64("offset", offset),
			zap.Int64("size", currentSize),
		)
		offset = 0
	}

	if currentSize > offset {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			return err
		}
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
		now := time.Now().UTC()
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			w.emit(model.RawEvent{
				Line:       line,
				Source:     filepath.Base(w.path),
				Tag:        tagFor(w.path),
				FileId:     w.path,
				ReceivedAt: now,
			})
			w.linesRead.Add(1)
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		current, err := file.Seek(0, io.SeekCurrent)
		if err != nil {
			current = currentSize
		}
		offset = current
	}

	w.mu.Lock()
	w.offset = offset
	w.inode = currentInode
	w.mu.Unlock()

	if err := w.store.Save(Checkpoint{Path: w.path, Inode: currentInode, Offset: offset}); err != nil {
		w.logger.Warn("Failed to save tail checkpoint", zap.String("path", w.path), zap.Error(err))
	}
	return nil
}

func (w *fileWatcher) stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
}

func (w *fileWatcher) isStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// tagFor derives a synthetic routing tag from the file location, e.g.
// /var/log/app.log -> "log.app".
func tagFor(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	dir := filepath.Base(filepath.Dir(path))
	if dir == "." || dir == string(filepath.Separator) {
		return base
	}
	return dir + "." + base
}

func inodeOf(info os.FileInfo) uint64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return stat.Ino
	}
	return 0
}
