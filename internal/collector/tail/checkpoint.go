package tail

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// CheckpointStore persists per-file read offsets so that tailing resumes
// where it left off after a restart.
type CheckpointStore interface {
	Load(path string) (Checkpoint, bool, error)
	Save(checkpoint Checkpoint) error
	Close() error
}

type Checkpoint struct {
	Path   string
	Inode  uint64
	Offset int64
}

type SQLiteCheckpointStore struct {
	db *sql.DB
}

func NewSQLiteCheckpointStore(dbPath string) (*SQLiteCheckpointStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping checkpoint database: %w", err)
	}
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		path TEXT PRIMARY KEY,
		inode INTEGER NOT NULL,
		offset INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create checkpoint table: %w", err)
	}
	return &SQLiteCheckpointStore{db: db}, nil
}

func (s *SQLiteCheckpointStore) Load(path string) (Checkpoint, bool, error) {
	row := s.db.QueryRow("SELECT inode, offset FROM checkpoints WHERE path = ?", path)
	checkpoint := Checkpoint{Path: path}
	err := row.Scan(&checkpoint.Inode, &checkpoint.Offset)
	if err == sql.ErrNoRows {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("failed to load checkpoint for %s: %w", path, err)
	}
	return checkpoint, true, nil
}

func (s *SQLiteCheckpointStore) Save(checkpoint Checkpoint) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO checkpoints (path, inode, offset, updated_at) VALUES (?, ?, ?, ?)",
		checkpoint.Path, checkpoint.Inode, checkpoint.Offset, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for %s: %w", checkpoint.Path, err)
	}
	return nil
}

func (s *SQLiteCheckpointStore) Close() error {
	return s.db.Close()
}

// NopCheckpointStore forgets offsets between runs. It backs tail sources
// configured without a checkpoint path.
type NopCheckpointStore struct{}

func (NopCheckpointStore) Load(string) (Checkpoint, bool, error) { return Checkpoint{}, false, nil }
func (NopCheckpointStore) Save(Checkpoint) error                 { return nil }
func (NopCheckpointStore) Close() error                          { return nil }
