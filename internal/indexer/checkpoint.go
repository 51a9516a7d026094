package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CheckpointStore persists the last block whose logs were handled.
type CheckpointStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, lastProcessed uint64) error
}

// Checkpoint is the on-disk form of a file checkpoint.
type Checkpoint struct {
	LastProcessedBlock uint64 `json:"last_processed_block"`
	UpdatedAt          string `json:"updated_at"`
}

// FileCheckpointStore keeps the checkpoint in a JSON file, replaced atomically on save.
type FileCheckpointStore struct {
	path string
}

func NewFileCheckpointStore(path string) *FileCheckpointStore {
	return &FileCheckpointStore{path: path}
}

func (c *FileCheckpointStore) Load(context.Context) (uint64, bool, error) {
	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return 0, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp.LastProcessedBlock, true, nil
}

func (c *FileCheckpointStore) Save(_ context.Context, lastProcessed uint64) error {
	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.Marshal(Checkpoint{
		LastProcessedBlock: lastProcessed,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// StateStore is a named block cursor, as kept by the postgres store.
type StateStore interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, block uint64) error
}

// DBCheckpointStore keeps the checkpoint under a name in a StateStore.
type DBCheckpointStore struct {
	store StateStore
	name  string
}

func NewDBCheckpointStore(store StateStore, name string) *DBCheckpointStore {
	return &DBCheckpointStore{store: store, name: name}
}

func (c *DBCheckpointStore) Load(ctx context.Context) (uint64, bool, error) {
	block, ok, err := c.store.LoadState(ctx, c.name)
	if err != nil {
		return 0, false, fmt.Errorf("load state %s: %w", c.name, err)
	}
	return block, ok, nil
}

func (c *DBCheckpointStore) Save(ctx context.Context, lastProcessed uint64) error {
	if err := c.store.SaveState(ctx, c.name, lastProcessed); err != nil {
		return fmt.Errorf("save state %s: %w", c.name, err)
	}
	return nil
}
