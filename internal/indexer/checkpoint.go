package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint records how far a log filter has been fetched on a chain.
type Checkpoint struct {
	ChainID            uint64 `json:"chain_id"`
	Filter             string `json:"filter"`
	LastProcessedBlock uint64 `json:"last_processed_block"`
	UpdatedAt          string `json:"updated_at"`
}

// ResumesFrom reports the first block to fetch for chainID and filter when
// resuming from cp. A checkpoint for another chain is an error; one for a
// different filter is ignored so newly added contracts are fetched from the
// configured start.
func (cp Checkpoint) ResumesFrom(chainID uint64, filter string, from uint64) (uint64, bool, error) {
	if cp.ChainID != 0 && cp.ChainID != chainID {
		return from, false, fmt.Errorf("checkpoint is for chain %d, connected to %d", cp.ChainID, chainID)
	}
	if cp.Filter != "" && cp.Filter != filter {
		return from, false, nil
	}
	if cp.LastProcessedBlock < from {
		return from, false, nil
	}
	return cp.LastProcessedBlock + 1, true, nil
}

// CheckpointStore persists checkpoints to a JSON file.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled && path != ""}
}

func (c *CheckpointStore) Load() (Checkpoint, bool, error) {
	if !c.enabled {
		return Checkpoint{}, false, nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp, true, nil
}

// Save atomically replaces the checkpoint file.
func (c *CheckpointStore) Save(cp Checkpoint) error {
	if !c.enabled {
		return nil
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(cp)
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
