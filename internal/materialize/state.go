package materialize

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clscope/internal/model"
)

// State is everything needed to resume a replay: the position of the last
// applied event and the committed entity store at that point.
type State struct {
	Cursor   model.Cursor
	Entities map[string]map[string]json.RawMessage
}

// StateStore persists replay state.
type StateStore interface {
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, state State) error
}

// FileStateStore stores state in a local JSON file.
type FileStateStore struct {
	Path string
}

type stateRecord struct {
	Cursor    model.Cursor                          `json:"cursor"`
	Entities  map[string]map[string]json.RawMessage `json:"entities"`
	UpdatedAt string                                `json:"updated_at"`
}

func (s *FileStateStore) Load(ctx context.Context) (State, bool, error) {
	if s == nil || s.Path == "" {
		return State{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("read state: %w", err)
	}

	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return State{}, false, fmt.Errorf("parse state: %w", err)
	}
	return State{Cursor: rec.Cursor, Entities: rec.Entities}, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, state State) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	rec := stateRecord{
		Cursor:    state.Cursor,
		Entities:  state.Entities,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
