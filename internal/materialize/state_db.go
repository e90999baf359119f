package materialize

import (
	"context"

	"clscope/internal/storage/bolt"
	"clscope/internal/storage/postgres"
)

// DBStateStore stores state in the indexer_state and state_entities tables.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (State, bool, error) {
	if s == nil || s.Store == nil {
		return State{}, false, nil
	}
	cursor, ok, err := s.Store.LoadState(ctx, s.Name)
	if err != nil || !ok {
		return State{}, false, err
	}
	entities, err := s.Store.LoadSnapshot(ctx, s.Name)
	if err != nil {
		return State{}, false, err
	}
	return State{Cursor: cursor, Entities: entities}, true, nil
}

func (s *DBStateStore) Save(ctx context.Context, state State) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveSnapshot(ctx, s.Name, state.Cursor, state.Entities)
}

// BoltStateStore stores state in an embedded bbolt file.
type BoltStateStore struct {
	Store *bolt.Store
	Name  string
}

func (s *BoltStateStore) Load(ctx context.Context) (State, bool, error) {
	if s == nil || s.Store == nil {
		return State{}, false, nil
	}
	cursor, entities, ok, err := s.Store.LoadSnapshot(s.Name)
	if err != nil || !ok {
		return State{}, false, err
	}
	return State{Cursor: cursor, Entities: entities}, true, nil
}

func (s *BoltStateStore) Save(ctx context.Context, state State) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveSnapshot(s.Name, state.Cursor, state.Entities)
}
