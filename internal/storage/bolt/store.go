package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"clscope/internal/model"
)

var (
	entitiesBucket = []byte("entities")
	stateBucket    = []byte("state")
	cursorKey      = []byte("cursor")
)

// Store is an embedded key-value copy of the entity store. Sink writes land
// in one nested bucket per entity type under "entities". Saved state lives
// under "state", one nested bucket per name holding the cursor and its own
// entity buckets, so sink output never leaks into a resume snapshot.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(stateBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(entitiesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bolt buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WriteChanges stores the latest snapshot of every changed entity.
func (s *Store) WriteChanges(_ context.Context, changes []model.EntityChange) error {
	if len(changes) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(entitiesBucket)
		for _, change := range changes {
			if err := putEntity(root, change.Entity, change.ID, change.Data); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveSnapshot replaces the state saved under name with snapshot and
// cursor, atomically. Entities written by WriteChanges are left alone.
func (s *Store) SaveSnapshot(name string, cursor model.Cursor, snapshot map[string]map[string]json.RawMessage) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	raw, err := json.Marshal(cursor)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		states := tx.Bucket(stateBucket)
		if err := states.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		state, err := states.CreateBucket([]byte(name))
		if err != nil {
			return err
		}
		root, err := state.CreateBucket(entitiesBucket)
		if err != nil {
			return err
		}
		for entity, rows := range snapshot {
			for id, data := range rows {
				if err := putEntity(root, entity, id, data); err != nil {
					return err
				}
			}
		}
		return state.Put(cursorKey, raw)
	})
}

// LoadSnapshot returns the cursor and entities saved under name.
func (s *Store) LoadSnapshot(name string) (model.Cursor, map[string]map[string]json.RawMessage, bool, error) {
	var cursor model.Cursor
	var found bool
	snapshot := make(map[string]map[string]json.RawMessage)

	err := s.db.View(func(tx *bolt.Tx) error {
		state := tx.Bucket(stateBucket).Bucket([]byte(name))
		if state == nil {
			return nil
		}
		raw := state.Get(cursorKey)
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &cursor); err != nil {
			return fmt.Errorf("decode cursor: %w", err)
		}
		found = true

		root := state.Bucket(entitiesBucket)
		if root == nil {
			return nil
		}
		return root.ForEachBucket(func(entity []byte) error {
			rows := make(map[string]json.RawMessage)
			err := root.Bucket(entity).ForEach(func(id, data []byte) error {
				rows[string(id)] = append(json.RawMessage(nil), data...)
				return nil
			})
			snapshot[string(entity)] = rows
			return err
		})
	})
	if err != nil {
		return model.Cursor{}, nil, false, err
	}
	if !found {
		return model.Cursor{}, nil, false, nil
	}
	return cursor, snapshot, true, nil
}

func putEntity(root *bolt.Bucket, entity, id string, data []byte) error {
	b, err := root.CreateBucketIfNotExists([]byte(entity))
	if err != nil {
		return fmt.Errorf("bucket %s: %w", entity, err)
	}
	return b.Put([]byte(id), data)
}
