package store

import (
	"encoding/json"
	"fmt"

	"clscope/internal/model"
)

// Table holds one entity type keyed by id. Writes are staged until the
// owning Store commits them, and reads see staged writes first.
type Table[T any] struct {
	name   string
	rows   map[string]T
	staged map[string]T
	order  []string
}

func newTable[T any](name string) *Table[T] {
	return &Table[T]{
		name:   name,
		rows:   make(map[string]T),
		staged: make(map[string]T),
	}
}

// Name returns the entity name used in change records.
func (t *Table[T]) Name() string {
	return t.name
}

// Len returns the number of committed rows.
func (t *Table[T]) Len() int {
	return len(t.rows)
}

// Get returns the current snapshot for id.
func (t *Table[T]) Get(id string) (T, bool) {
	if v, ok := t.staged[id]; ok {
		return v, true
	}
	v, ok := t.rows[id]
	return v, ok
}

// Has reports whether id exists.
func (t *Table[T]) Has(id string) bool {
	_, ok := t.Get(id)
	return ok
}

// GetOrInsertWith returns the snapshot for id, creating and staging it with
// factory when absent. The second result reports whether it was created.
func (t *Table[T]) GetOrInsertWith(id string, factory func() T) (T, bool) {
	if v, ok := t.Get(id); ok {
		return v, false
	}
	v := factory()
	t.Put(id, v)
	return v, true
}

// Put stages a full snapshot for id.
func (t *Table[T]) Put(id string, v T) {
	if _, ok := t.staged[id]; !ok {
		t.order = append(t.order, id)
	}
	t.staged[id] = v
}

// changes appends a change record for every staged write without making
// any of them visible.
func (t *Table[T]) changes(base model.EntityChange, out []model.EntityChange) ([]model.EntityChange, error) {
	for _, id := range t.order {
		data, err := json.Marshal(t.staged[id])
		if err != nil {
			return out, fmt.Errorf("marshal %s %s: %w", t.name, id, err)
		}
		change := base
		change.Entity = t.name
		change.ID = id
		change.Data = data
		out = append(out, change)
	}
	return out, nil
}

func (t *Table[T]) apply() {
	for _, id := range t.order {
		t.rows[id] = t.staged[id]
	}
	t.reset()
}

func (t *Table[T]) rollback() {
	t.reset()
}

func (t *Table[T]) reset() {
	if len(t.order) == 0 {
		return
	}
	t.staged = make(map[string]T)
	t.order = t.order[:0]
}

func (t *Table[T]) dump() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(t.rows))
	for id, v := range t.rows {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s: %w", t.name, id, err)
		}
		out[id] = data
	}
	return out, nil
}

func (t *Table[T]) restore(rows map[string]json.RawMessage) error {
	for id, data := range rows {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("unmarshal %s %s: %w", t.name, id, err)
		}
		t.rows[id] = v
	}
	return nil
}

type table interface {
	Name() string
	Len() int
	changes(base model.EntityChange, out []model.EntityChange) ([]model.EntityChange, error)
	apply()
	rollback()
	dump() (map[string]json.RawMessage, error)
	restore(rows map[string]json.RawMessage) error
}
