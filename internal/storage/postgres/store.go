package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clscope/internal/model"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	entitiesTable      = "entities"
	stateTable         = "indexer_state"
	stateEntitiesTable = "state_entities"
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	entity       TEXT        NOT NULL,
	id           TEXT        NOT NULL,
	block_number BIGINT      NOT NULL,
	log_index    BIGINT      NOT NULL,
	ts           BIGINT      NOT NULL,
	data         JSONB       NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (entity, id)
);
CREATE TABLE IF NOT EXISTS indexer_state (
	name         TEXT        PRIMARY KEY,
	block_number BIGINT      NOT NULL,
	log_index    BIGINT      NOT NULL,
	ts           BIGINT      NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS state_entities (
	name   TEXT  NOT NULL,
	entity TEXT  NOT NULL,
	id     TEXT  NOT NULL,
	data   JSONB NOT NULL,
	PRIMARY KEY (name, entity, id)
);`

// Store persists entity snapshots and materializer progress in Postgres.
// Sink writes go to entities. Resume state goes to indexer_state and
// state_entities and is only replaced by SaveSnapshot.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Migrate creates the tables the store writes to.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// WriteChanges upserts the latest snapshot of every changed entity.
func (s *Store) WriteChanges(ctx context.Context, changes []model.EntityChange) error {
	if len(changes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, change := range changes {
		sqlText, args, err := upsertEntityQuery(change)
		if err != nil {
			return err
		}
		batch.Queue(sqlText, args...)
	}
	return execBatch(s.pool.SendBatch(ctx, batch), batch.Len())
}

// LoadSnapshot reads the entities saved under name grouped by entity name.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (map[string]map[string]json.RawMessage, error) {
	sqlText, args, err := loadSnapshotQuery(name)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query state entities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]json.RawMessage)
	for rows.Next() {
		var entity, id string
		var data []byte
		if err := rows.Scan(&entity, &id, &data); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		if out[entity] == nil {
			out[entity] = make(map[string]json.RawMessage)
		}
		out[entity][id] = json.RawMessage(data)
	}
	return out, rows.Err()
}

// SaveSnapshot replaces the state saved under name with snapshot and the
// cursor it corresponds to, in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, name string, cursor model.Cursor, snapshot map[string]map[string]json.RawMessage) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	sqlText, args, err := clearSnapshotQuery(name)
	if err != nil {
		return err
	}
	batch.Queue(sqlText, args...)
	for entity, rows := range snapshot {
		for id, data := range rows {
			sqlText, args, err := insertSnapshotQuery(name, entity, id, data)
			if err != nil {
				return err
			}
			batch.Queue(sqlText, args...)
		}
	}
	sqlText, args, err = saveStateQuery(name, cursor)
	if err != nil {
		return err
	}
	batch.Queue(sqlText, args...)

	if err := execBatch(tx.SendBatch(ctx, batch), batch.Len()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LoadState returns the cursor saved under name.
func (s *Store) LoadState(ctx context.Context, name string) (model.Cursor, bool, error) {
	if name == "" {
		return model.Cursor{}, false, fmt.Errorf("state name required")
	}
	sqlText, args, err := psql.Select("block_number", "log_index", "ts").
		From(stateTable).
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return model.Cursor{}, false, err
	}

	var block, logIndex, ts int64
	if err := s.pool.QueryRow(ctx, sqlText, args...).Scan(&block, &logIndex, &ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Cursor{}, false, nil
		}
		return model.Cursor{}, false, err
	}
	return model.Cursor{BlockNumber: uint64(block), LogIndex: uint64(logIndex), Timestamp: uint64(ts)}, true, nil
}

func upsertEntityQuery(change model.EntityChange) (string, []interface{}, error) {
	return psql.Insert(entitiesTable).
		Columns("entity", "id", "block_number", "log_index", "ts", "data", "updated_at").
		Values(
			change.Entity,
			change.ID,
			int64(change.BlockNumber),
			int64(change.LogIndex),
			int64(change.Timestamp),
			string(change.Data),
			sq.Expr("now()"),
		).
		Suffix(`ON CONFLICT (entity, id) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			log_index = EXCLUDED.log_index,
			ts = EXCLUDED.ts,
			data = EXCLUDED.data,
			updated_at = now()`).
		ToSql()
}

func loadSnapshotQuery(name string) (string, []interface{}, error) {
	return psql.Select("entity", "id", "data").
		From(stateEntitiesTable).
		Where(sq.Eq{"name": name}).
		OrderBy("entity", "id").
		ToSql()
}

func clearSnapshotQuery(name string) (string, []interface{}, error) {
	return psql.Delete(stateEntitiesTable).Where(sq.Eq{"name": name}).ToSql()
}

func insertSnapshotQuery(name, entity, id string, data json.RawMessage) (string, []interface{}, error) {
	return psql.Insert(stateEntitiesTable).
		Columns("name", "entity", "id", "data").
		Values(name, entity, id, string(data)).
		ToSql()
}

func saveStateQuery(name string, cursor model.Cursor) (string, []interface{}, error) {
	return psql.Insert(stateTable).
		Columns("name", "block_number", "log_index", "ts", "updated_at").
		Values(name, int64(cursor.BlockNumber), int64(cursor.LogIndex), int64(cursor.Timestamp), sq.Expr("now()")).
		Suffix(`ON CONFLICT (name) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			log_index = EXCLUDED.log_index,
			ts = EXCLUDED.ts,
			updated_at = now()`).
		ToSql()
}

func execBatch(br pgx.BatchResults, n int) error {
	defer br.Close()
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec %d: %w", i, err)
		}
	}
	return br.Close()
}
