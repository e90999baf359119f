package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"clscope/internal/model"
)

const DefaultKeyPrefix = "clscope"

// Options configures the Redis connection.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Sink keeps the latest snapshot of every entity in one hash per entity type.
// The hash field is the entity id and the value is its JSON snapshot.
type Sink struct {
	client redis.Cmdable
	closer func() error
	prefix string
	logger *zap.Logger
}

// NewSink connects to Redis and checks the connection.
func NewSink(ctx context.Context, opts Options, logger *zap.Logger) (*Sink, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", opts.Addr, err)
	}
	logger.Info("connected to redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))

	return newSink(rdb, rdb.Close, opts.KeyPrefix, logger), nil
}

func newSink(client redis.Cmdable, closer func() error, prefix string, logger *zap.Logger) *Sink {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{client: client, closer: closer, prefix: prefix, logger: logger}
}

// WriteChanges writes the batch and the position of its last change in one
// MULTI/EXEC transaction.
func (s *Sink) WriteChanges(ctx context.Context, changes []model.EntityChange) error {
	if len(changes) == 0 {
		return nil
	}
	last := changes[len(changes)-1]

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, change := range changes {
			pipe.HSet(ctx, s.entityKey(change.Entity), change.ID, string(change.Data))
		}
		pipe.HSet(ctx, s.cursorKey(),
			"block_number", last.BlockNumber,
			"log_index", last.LogIndex,
			"timestamp", last.Timestamp,
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write %d changes: %w", len(changes), err)
	}
	s.logger.Debug("redis batch written", zap.Int("changes", len(changes)), zap.Uint64("block", last.BlockNumber))
	return nil
}

func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *Sink) entityKey(entity string) string {
	return s.prefix + ":entity:" + entity
}

func (s *Sink) cursorKey() string {
	return s.prefix + ":cursor"
}
