package materialize

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"clscope/internal/engine"
	"clscope/internal/model"
	"clscope/internal/storage"
)

const defaultBatchSize = 1000

// Config controls replay behavior.
type Config struct {
	// BatchSize is the number of applied events between sink flushes and
	// state saves.
	BatchSize int
	// SkipFailed keeps replaying past events whose handler failed fatally.
	// Their writes are still discarded.
	SkipFailed bool
	StateStore StateStore
}

// Summary counts what a run did with each input line.
type Summary struct {
	Total     int
	Applied   int
	Skipped   int
	Malformed int
	Failed    int
	Changes   int
	Cursor    model.Cursor
}

// Materializer replays typed events through the engine and forwards the
// resulting entity snapshots to a sink.
type Materializer struct {
	cfg    Config
	engine *engine.Engine
	sink   storage.Sink
	logger *zap.Logger
}

func NewMaterializer(cfg Config, eng *engine.Engine, sink storage.Sink, logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Materializer{cfg: cfg, engine: eng, sink: sink, logger: logger}
}

// Run replays a typed events JSONL file. Events already covered by the saved
// cursor are skipped. When the context is cancelled or an event fails, the
// work done so far is still flushed and saved before returning, and those
// last writes ignore the cancellation.
func (m *Materializer) Run(ctx context.Context, inputPath string) (Summary, error) {
	var summary Summary
	if m.engine == nil {
		return summary, fmt.Errorf("engine is nil")
	}

	cursor, err := m.restore(ctx)
	if err != nil {
		return summary, err
	}
	summary.Cursor = cursor

	file, err := os.Open(inputPath)
	if err != nil {
		return summary, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	pending := make([]model.EntityChange, 0, m.cfg.BatchSize)
	sinceFlush := 0

	flush := func(ctx context.Context) error {
		if sinceFlush == 0 {
			return nil
		}
		if m.sink != nil {
			if err := m.sink.WriteChanges(ctx, pending); err != nil {
				return fmt.Errorf("write changes: %w", err)
			}
		}
		summary.Changes += len(pending)
		pending = pending[:0]
		sinceFlush = 0
		return m.save(ctx, summary.Cursor)
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		summary.Total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			summary.Malformed++
			m.logger.Warn("decode typed event", zap.Error(err))
			continue
		}
		if summary.Cursor.Covers(record) {
			summary.Skipped++
			continue
		}

		changes, err := m.engine.Apply(ctx, record)
		if err != nil {
			if errors.Is(err, engine.ErrMalformedEvent) {
				summary.Malformed++
				m.logger.Warn("malformed event", zap.Error(err))
				continue
			}
			summary.Failed++
			if m.cfg.SkipFailed {
				m.logger.Error("event failed, skipping", zap.Error(err))
				continue
			}
			if flushErr := flush(context.WithoutCancel(ctx)); flushErr != nil {
				return summary, errors.Join(err, flushErr)
			}
			return summary, fmt.Errorf("apply event: %w", err)
		}

		summary.Applied++
		summary.Cursor = model.Cursor{
			BlockNumber: record.BlockNumber,
			LogIndex:    record.LogIndex,
			Timestamp:   record.Timestamp,
		}
		pending = append(pending, changes...)
		sinceFlush++

		if sinceFlush >= m.cfg.BatchSize {
			if err := flush(ctx); err != nil {
				return summary, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("scan input: %w", err)
	}
	if err := flush(context.WithoutCancel(ctx)); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	m.logger.Info("materialize complete",
		zap.Int("total", summary.Total),
		zap.Int("applied", summary.Applied),
		zap.Int("skipped", summary.Skipped),
		zap.Int("malformed", summary.Malformed),
		zap.Int("failed", summary.Failed),
		zap.Int("changes", summary.Changes),
		zap.Uint64("block", summary.Cursor.BlockNumber),
		zap.Any("entities", m.engine.Store().Counts()),
	)
	return summary, nil
}

func (m *Materializer) restore(ctx context.Context) (model.Cursor, error) {
	if m.cfg.StateStore == nil {
		return model.Cursor{}, nil
	}
	state, ok, err := m.cfg.StateStore.Load(ctx)
	if err != nil {
		return model.Cursor{}, fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return model.Cursor{}, nil
	}
	if err := m.engine.Store().Restore(state.Entities); err != nil {
		return model.Cursor{}, fmt.Errorf("restore entities: %w", err)
	}
	m.logger.Info("resuming from saved state",
		zap.Uint64("block", state.Cursor.BlockNumber),
		zap.Uint64("log_index", state.Cursor.LogIndex),
	)
	return state.Cursor, nil
}

func (m *Materializer) save(ctx context.Context, cursor model.Cursor) error {
	if m.cfg.StateStore == nil {
		return nil
	}
	entities, err := m.engine.Store().Dump()
	if err != nil {
		return fmt.Errorf("dump entities: %w", err)
	}
	if err := m.cfg.StateStore.Save(ctx, State{Cursor: cursor, Entities: entities}); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
