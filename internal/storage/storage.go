package storage

import (
	"context"
	"errors"

	"clscope/internal/model"
)

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// Sink receives entity snapshots in commit order.
type Sink interface {
	WriteChanges(ctx context.Context, changes []model.EntityChange) error
	Close() error
}

// MultiSink fans every batch out to each sink in order.
type MultiSink []Sink

// WriteChanges stops at the first failing sink.
func (m MultiSink) WriteChanges(ctx context.Context, changes []model.EntityChange) error {
	if len(changes) == 0 {
		return nil
	}
	for _, sink := range m {
		if err := sink.WriteChanges(ctx, changes); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m MultiSink) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
