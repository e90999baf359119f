package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"clscope/internal/model"
)

// JsonlStorage writes log records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutLogBatch appends a batch of log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(logs []model.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLines(s.path, len(logs), func(i int) interface{} { return logs[i] })
}

// JsonlChangeSink appends entity changes to a JSONL file.
type JsonlChangeSink struct {
	path string
	mu   sync.Mutex
}

func NewJsonlChangeSink(path string) *JsonlChangeSink {
	return &JsonlChangeSink{path: path}
}

// WriteChanges appends one line per entity change.
func (s *JsonlChangeSink) WriteChanges(_ context.Context, changes []model.EntityChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLines(s.path, len(changes), func(i int) interface{} { return changes[i] })
}

func (s *JsonlChangeSink) Close() error {
	return nil
}

func appendLines(path string, n int, item func(int) interface{}) error {
	if n == 0 {
		return nil
	}
	w, err := NewJSONLWriter(path, true)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(item(i)); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// JSONLWriter buffers JSON lines into a single file until Close.
type JSONLWriter struct {
	file   *os.File
	writer *bufio.Writer
	lines  int
}

// NewJSONLWriter opens path for writing, creating parent directories.
// Without appendMode an existing file is truncated.
func NewJSONLWriter(path string, appendMode bool) (*JSONLWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &JSONLWriter{file: file, writer: bufio.NewWriter(file)}, nil
}

func (w *JSONLWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	w.lines++
	return nil
}

// Lines reports how many values were written.
func (w *JSONLWriter) Lines() int {
	return w.lines
}

func (w *JSONLWriter) Close() error {
	if w == nil || w.file == nil {
		return nil
	}
	flushErr := w.writer.Flush()
	closeErr := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return fmt.Errorf("flush output: %w", flushErr)
	}
	return closeErr
}
