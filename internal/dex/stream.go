package dex

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"clscope/internal/model"
)

const maxLineBytes = 10 * 1024 * 1024

// StreamStats counts the outcome of each input line.
type StreamStats struct {
	Total   int
	Decoded int
	Skipped int
	Failed  int
}

// DecodeStream decodes JSONL log records from r. Decoded events go to emit,
// undecodable lines to fail; logs with an unknown topic0 are skipped. An
// error from emit or fail aborts the stream.
func DecodeStream(ctx context.Context, decoder Decoder, r io.Reader, emit func(*model.TypedEvent) error, fail func(model.DecodeError) error) (StreamStats, error) {
	var stats StreamStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			if err := fail(model.DecodeError{Line: lineNo, Error: err.Error()}); err != nil {
				return stats, err
			}
			continue
		}
		topic0 := record.Topic0()
		if topic0 == "" {
			stats.Failed++
			if err := fail(model.NewDecodeError(lineNo, record, fmt.Errorf("missing topic0"))); err != nil {
				return stats, err
			}
			continue
		}
		if !decoder.CanDecode(topic0) {
			stats.Skipped++
			continue
		}

		event, err := decoder.Decode(record)
		if err != nil {
			stats.Failed++
			if err := fail(model.NewDecodeError(lineNo, record, err)); err != nil {
				return stats, err
			}
			continue
		}
		if err := emit(event); err != nil {
			return stats, err
		}
		stats.Decoded++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}
	return stats, nil
}
