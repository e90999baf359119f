package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"clscope/internal/model"
)

// Writer is the part of kafka.Writer the sink uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Options configures the change-stream producer.
type Options struct {
	Brokers []string
	Topic   string
}

// Sink publishes every entity change as a JSON message keyed by entity:id,
// so all versions of one entity land on the same partition in order.
type Sink struct {
	writer Writer
	logger *zap.Logger
}

// NewSink builds a synchronous producer for opts.Topic.
func NewSink(opts Options, logger *zap.Logger) (*Sink, error) {
	if len(opts.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(opts.Brokers...),
		Topic:                  opts.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return NewSinkWithWriter(writer, logger), nil
}

// NewSinkWithWriter wraps an existing writer.
func NewSinkWithWriter(writer Writer, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{writer: writer, logger: logger}
}

func (s *Sink) WriteChanges(ctx context.Context, changes []model.EntityChange) error {
	if len(changes) == 0 {
		return nil
	}
	messages := make([]kafka.Message, len(changes))
	for i, change := range changes {
		msg, err := changeMessage(change)
		if err != nil {
			return err
		}
		messages[i] = msg
	}
	if err := s.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("kafka publish %d changes: %w", len(messages), err)
	}
	s.logger.Debug("kafka batch published", zap.Int("changes", len(messages)))
	return nil
}

func (s *Sink) Close() error {
	return s.writer.Close()
}

func changeMessage(change model.EntityChange) (kafka.Message, error) {
	value, err := json.Marshal(change)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal change %s: %w", change.Key(), err)
	}
	return kafka.Message{
		Key:   []byte(change.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "entity", Value: []byte(change.Entity)},
			{Key: "block_number", Value: []byte(strconv.FormatUint(change.BlockNumber, 10))},
		},
	}, nil
}
