package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/border-data-service/internal/config"
	"github.com/couchcryptid/border-data-service/internal/domain"
	"github.com/couchcryptid/border-data-service/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher emits one message per aggregated port to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer    messageWriter
	batchSize int
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured sink topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Publisher{writer: w, batchSize: cfg.BatchSize, metrics: metrics, logger: logger}
}

// PublishAggregate serializes every port of the result and writes them in
// chunks of the configured batch size. Ports are keyed by their composite
// key so successive loads of the same port land on the same partition.
func (p *Publisher) PublishAggregate(ctx context.Context, result *domain.AggregateResult) error {
	if result == nil || len(result.Ports) == 0 {
		return nil
	}

	batchSize := p.batchSize
	if batchSize <= 0 {
		batchSize = len(result.Ports)
	}

	msgs := make([]kafkago.Message, 0, batchSize)
	published := 0
	for i := range result.Ports {
		msg, err := serializePort(result, i)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)

		if len(msgs) == batchSize || i == len(result.Ports)-1 {
			if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
				return fmt.Errorf("write port messages (%d of %d published): %w", published, len(result.Ports), err)
			}
			published += len(msgs)
			p.metrics.MessagesProduced.Add(float64(len(msgs)))
			msgs = msgs[:0]
		}
	}

	p.logger.Info("aggregate published", "load_id", result.LoadID, "messages", published)
	return nil
}

// Close flushes pending messages and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// portMessage is the wire shape of a published port.
type portMessage struct {
	LoadID   string    `json:"load_id"`
	LoadedAt time.Time `json:"loaded_at"`
	Rank     int       `json:"rank"`
	domain.Port
}

// serializePort marshals the port at index i into a Kafka message.
func serializePort(result *domain.AggregateResult, i int) (kafkago.Message, error) {
	port := result.Ports[i]
	data, err := json.Marshal(portMessage{
		LoadID:   result.LoadID,
		LoadedAt: result.LoadedAt,
		Rank:     i + 1,
		Port:     port,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize port %s: %w", port.Key, err)
	}
	return kafkago.Message{
		Key:   []byte(port.Key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "load_id", Value: []byte(result.LoadID)},
			{Key: "loaded_at", Value: []byte(result.LoadedAt.Format(time.RFC3339))},
			{Key: "port_key", Value: []byte(port.Key)},
		},
	}, nil
}
