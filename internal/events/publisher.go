// Package events announces completed scoring runs to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/miradorstack/churn-triage/internal/models"
)

// EventRunScored is the event type emitted after a run is stored.
const EventRunScored = "churn.run_scored"

// Publisher emits scoring events.
type Publisher interface {
	PublishRunScored(ctx context.Context, summary models.RunSummary) error
	Close() error
}

// Envelope wraps every published payload.
type Envelope struct {
	EventID    string            `json:"event_id"`
	EventType  string            `json:"event_type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Payload    models.RunSummary `json:"payload"`
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// PublishRunScored implements Publisher.
func (NoopPublisher) PublishRunScored(context.Context, models.RunSummary) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by run id.
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(logger *slog.Logger, brokers []string, topic string) *KafkaPublisher {
	return newKafkaPublisher(logger, &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	})
}

func newKafkaPublisher(logger *slog.Logger, w messageWriter) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{writer: w, logger: logger, now: time.Now}
}

// PublishRunScored implements Publisher.
func (p *KafkaPublisher) PublishRunScored(ctx context.Context, summary models.RunSummary) error {
	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  EventRunScored,
		OccurredAt: p.now().UTC(),
		Payload:    summary,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", EventRunScored, err)
	}
	msg := kafka.Message{
		Key:   []byte(summary.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventRunScored)},
			{Key: "event_id", Value: []byte(env.EventID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", EventRunScored, err)
	}
	p.logger.Debug("event published", slog.String("event_type", EventRunScored), slog.String("run_id", summary.ID))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
