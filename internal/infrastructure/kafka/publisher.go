package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/domain"
	"github.com/auditsuite/tasktimer/pkg/utils/duration"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TransitionMessage is the payload consumers of the transitions topic see.
type TransitionMessage struct {
	TaskID      string                  `json:"task_id"`
	UserID      string                  `json:"user_id"`
	Event       domain.Event            `json:"event"`
	From        domain.CompletionStatus `json:"from"`
	To          domain.CompletionStatus `json:"to"`
	Accumulated string                  `json:"accumulated"`
	OccurredAt  time.Time               `json:"occurred_at"`
}

type publisher struct {
	writer messageWriter
	topic  string
}

var _ ports.TransitionPublisher = (*publisher)(nil)

// NewPublisher creates a Kafka-backed TransitionPublisher. Messages are keyed
// by task ID so every transition of one task lands on the same partition.
func NewPublisher(brokers []string, topic string) ports.TransitionPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &publisher{writer: w, topic: topic}
}

func (p *publisher) PublishTransition(ctx context.Context, rec *domain.TransitionRecord) error {
	value, err := json.Marshal(TransitionMessage{
		TaskID:      rec.TaskID,
		UserID:      rec.UserID,
		Event:       rec.Event,
		From:        rec.FromStatus,
		To:          rec.ToStatus,
		Accumulated: duration.FormatSeconds(rec.AccumulatedSeconds),
		OccurredAt:  rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}

	headers := make(HeaderCarrier, 0)
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     []byte(rec.TaskID),
		Value:   value,
		Headers: []kafka.Header(headers),
		Time:    rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *publisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops everything. Used when the events stream is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishTransition(context.Context, *domain.TransitionRecord) error { return nil }
func (NopPublisher) Close() error                                                      { return nil }
