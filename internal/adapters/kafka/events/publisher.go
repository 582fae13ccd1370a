package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Huaoe/ElurcFleet/internal/platform/logging"
	"github.com/Huaoe/ElurcFleet/internal/ports/out/events"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes lifecycle events to a Kafka topic keyed by member id, so
// one member's events stay ordered within a partition.
type Publisher struct {
	w   MessageWriter
	log *zap.Logger
}

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            3,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func NewPublisher(w MessageWriter, logger *zap.Logger) *Publisher {
	return &Publisher{w: w, log: logging.OrNop(logger)}
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.MemberID),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	if e.CorrelationID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "correlation-id", Value: []byte(e.CorrelationID)})
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", e.Type, err)
	}
	p.log.Debug("membership event published",
		zap.String("type", string(e.Type)),
		zap.String("member_id", string(e.MemberID)),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}
