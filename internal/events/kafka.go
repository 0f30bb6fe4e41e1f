package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/types"
)

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits final decision records as JSON, keyed by record ID
// so every update for a record lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

var _ interfaces.DecisionPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher writes to topic on brokers with gzip and all-replica acks.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w, topic: topic}, nil
}

func (p *KafkaPublisher) PublishDecision(ctx context.Context, rec *types.DecisionRecord) error {
	v, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal decision record: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(rec.ID),
		Value: v,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards every record.
type Nop struct{}

func (Nop) PublishDecision(context.Context, *types.DecisionRecord) error { return nil }

func (Nop) Close() error { return nil }
