package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEmitter publishes accepted events to a Kafka topic, keyed by event
// identity.
type KafkaEmitter struct {
	writer messageWriter
	log    zerolog.Logger
	mu     sync.Mutex
}

// NewKafkaEmitter creates a KafkaEmitter for the given brokers and topic.
func NewKafkaEmitter(brokers []string, topic string, log zerolog.Logger) *KafkaEmitter {
	return newKafkaEmitter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}, log)
}

func newKafkaEmitter(w messageWriter, log zerolog.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		writer: w,
		log:    log.With().Str("component", "kafka").Logger(),
	}
}

// Emit writes record as JSON with its identity as the message key.
func (k *KafkaEmitter) Emit(ctx context.Context, record domain.EventRecord) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.writer == nil {
		return fmt.Errorf("kafka emitter is closed")
	}

	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(record.Event.Kind())},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	k.log.Debug().Str("id", string(record.ID)).Msg("Emitted event to Kafka")
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaEmitter) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.writer != nil {
		err := k.writer.Close()
		k.writer = nil
		return err
	}
	return nil
}
