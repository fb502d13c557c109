// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

const schemaVersion = "1.0"

// Event types.
const (
	TypeClientRegistered = "client.registered"
	TypeMessageSent      = "message.sent"
)

// Event is one domain fact. Key selects the partition.
type Event struct {
	Type    string
	Key     string
	At      time.Time
	Payload any
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// ClientRegistered builds the event emitted when onboarding completes.
func ClientRegistered(clientID uuid.UUID, phone string, at time.Time) Event {
	return Event{
		Type: TypeClientRegistered,
		Key:  clientID.String(),
		At:   at,
		Payload: struct {
			ClientID string `json:"client_id"`
			Phone    string `json:"phone"`
		}{clientID.String(), phone},
	}
}

// MessageSent builds the event emitted after a message is stored.
func MessageSent(messageID, conversationID, senderID uuid.UUID, at time.Time) Event {
	return Event{
		Type: TypeMessageSent,
		Key:  conversationID.String(),
		At:   at,
		Payload: struct {
			MessageID      string `json:"message_id"`
			ConversationID string `json:"conversation_id"`
			SenderID       string `json:"sender_id"`
		}{messageID.String(), conversationID.String(), senderID.String()},
	}
}

type envelope struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Service   string    `json:"service"`
	Payload   any       `json:"payload"`
}

// KafkaPublisher writes JSON envelopes to a single topic.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	service  string
	log      *zap.Logger
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewProducerConfig returns the sarama settings used for events.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Timeout = 5 * time.Second
	cfg.Metadata.Retry.Max = 3
	cfg.Metadata.Retry.Backoff = 250 * time.Millisecond
	return cfg
}

// DialKafka connects a sync producer to brokers.
func DialKafka(brokers []string, topic, service string, log *zap.Logger) (*KafkaPublisher, error) {
	p, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	log.Info("kafka producer initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return NewKafkaPublisher(p, topic, service, log), nil
}

// NewKafkaPublisher wraps an existing producer.
func NewKafkaPublisher(p sarama.SyncProducer, topic, service string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic, service: service, log: log}
}

// Publish sends e synchronously and gives up when ctx is done. A send that
// outlives ctx may still reach the broker.
func (k *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	body, err := json.Marshal(envelope{
		EventID:   id.String(),
		EventType: e.Type,
		Timestamp: at.UTC(),
		Version:   schemaVersion,
		Service:   k.service,
		Payload:   e.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(e.Key),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.Type)},
		},
	}
	type result struct {
		partition int32
		offset    int64
		err       error
	}
	done := make(chan result, 1)
	go func() {
		partition, offset, err := k.producer.SendMessage(msg)
		done <- result{partition, offset, err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", e.Type, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("publish %s: %w", e.Type, r.err)
		}
		k.log.Debug("event published",
			zap.String("type", e.Type),
			zap.Int32("partition", r.partition),
			zap.Int64("offset", r.offset),
		)
		return nil
	}
}

// Close flushes and closes the producer.
func (k *KafkaPublisher) Close() error {
	if err := k.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// Nop drops every event.
type Nop struct{}

var _ Publisher = Nop{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
