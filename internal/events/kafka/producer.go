package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/realmforge/token-service/internal/events"
)

// CloudEvent is the CloudEvents v1.0 envelope domain events are wrapped in
// on the wire.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data,omitempty"`
}

const (
	cloudEventSpecVersion     = "1.0"
	cloudEventDataContentType = "application/json"
)

// Producer publishes domain events to a Kafka topic as CloudEvents.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	source   string
	logger   *zap.Logger
}

// NewProducer creates a synchronous Kafka producer. source identifies this
// service in the CloudEvents envelope, e.g. "/token-service".
func NewProducer(brokers []string, topic, source string, logger *zap.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{producer: producer, topic: topic, source: source, logger: logger}, nil
}

// Publish wraps the event in a CloudEvents envelope and sends it, keyed by
// subject so events about one user or family stay ordered.
func (p *Producer) Publish(_ context.Context, event events.Event) error {
	envelope := CloudEvent{
		SpecVersion:     cloudEventSpecVersion,
		Type:            string(event.Type),
		Source:          p.source,
		Subject:         event.Subject,
		ID:              uuid.NewString(),
		Time:            event.Time,
		DataContentType: cloudEventDataContentType,
		Data:            event.Data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Subject),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send event %s: %w", event.Type, err)
	}
	p.logger.Debug("published event",
		zap.String("event_type", string(event.Type)),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Close flushes and shuts down the underlying producer.
func (p *Producer) Close() error {
	return p.producer.Close()
}
