package repository

import (
	"context"

	domrepo "Naly/internal/domain/repository"
	pkgkafka "Naly/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka, keyed by event id.
type KafkaPublisher struct {
	producer pkgkafka.Publisher
	topic    string
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer pkgkafka.Publisher, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishResult(ctx context.Context, eventID string, result interface{}) error {
	return p.producer.Publish(ctx, p.topic, []byte(eventID), result)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops results. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishResult(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                            { return nil }
