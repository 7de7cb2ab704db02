package service

import (
	"context"

	"parkd/pkg/kafka"
	"parkd/pkg/model"
)

type kafkaNotifier struct {
	producer *kafka.Producer
	source   string
}

// NewKafkaNotifier adapts the Kafka producer to the Notifier interface.
// Events are keyed by spot ID so releases for one spot stay ordered.
func NewKafkaNotifier(producer *kafka.Producer, source string) Notifier {
	return &kafkaNotifier{
		producer: producer,
		source:   source,
	}
}

func (n *kafkaNotifier) SpotReleased(ctx context.Context, event model.SpotReleasedEvent) error {
	msg := kafka.NewMessage().
		WithKey(event.SpotID).
		WithValue(event).
		WithEventType(model.EventTypeSpotReleased).
		WithSource(n.source).
		Build()

	return n.producer.Publish(ctx, msg)
}
