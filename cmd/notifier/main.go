package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"parkd/pkg/config"
	"parkd/pkg/kafka"
	kafkaconfig "parkd/pkg/kafka/config"
	"parkd/pkg/model"
)

const ServiceName = "parkd-notifier"

// The notifier consumes spot release events and delivers them to interested
// employees. Retry and dead-lettering policy lives here, not in the service
// that published the event.
func main() {
	cfg := config.Load(ServiceName)

	kafkaCfg := kafkaconfig.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		kafkaCfg.NotificationsTopic,
		kafkaCfg.NotifierGroupID,
		kafkaCfg.NotificationsDLQTopic,
		handleReleaseEvent(cfg),
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close consumer", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Notifier started",
		"topic", kafkaCfg.NotificationsTopic,
		"group_id", kafkaCfg.NotifierGroupID,
	)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Fatal("Consumer stopped with error", "error", err)
	}

	cfg.Log.Info("Notifier shut down")
}

func handleReleaseEvent(cfg *config.Config) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event model.SpotReleasedEvent
		if err := msg.DecodeValue(&event); err != nil {
			return err
		}

		// Delivery channel integration (mail, chat) goes through here; for
		// now the event is logged so operators can trace the flow.
		cfg.Log.Info("Spot released",
			"event_id", msg.GetEventID(),
			"spot_id", event.SpotID,
			"spot_number", event.SpotNumber,
			"zone", event.SpotZone,
			"date", event.Date,
			"marked_by", event.MarkedBy,
		)
		return nil
	}
}
