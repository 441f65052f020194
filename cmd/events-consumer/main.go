package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"asiancryptopay-go/internal/events"
	"asiancryptopay-go/internal/telemetry"
)

const groupID = "payment-events-logger"

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, _, _, shutdown, err := telemetry.Setup(ctx, "events-consumer")
	if err != nil {
		panic("failed to initialize telemetry: " + err.Error())
	}
	defer shutdown(context.Background())

	broker := env("KAFKA_BROKER", "localhost:9092")
	topic := env("EVENTS_TOPIC", events.DefaultTopic)

	consumer := events.NewConsumer([]string{broker}, topic, groupID)
	defer consumer.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down events-consumer...")
		cancel()
	}()

	log.Info("events-consumer started", zap.String("topic", topic))

	err = consumer.Listen(ctx, func(ctx context.Context, ev events.StatusEvent) error {
		log.Info("payment event",
			zap.String("payment_id", ev.PaymentID),
			zap.String("order_id", ev.OrderID),
			zap.String("status", ev.Status.String()),
			zap.Bool("applied", ev.Applied),
			zap.String("amount", ev.Amount.String()),
			zap.String("currency", ev.Currency),
			zap.Time("occurred_at", ev.OccurredAt),
		)
		return nil
	})
	if err != nil {
		log.Error("consumer error", zap.Error(err))
	}
}
