package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"asiancryptopay-go/internal/events"
	"asiancryptopay-go/internal/kiosk"
	"asiancryptopay-go/internal/models"
	"asiancryptopay-go/internal/telemetry"
	"asiancryptopay-go/internal/webhook"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, tracer, meter, shutdown, err := telemetry.Setup(ctx, "webhook-listener")
	if err != nil {
		panic("failed to initialize telemetry: " + err.Error())
	}
	defer shutdown(context.Background())

	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		panic("failed to create metrics: " + err.Error())
	}

	client, err := kiosk.NewClient(kiosk.Config{
		APIKey:        env("ACP_API_KEY", ""),
		MerchantID:    env("ACP_MERCHANT_ID", ""),
		CountryCode:   env("ACP_COUNTRY", "MY"),
		Endpoint:      env("ACP_ENDPOINT", ""),
		WebhookSecret: env("ACP_WEBHOOK_SECRET", ""),
		Logger:        log,
		Metrics:       metrics,
	}, func(p *models.Payment) {
		log.Warn("orphan payment notification",
			zap.String("payment_id", p.ID),
			zap.String("status", p.Status.String()),
		)
	})
	if err != nil {
		log.Fatal("failed to initialize sdk", zap.Error(err))
	}
	defer client.Close()

	broker := env("KAFKA_BROKER", "localhost:9092")
	topic := env("EVENTS_TOPIC", events.DefaultTopic)
	if err := events.EnsureTopic(ctx, broker, topic, 3, 1); err != nil {
		log.Warn("failed to create events topic (may already exist)", zap.Error(err))
	}
	producer := events.NewProducer([]string{broker}, topic)
	defer producer.Close()

	ctrl := webhook.NewController(client.Verifier(), client.Manager(), producer, log, tracer)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
	})
	app.Use(otelfiber.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Post("/webhooks/payment", ctrl.Handle)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down webhook-listener...")
		_ = app.Shutdown()
		cancel()
	}()

	addr := env("LISTEN_ADDR", ":8082")
	log.Info("webhook-listener listening", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Error("server error", zap.Error(err))
	}
}
