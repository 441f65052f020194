package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"asiancryptopay-go/internal/kiosk"
	"asiancryptopay-go/internal/models"
	"asiancryptopay-go/internal/session"
	"asiancryptopay-go/internal/telemetry"
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

	log, _, meter, shutdown, err := telemetry.Setup(ctx, "kiosk-demo")
	if err != nil {
		panic("failed to initialize telemetry: " + err.Error())
	}
	defer shutdown(context.Background())

	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		panic("failed to create metrics: " + err.Error())
	}

	client, err := kiosk.NewClient(kiosk.Config{
		APIKey:      env("ACP_API_KEY", ""),
		MerchantID:  env("ACP_MERCHANT_ID", ""),
		CountryCode: env("ACP_COUNTRY", "MY"),
		Endpoint:    env("ACP_ENDPOINT", ""),
		TestMode:    true,
		Poll: session.PollerConfig{
			Interval: 3 * time.Second,
			Deadline: 15 * time.Minute,
		},
		Logger:  log,
		Metrics: metrics,
	}, nil)
	if err != nil {
		log.Fatal("failed to initialize sdk", zap.Error(err))
	}
	defer client.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down kiosk-demo...")
		cancel()
	}()

	details := models.NewDetailsBuilder(models.AmountFromFloat(10.5), "MYR", "BTC").
		Description("kiosk demo payment").
		Customer("demo@example.com", "Demo Customer").
		Build()

	done := make(chan struct{})
	sess, err := client.CreatePayment(ctx, details, func(from, to models.Status, snapshot models.Payment) {
		log.Info("payment moved",
			zap.String("payment_id", snapshot.ID),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		if to.Terminal() {
			close(done)
		}
	})
	if err != nil {
		log.Fatal("failed to create payment", zap.Error(err))
	}

	snap := sess.Snapshot()
	log.Info("payment created",
		zap.String("payment_id", snap.ID),
		zap.String("address", snap.Address),
		zap.String("qr_code_url", snap.QRCodeURL),
		zap.String("crypto_amount", snap.CryptoAmount.String()),
		zap.Time("expires_at", snap.ExpiresAt),
	)

	select {
	case <-done:
		log.Info("payment finished", zap.String("status", sess.Status().String()))
	case <-ctx.Done():
	}
}
