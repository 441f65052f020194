package webhook

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"asiancryptopay-go/internal/gateway"
	"asiancryptopay-go/internal/models"
	"asiancryptopay-go/internal/signer"
	"asiancryptopay-go/internal/telemetry"
)

// DefaultSkewWindow bounds how far a notification timestamp may drift from
// local time before it is rejected as a replay.
const DefaultSkewWindow = 5 * time.Minute

// Verifier authenticates inbound gateway notifications against the shared
// signing scheme.
type Verifier struct {
	signer *signer.Signer
	skew   time.Duration

	log     *zap.Logger
	metrics *telemetry.Metrics

	// now is swappable for tests.
	now func() time.Time
}

func NewVerifier(sig *signer.Signer, skew time.Duration, log *zap.Logger, metrics *telemetry.Metrics) *Verifier {
	if skew <= 0 {
		skew = DefaultSkewWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewNopMetrics()
	}
	return &Verifier{
		signer:  sig,
		skew:    skew,
		log:     log,
		metrics: metrics,
		now:     time.Now,
	}
}

// Verify authenticates one raw notification. The timestamp is checked
// against the skew window before the signature is compared in constant
// time; either failure is an auth error. A valid notification parses into
// the carried payment record.
func (v *Verifier) Verify(rawBody []byte, signatureHeader, timestampHeader string) (*models.Payment, error) {
	ctx := context.Background()

	if signatureHeader == "" || timestampHeader == "" {
		v.metrics.WebhooksRejected.Add(ctx, 1)
		return nil, &gateway.Error{Kind: gateway.KindAuth, Message: "missing signature or timestamp header"}
	}

	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		v.metrics.WebhooksRejected.Add(ctx, 1)
		return nil, &gateway.Error{Kind: gateway.KindAuth, Message: fmt.Sprintf("invalid timestamp %q", timestampHeader)}
	}

	drift := v.now().Sub(time.Unix(ts, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > v.skew {
		v.metrics.WebhooksRejected.Add(ctx, 1)
		v.log.Warn("notification outside skew window", zap.Duration("drift", drift))
		return nil, &gateway.Error{Kind: gateway.KindAuth, Message: "timestamp outside allowed window"}
	}

	if !v.signer.VerifyWebhook(timestampHeader, rawBody, signatureHeader) {
		v.metrics.WebhooksRejected.Add(ctx, 1)
		v.log.Warn("notification signature mismatch")
		return nil, &gateway.Error{Kind: gateway.KindAuth, Message: "signature mismatch"}
	}

	payment, err := models.ParsePayment(rawBody)
	if err != nil {
		v.metrics.WebhooksRejected.Add(ctx, 1)
		return nil, &gateway.Error{Kind: gateway.KindProtocol, Message: "malformed notification body"}
	}
	if payment.ID == "" {
		v.metrics.WebhooksRejected.Add(ctx, 1)
		return nil, &gateway.Error{Kind: gateway.KindProtocol, Message: "notification missing payment id"}
	}

	v.metrics.WebhooksVerified.Add(ctx, 1)
	return payment, nil
}
