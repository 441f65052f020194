package telemetry

import (
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	PaymentsCreated   metric.Int64Counter
	PaymentsCancelled metric.Int64Counter
	StatusPolls       metric.Int64Counter
	StatusTransitions metric.Int64Counter
	WebhooksVerified  metric.Int64Counter
	WebhooksRejected  metric.Int64Counter
	OrphanEvents      metric.Int64Counter
	PollDuration      metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	created, err := meter.Int64Counter("payments_created_total",
		metric.WithDescription("Total payments created against the gateway"),
		metric.WithUnit("{payment}"),
	)
	if err != nil {
		return nil, err
	}

	cancelled, err := meter.Int64Counter("payments_cancelled_total",
		metric.WithDescription("Total payments cancelled by the client"),
		metric.WithUnit("{payment}"),
	)
	if err != nil {
		return nil, err
	}

	polls, err := meter.Int64Counter("status_polls_total",
		metric.WithDescription("Total status poll requests issued"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter("status_transitions_total",
		metric.WithDescription("Total applied payment status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	verified, err := meter.Int64Counter("webhooks_verified_total",
		metric.WithDescription("Total webhook notifications accepted"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter("webhooks_rejected_total",
		metric.WithDescription("Total webhook notifications rejected"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	orphans, err := meter.Int64Counter("orphan_events_total",
		metric.WithDescription("Verified notifications with no tracked session"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	pollDuration, err := meter.Float64Histogram("poll_duration_seconds",
		metric.WithDescription("Duration of status poll round trips"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		PaymentsCreated:   created,
		PaymentsCancelled: cancelled,
		StatusPolls:       polls,
		StatusTransitions: transitions,
		WebhooksVerified:  verified,
		WebhooksRejected:  rejected,
		OrphanEvents:      orphans,
		PollDuration:      pollDuration,
	}, nil
}

// NewNopMetrics returns metrics backed by a no-op meter, for embedding the
// SDK without an OTel pipeline.
func NewNopMetrics() *Metrics {
	m, _ := NewMetrics(nopMeter())
	return m
}
