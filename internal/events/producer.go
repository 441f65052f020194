package events

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	json "github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"asiancryptopay-go/internal/models"
)

// DefaultTopic carries payment lifecycle events for the kiosk fleet.
const DefaultTopic = "payment-events"

// Producer publishes StatusEvents to Kafka, keyed by payment id so events
// for one payment stay ordered within a partition.
type Producer struct {
	writer *kafka.Writer
	topic  string
	tracer trace.Tracer
}

func NewProducer(brokers []string, topic string) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		tracer: otel.Tracer("events/producer"),
	}
}

// PublishStatus forwards one observed payment signal. Satisfies
// webhook.EventSink.
func (p *Producer) PublishStatus(ctx context.Context, payment *models.Payment, applied bool) error {
	return p.publish(ctx, StatusEvent{
		PaymentID:  payment.ID,
		OrderID:    payment.OrderID,
		MerchantID: payment.MerchantID,
		Status:     payment.Status,
		Applied:    applied,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *Producer) publish(ctx context.Context, ev StatusEvent) error {
	ctx, span := p.tracer.Start(ctx, fmt.Sprintf("publish %s", p.topic),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(p.topic),
			attribute.String("payment.id", ev.PaymentID),
			attribute.String("payment.status", ev.Status.String()),
		),
	)
	defer span.End()

	data, err := json.Marshal(ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	headers := make([]kafka.Header, 0)
	otel.GetTextMapPropagator().Inject(ctx, &headerCarrier{headers: &headers})

	msg := kafka.Message{
		Key:     []byte(ev.PaymentID),
		Value:   data,
		Time:    time.Now(),
		Headers: headers,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to publish event: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

type headerCarrier struct {
	headers *[]kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, len(*c.headers))
	for i, h := range *c.headers {
		keys[i] = h.Key
	}
	return keys
}

func init() {
	otel.SetTextMapPropagator(propagation.TraceContext{})
}
