package webhook

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"asiancryptopay-go/internal/gateway"
	"asiancryptopay-go/internal/models"
	"asiancryptopay-go/internal/session"
)

// Header names on inbound notifications. Same scheme the transport uses on
// outbound requests.
const (
	HeaderSignature = "X-ACP-Signature"
	HeaderTimestamp = "X-ACP-Timestamp"
)

// EventSink receives every verified notification, applied or orphan.
// *events.Producer satisfies it.
type EventSink interface {
	PublishStatus(ctx context.Context, payment *models.Payment, applied bool) error
}

// Controller hosts the inbound notification endpoint.
type Controller struct {
	verifier *Verifier
	manager  *session.Manager
	sink     EventSink
	log      *zap.Logger
	tracer   trace.Tracer
}

func NewController(verifier *Verifier, manager *session.Manager, sink EventSink, log *zap.Logger, tracer trace.Tracer) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{verifier: verifier, manager: manager, sink: sink, log: log, tracer: tracer}
}

// Handle verifies one POSTed notification and feeds it to the matching
// session. Unmatched payments are acknowledged as orphans, not dropped.
func (ct *Controller) Handle(c *fiber.Ctx) error {
	ctx, span := ct.tracer.Start(c.UserContext(), "Controller.HandleNotification",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	payment, err := ct.verifier.Verify(c.Body(), c.Get(HeaderSignature), c.Get(HeaderTimestamp))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		status := fiber.StatusUnauthorized
		if errors.Is(err, gateway.ErrProtocol) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	applied := ct.manager.Dispatch(payment)
	orphan := ct.manager.Get(payment.ID) == nil

	if ct.sink != nil {
		if err := ct.sink.PublishStatus(ctx, payment, applied); err != nil {
			ct.log.Error("failed to forward payment event", zap.Error(err))
		}
	}

	span.SetStatus(codes.Ok, "")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "ok",
		"applied": applied,
		"orphan":  orphan,
	})
}
