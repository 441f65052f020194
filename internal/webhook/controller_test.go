package webhook

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asiancryptopay-go/internal/models"
	"asiancryptopay-go/internal/session"
	"asiancryptopay-go/internal/telemetry"
)

type staticFetcher struct{ payment *models.Payment }

func (f *staticFetcher) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return f.payment, nil
}

type recordingSink struct {
	events []models.Status
}

func (r *recordingSink) PublishStatus(ctx context.Context, payment *models.Payment, applied bool) error {
	r.events = append(r.events, payment.Status)
	return nil
}

func trackedPayment(status models.Status) *models.Payment {
	return &models.Payment{
		ID:        "pay_1",
		Status:    status,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}
}

func newTestApp(t *testing.T, manager *session.Manager, sink EventSink) *fiber.App {
	t.Helper()
	ctrl := NewController(newTestVerifier(), manager, sink, nil, telemetry.NopTracer())
	app := fiber.New()
	app.Post("/webhooks/payment", ctrl.Handle)
	return app
}

func postNotification(t *testing.T, app *fiber.App, body []byte, sig, ts string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(HeaderSignature, sig)
	}
	if ts != "" {
		req.Header.Set(HeaderTimestamp, ts)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(raw, &parsed))
	return resp.StatusCode, parsed
}

func TestControllerAppliesNotification(t *testing.T) {
	manager := session.NewManager(&staticFetcher{payment: trackedPayment(models.StatusPending)}, nil, nil, nil)
	sess := manager.Track(context.Background(), trackedPayment(models.StatusCreated), nil, session.PollerConfig{Interval: time.Hour})

	sink := &recordingSink{}
	app := newTestApp(t, manager, sink)

	raw, sig, ts := signedNotification(t, `{"id":"pay_1","status":"completed"}`, time.Now())
	status, body := postNotification(t, app, raw, sig, ts)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["applied"])
	assert.Equal(t, false, body["orphan"])
	assert.Equal(t, models.StatusCompleted, sess.Status())
	require.Len(t, sink.events, 1)
	assert.Equal(t, models.StatusCompleted, sink.events[0])
}

func TestControllerAcknowledgesOrphan(t *testing.T) {
	manager := session.NewManager(&staticFetcher{payment: trackedPayment(models.StatusPending)}, nil, nil, nil)
	sink := &recordingSink{}
	app := newTestApp(t, manager, sink)

	raw, sig, ts := signedNotification(t, `{"id":"pay_untracked","status":"completed"}`, time.Now())
	status, body := postNotification(t, app, raw, sig, ts)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["applied"])
	assert.Equal(t, true, body["orphan"])
	assert.Len(t, sink.events, 1, "orphan events still reach the sink")
}

func TestControllerRejectsUnsigned(t *testing.T) {
	manager := session.NewManager(&staticFetcher{payment: trackedPayment(models.StatusPending)}, nil, nil, nil)
	app := newTestApp(t, manager, nil)

	status, body := postNotification(t, app, []byte(`{"id":"pay_1","status":"completed"}`), "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, body, "error")
}

func TestControllerRejectsMalformedSignedBody(t *testing.T) {
	manager := session.NewManager(&staticFetcher{payment: trackedPayment(models.StatusPending)}, nil, nil, nil)
	app := newTestApp(t, manager, nil)

	raw, sig, ts := signedNotification(t, `{not json`, time.Now())
	status, _ := postNotification(t, app, raw, sig, ts)
	assert.Equal(t, fiber.StatusBadRequest, status)
}
