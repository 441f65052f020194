package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"asiancryptopay-go/internal/models"
	"asiancryptopay-go/internal/signer"
	"asiancryptopay-go/internal/telemetry"
)

const (
	headerSignature = "X-ACP-Signature"
	headerTimestamp = "X-ACP-Timestamp"
	headerNonce     = "X-ACP-Nonce"
	headerMerchant  = "X-ACP-Merchant-Id"
)

// Config carries the merchant credentials and gateway endpoint.
type Config struct {
	BaseURL     string
	MerchantID  string
	CountryCode string
	TestMode    bool

	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
}

// Client issues signed requests against the payment gateway and maps
// responses and failures to typed errors.
type Client struct {
	cfg     Config
	signer  *signer.Signer
	http    *http.Client
	log     *zap.Logger
	tracer  trace.Tracer
	metrics *telemetry.Metrics
}

func NewClient(cfg Config, sig *signer.Signer, log *zap.Logger, metrics *telemetry.Metrics) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewNopMetrics()
	}
	return &Client{
		cfg:     cfg,
		signer:  sig,
		http:    hc,
		log:     log,
		tracer:  otel.Tracer("gateway/client"),
		metrics: metrics,
	}
}

type createRequest struct {
	models.PaymentDetails
	MerchantID  string `json:"merchant_id"`
	CountryCode string `json:"country_code"`
	TestMode    bool   `json:"test_mode"`
}

// CreatePayment registers a new payment and returns the gateway's record,
// including the receiving address and QR code reference. Details without an
// order id get a generated one so the gateway can deduplicate retries.
func (c *Client) CreatePayment(ctx context.Context, details models.PaymentDetails) (*models.Payment, error) {
	ctx, span := c.tracer.Start(ctx, "CreatePayment",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	if err := details.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, wrapError(KindValidation, "invalid payment details", err)
	}
	if details.OrderID == "" {
		details.OrderID = "order-" + uuid.NewString()
	}

	span.SetAttributes(
		attribute.String("payment.order_id", details.OrderID),
		attribute.String("payment.currency", details.Currency),
		attribute.String("payment.crypto_currency", details.CryptoCurrency),
	)

	req := createRequest{
		PaymentDetails: details,
		MerchantID:     c.cfg.MerchantID,
		CountryCode:    c.cfg.CountryCode,
		TestMode:       c.cfg.TestMode,
	}

	body, err := c.do(ctx, http.MethodPost, "/payments", nil, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	payment, err := parsePayment(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.metrics.PaymentsCreated.Add(ctx, 1)
	span.SetStatus(codes.Ok, "")
	c.log.Info("payment created",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
		zap.String("status", payment.Status.String()),
	)
	return payment, nil
}

// GetPayment fetches the current record for a payment. Idempotent and safe
// to retry.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	ctx, span := c.tracer.Start(ctx, "GetPayment",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("payment.id", paymentID)),
	)
	defer span.End()

	if paymentID == "" {
		return nil, newError(KindValidation, "payment id is required")
	}

	body, err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	payment, err := parsePayment(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return payment, nil
}

// CancelPayment asks the gateway to cancel a payment and returns the
// updated record.
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	ctx, span := c.tracer.Start(ctx, "CancelPayment",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("payment.id", paymentID)),
	)
	defer span.End()

	if paymentID == "" {
		return nil, newError(KindValidation, "payment id is required")
	}

	body, err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/cancel", nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	payment, err := parsePayment(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.metrics.PaymentsCancelled.Add(ctx, 1)
	span.SetStatus(codes.Ok, "")
	c.log.Info("payment cancelled", zap.String("payment_id", payment.ID))
	return payment, nil
}

// PaymentList is one page of a payment listing.
type PaymentList struct {
	Payments []models.Payment `json:"payments"`
	Total    int              `json:"total"`
}

// ListPayments returns payments matching the filters.
func (c *Client) ListPayments(ctx context.Context, filters models.PaymentFilters) (*PaymentList, error) {
	ctx, span := c.tracer.Start(ctx, "ListPayments",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	body, err := c.do(ctx, http.MethodGet, "/payments", filters.Query(), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var list PaymentList
	if err := json.Unmarshal(body, &list); err != nil {
		perr := wrapError(KindProtocol, "malformed payment list response", err)
		span.RecordError(perr)
		span.SetStatus(codes.Error, perr.Error())
		return nil, perr
	}
	span.SetStatus(codes.Ok, "")
	return &list, nil
}

// do serializes, signs and issues one request, returning the raw response
// body of a 2xx reply or a typed error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, wrapError(KindValidation, "failed to serialize request", err)
		}
	}

	// The canonical path covered by the signature includes the encoded
	// query, so filters cannot be altered in transit.
	signPath := path
	if len(query) > 0 {
		signPath += "?" + query.Encode()
	}
	endpoint := c.cfg.BaseURL + signPath

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, wrapError(KindValidation, "failed to build request", err)
	}

	ts := signer.Timestamp(time.Now())
	nonce := c.signer.Nonce()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, c.signer.Sign(method, signPath, ts, nonce, body))
	req.Header.Set(headerTimestamp, ts)
	req.Header.Set(headerNonce, nonce)
	req.Header.Set(headerMerchant, c.cfg.MerchantID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapError(KindNetwork, fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError(KindNetwork, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) statusError(status int, body []byte) *Error {
	var kind Kind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status >= 500:
		kind = KindServer
	default:
		kind = KindValidation
	}

	e := &Error{Kind: kind, HTTPStatus: status, Message: http.StatusText(status)}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Message != "" {
		e.Code = eb.Error.Code
		e.Message = eb.Error.Message
	}
	c.log.Warn("gateway request rejected",
		zap.Int("status", status),
		zap.String("kind", kind.String()),
		zap.String("code", e.Code),
	)
	return e
}

func parsePayment(body []byte) (*models.Payment, error) {
	payment, err := models.ParsePayment(body)
	if err != nil {
		return nil, wrapError(KindProtocol, "malformed payment response", err)
	}
	if payment.ID == "" {
		return nil, newError(KindProtocol, "payment response missing id")
	}
	return payment, nil
}
