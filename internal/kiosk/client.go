package kiosk

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"asiancryptopay-go/internal/gateway"
	"asiancryptopay-go/internal/models"
	"asiancryptopay-go/internal/session"
	"asiancryptopay-go/internal/signer"
	"asiancryptopay-go/internal/telemetry"
	"asiancryptopay-go/internal/webhook"
)

const defaultEndpoint = "https://api.asiancryptopay.com"

var supportedCountries = map[string]bool{
	"MY": true, "SG": true, "ID": true, "TH": true,
	"BN": true, "KH": true, "VN": true, "LA": true,
}

var defaultCryptos = []string{"BTC", "ETH", "USDT", "USDC", "BNB"}

// Config is the explicit SDK configuration. Required: APIKey, MerchantID,
// CountryCode.
type Config struct {
	APIKey      string
	MerchantID  string
	CountryCode string

	// Endpoint overrides the production gateway URL.
	Endpoint string
	TestMode bool

	// SupportedCryptos limits which crypto currencies payments may use.
	// Defaults to BTC, ETH, USDT, USDC, BNB.
	SupportedCryptos []string

	// WebhookSecret signs inbound notifications. Defaults to APIKey.
	WebhookSecret string
	// SkewWindow bounds notification timestamp drift.
	SkewWindow time.Duration

	Poll session.PollerConfig

	Logger  *zap.Logger
	Metrics *telemetry.Metrics
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if c.MerchantID == "" {
		return fmt.Errorf("merchant id is required")
	}
	if !supportedCountries[c.CountryCode] {
		return fmt.Errorf("unsupported country code %q", c.CountryCode)
	}
	return nil
}

// Client is the SDK entry point: it composes the request signer, the
// gateway transport, the session manager and the webhook verifier behind
// one surface for the kiosk application.
type Client struct {
	cfg      Config
	cryptos  map[string]bool
	gateway  *gateway.Client
	manager  *session.Manager
	verifier *webhook.Verifier
	log      *zap.Logger
}

// OrphanFunc re-exported for callers wiring the orphan callback.
type OrphanFunc = session.OrphanFunc

func NewClient(cfg Config, onOrphan OrphanFunc) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.WebhookSecret == "" {
		cfg.WebhookSecret = cfg.APIKey
	}
	if len(cfg.SupportedCryptos) == 0 {
		cfg.SupportedCryptos = defaultCryptos
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NewNopMetrics()
	}

	cryptos := make(map[string]bool, len(cfg.SupportedCryptos))
	for _, c := range cfg.SupportedCryptos {
		cryptos[c] = true
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL:     cfg.Endpoint,
		MerchantID:  cfg.MerchantID,
		CountryCode: cfg.CountryCode,
		TestMode:    cfg.TestMode,
	}, signer.New(cfg.APIKey), log, metrics)

	mgr := session.NewManager(gw, onOrphan, log, metrics)
	verifier := webhook.NewVerifier(signer.New(cfg.WebhookSecret), cfg.SkewWindow, log, metrics)

	log.Info("sdk initialized", zap.String("country", cfg.CountryCode), zap.Bool("test_mode", cfg.TestMode))
	return &Client{
		cfg:      cfg,
		cryptos:  cryptos,
		gateway:  gw,
		manager:  mgr,
		verifier: verifier,
		log:      log,
	}, nil
}

// CreatePayment validates the details, creates the payment against the
// gateway and tracks it in a polled session. The returned session reports
// transitions through onTransition until a terminal state.
func (c *Client) CreatePayment(ctx context.Context, details models.PaymentDetails, onTransition session.TransitionFunc) (*session.Session, error) {
	if !c.cryptos[details.CryptoCurrency] {
		return nil, &gateway.Error{
			Kind:    gateway.KindValidation,
			Message: fmt.Sprintf("crypto currency %q is not enabled", details.CryptoCurrency),
		}
	}
	payment, err := c.gateway.CreatePayment(ctx, details)
	if err != nil {
		return nil, err
	}
	return c.manager.Track(ctx, payment, onTransition, c.cfg.Poll), nil
}

// GetPayment fetches a payment record without touching session state.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return c.gateway.GetPayment(ctx, paymentID)
}

// CancelPayment cancels the payment at the gateway and feeds the result
// into the tracked session, if any.
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	payment, err := c.gateway.CancelPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if sess := c.manager.Get(paymentID); sess != nil {
		c.manager.Dispatch(payment)
	}
	return payment, nil
}

// ListPayments returns payments matching the filters.
func (c *Client) ListPayments(ctx context.Context, filters models.PaymentFilters) (*gateway.PaymentList, error) {
	return c.gateway.ListPayments(ctx, filters)
}

// HandleWebhook verifies one inbound notification and routes it to the
// matching session. The orphan flag is set when no local session tracks the
// payment; the event is still returned to the caller.
func (c *Client) HandleWebhook(rawBody []byte, signatureHeader, timestampHeader string) (payment *models.Payment, orphan bool, err error) {
	payment, err = c.verifier.Verify(rawBody, signatureHeader, timestampHeader)
	if err != nil {
		return nil, false, err
	}
	orphan = c.manager.Get(payment.ID) == nil
	c.manager.Dispatch(payment)
	return payment, orphan, nil
}

// Verifier exposes the webhook verifier for hosting the notification
// endpoint out of process.
func (c *Client) Verifier() *webhook.Verifier {
	return c.verifier
}

// Manager exposes the session registry for the notification endpoint.
func (c *Client) Manager() *session.Manager {
	return c.manager
}

// Session returns the tracked session for a payment id, or nil.
func (c *Client) Session(paymentID string) *session.Session {
	return c.manager.Get(paymentID)
}

// Release stops tracking a payment. Idempotent.
func (c *Client) Release(paymentID string) {
	c.manager.Release(paymentID)
}

// Close releases every tracked session.
func (c *Client) Close() {
	c.manager.Shutdown()
}
