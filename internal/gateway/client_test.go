package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asiancryptopay-go/internal/models"
	"asiancryptopay-go/internal/signer"
)

const testSecret = "test-api-key"

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		BaseURL:     srv.URL,
		MerchantID:  "merchant-1",
		CountryCode: "MY",
		TestMode:    true,
	}, signer.New(testSecret), nil, nil)
	return c, srv
}

func paymentJSON(id string, status models.Status) string {
	return `{
		"id": "` + id + `",
		"merchant_id": "merchant-1",
		"amount": "10.50000000",
		"currency": "MYR",
		"crypto_amount": "0.00021000",
		"crypto_currency": "BTC",
		"address": "bc1qexample",
		"qr_code_url": "https://gateway.example/qr/` + id + `",
		"status": "` + string(status) + `",
		"created_at": "2026-08-29T10:00:00Z",
		"updated_at": "2026-08-29T10:00:00Z",
		"expires_at": "2026-08-29T10:15:00Z"
	}`
}

func validDetails() models.PaymentDetails {
	return models.NewDetailsBuilder(models.AmountFromFloat(10.5), "MYR", "BTC").
		Description("kiosk purchase").
		Build()
}

func TestCreatePayment(t *testing.T) {
	var gotBody []byte
	var gotReq *http.Request
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(paymentJSON("pay_1", models.StatusCreated)))
	})

	payment, err := c.CreatePayment(context.Background(), validDetails())
	require.NoError(t, err)

	assert.Equal(t, "pay_1", payment.ID)
	assert.Equal(t, models.StatusCreated, payment.Status)
	assert.Equal(t, "10.50000000", payment.Amount.String())
	assert.Equal(t, "bc1qexample", payment.Address)
	assert.False(t, payment.ExpiresAt.IsZero())

	assert.Equal(t, http.MethodPost, gotReq.Method)
	assert.Equal(t, "/payments", gotReq.URL.Path)
	assert.Equal(t, "merchant-1", gotReq.Header.Get("X-ACP-Merchant-Id"))
	assert.NotEmpty(t, gotReq.Header.Get("X-ACP-Nonce"))
	assert.NotEmpty(t, gotReq.Header.Get("X-ACP-Timestamp"))

	// signature must match a recomputation with the shared secret
	expected := signer.New(testSecret).Sign(
		http.MethodPost, "/payments",
		gotReq.Header.Get("X-ACP-Timestamp"),
		gotReq.Header.Get("X-ACP-Nonce"),
		gotBody,
	)
	assert.Equal(t, expected, gotReq.Header.Get("X-ACP-Signature"))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &sent))
	assert.Equal(t, "10.50000000", sent["amount"])
	assert.Equal(t, "merchant-1", sent["merchant_id"])
	assert.Equal(t, "MY", sent["country_code"])
	assert.Equal(t, true, sent["test_mode"])
	assert.NotEmpty(t, sent["order_id"], "order id must be generated for gateway dedupe")
}

func TestCreatePaymentKeepsOrderID(t *testing.T) {
	var gotBody []byte
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(paymentJSON("pay_1", models.StatusCreated)))
	})

	details := models.NewDetailsBuilder(models.AmountFromFloat(10.5), "MYR", "BTC").
		OrderID("ord-fixed").
		Build()
	_, err := c.CreatePayment(context.Background(), details)
	require.NoError(t, err)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &sent))
	assert.Equal(t, "ord-fixed", sent["order_id"])
}

func TestCreatePaymentValidationBeforeNetwork(t *testing.T) {
	calls := 0
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	bad := models.NewDetailsBuilder(models.AmountFromFloat(-5), "MYR", "BTC").Build()
	_, err := c.CreatePayment(context.Background(), bad)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, calls)
}

func TestGetPayment(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/payments/pay_1", r.URL.Path)
		w.Write([]byte(paymentJSON("pay_1", models.StatusPending)))
	})

	payment, err := c.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, payment.Status)
}

func TestCancelPayment(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments/pay_1/cancel", r.URL.Path)
		w.Write([]byte(paymentJSON("pay_1", models.StatusCancelled)))
	})

	payment, err := c.CancelPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, payment.Status)
}

func TestListPayments(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "completed", r.URL.Query().Get("status"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"payments": [` + paymentJSON("pay_1", models.StatusCompleted) + `], "total": 1}`))
	})

	list, err := c.ListPayments(context.Background(), models.PaymentFilters{
		Status: models.StatusCompleted,
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Payments, 1)
	assert.Equal(t, "pay_1", list.Payments[0].ID)
}

func TestListPaymentsSignatureCoversQuery(t *testing.T) {
	var gotReq *http.Request
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		w.Write([]byte(`{"payments": [], "total": 0}`))
	})

	_, err := c.ListPayments(context.Background(), models.PaymentFilters{
		Status: models.StatusCompleted,
		Limit:  10,
	})
	require.NoError(t, err)

	require.NotEmpty(t, gotReq.URL.RawQuery)
	// the signed path includes the encoded query, so tampering with the
	// filters breaks the signature
	expected := signer.New(testSecret).Sign(
		http.MethodGet, "/payments?"+gotReq.URL.RawQuery,
		gotReq.Header.Get("X-ACP-Timestamp"),
		gotReq.Header.Get("X-ACP-Nonce"),
		nil,
	)
	assert.Equal(t, expected, gotReq.Header.Get("X-ACP-Signature"))
	assert.NotEqual(t,
		signer.New(testSecret).Sign(
			http.MethodGet, "/payments",
			gotReq.Header.Get("X-ACP-Timestamp"),
			gotReq.Header.Get("X-ACP-Nonce"),
			nil,
		),
		gotReq.Header.Get("X-ACP-Signature"),
	)
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrValidation},
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrServer},
		{http.StatusBadGateway, ErrServer},
	}
	for _, tt := range tests {
		c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":{"code":"e_code","message":"nope"}}`))
		})
		_, err := c.GetPayment(context.Background(), "pay_1")
		require.Error(t, err)
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)

		var ge *Error
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, tt.status, ge.HTTPStatus)
		assert.Equal(t, "e_code", ge.Code)
		assert.Equal(t, "nope", ge.Message)
	}
}

func TestTransientClassification(t *testing.T) {
	assert.True(t, IsTransient(&Error{Kind: KindNetwork}))
	assert.True(t, IsTransient(&Error{Kind: KindRateLimited}))
	assert.False(t, IsTransient(&Error{Kind: KindServer}))
	assert.False(t, IsTransient(&Error{Kind: KindAuth}))
	assert.False(t, IsTransient(nil))
}

func TestProtocolErrorOnMalformedBody(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})
	_, err := c.GetPayment(context.Background(), "pay_1")
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestProtocolErrorOnMissingID(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"created"}`))
	})
	_, err := c.GetPayment(context.Background(), "pay_1")
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(Config{
		BaseURL:    srv.URL,
		MerchantID: "merchant-1",
		HTTPClient: &http.Client{Timeout: time.Second},
	}, signer.New(testSecret), nil, nil)

	_, err := c.GetPayment(context.Background(), "pay_1")
	assert.ErrorIs(t, err, ErrNetwork)
	assert.True(t, IsTransient(err))
}
