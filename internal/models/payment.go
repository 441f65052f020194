package models

import (
	"time"

	json "github.com/goccy/go-json"
)

// Payment is the gateway's record of a payment. Timestamps are RFC 3339 in
// UTC. Instances are snapshots; the session owning the payment is the single
// writer of its status.
type Payment struct {
	ID             string            `json:"id"`
	MerchantID     string            `json:"merchant_id"`
	Amount         Amount            `json:"amount"`
	Currency       string            `json:"currency"`
	CryptoAmount   Amount            `json:"crypto_amount"`
	CryptoCurrency string            `json:"crypto_currency"`
	Description    string            `json:"description,omitempty"`
	OrderID        string            `json:"order_id,omitempty"`
	CustomerEmail  string            `json:"customer_email,omitempty"`
	CustomerName   string            `json:"customer_name,omitempty"`
	Address        string            `json:"address"`
	QRCodeURL      string            `json:"qr_code_url"`
	Status         Status            `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ExpiresAt      time.Time         `json:"expires_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func (p *Payment) IsCompleted() bool { return p.Status == StatusCompleted }
func (p *Payment) IsPending() bool   { return p.Status == StatusPending }
func (p *Payment) IsCancelled() bool { return p.Status == StatusCancelled }
func (p *Payment) IsExpired() bool   { return p.Status == StatusExpired }

// ParsePayment decodes a payment from its wire form.
func ParsePayment(data []byte) (*Payment, error) {
	var p Payment
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
