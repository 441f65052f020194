package models

import (
	"fmt"
)

// fiat currencies of the supported markets, keyed by ISO 4217 code.
var supportedFiat = map[string]bool{
	"MYR": true, // Malaysia
	"SGD": true, // Singapore
	"IDR": true, // Indonesia
	"THB": true, // Thailand
	"BND": true, // Brunei
	"KHR": true, // Cambodia
	"VND": true, // Vietnam
	"LAK": true, // Laos
}

// PaymentDetails describes a payment to be created. Immutable once built;
// construct via NewDetailsBuilder.
type PaymentDetails struct {
	Amount         Amount            `json:"amount"`
	Currency       string            `json:"currency"`
	CryptoCurrency string            `json:"crypto_currency"`
	Description    string            `json:"description"`
	OrderID        string            `json:"order_id,omitempty"`
	CustomerEmail  string            `json:"customer_email,omitempty"`
	CustomerName   string            `json:"customer_name,omitempty"`
	CallbackURL    string            `json:"callback_url,omitempty"`
	SuccessURL     string            `json:"success_url,omitempty"`
	CancelURL      string            `json:"cancel_url,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Validate rejects malformed details before any network call is made.
func (d PaymentDetails) Validate() error {
	if !d.Amount.Positive() {
		return fmt.Errorf("amount must be positive, got %s", d.Amount)
	}
	if !supportedFiat[d.Currency] {
		return fmt.Errorf("unsupported fiat currency %q", d.Currency)
	}
	if d.CryptoCurrency == "" {
		return fmt.Errorf("crypto currency is required")
	}
	return nil
}

// DetailsBuilder assembles PaymentDetails field by field.
type DetailsBuilder struct {
	details PaymentDetails
}

func NewDetailsBuilder(amount Amount, currency, cryptoCurrency string) *DetailsBuilder {
	return &DetailsBuilder{details: PaymentDetails{
		Amount:         amount,
		Currency:       currency,
		CryptoCurrency: cryptoCurrency,
	}}
}

func (b *DetailsBuilder) Description(s string) *DetailsBuilder {
	b.details.Description = s
	return b
}

func (b *DetailsBuilder) OrderID(s string) *DetailsBuilder {
	b.details.OrderID = s
	return b
}

func (b *DetailsBuilder) Customer(email, name string) *DetailsBuilder {
	b.details.CustomerEmail = email
	b.details.CustomerName = name
	return b
}

func (b *DetailsBuilder) CallbackURL(s string) *DetailsBuilder {
	b.details.CallbackURL = s
	return b
}

func (b *DetailsBuilder) SuccessURL(s string) *DetailsBuilder {
	b.details.SuccessURL = s
	return b
}

func (b *DetailsBuilder) CancelURL(s string) *DetailsBuilder {
	b.details.CancelURL = s
	return b
}

func (b *DetailsBuilder) Metadata(m map[string]string) *DetailsBuilder {
	b.details.Metadata = m
	return b
}

// Build returns the assembled details by value; further builder calls do not
// affect the returned copy.
func (b *DetailsBuilder) Build() PaymentDetails {
	d := b.details
	if d.Metadata != nil {
		m := make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			m[k] = v
		}
		d.Metadata = m
	}
	return d
}
