package events

import (
	"time"

	"asiancryptopay-go/internal/models"
)

// StatusEvent is the fleet-wide record of one observed payment lifecycle
// signal, published to the payment-events topic.
type StatusEvent struct {
	PaymentID  string        `json:"payment_id"`
	OrderID    string        `json:"order_id,omitempty"`
	MerchantID string        `json:"merchant_id,omitempty"`
	Status     models.Status `json:"status"`
	Applied    bool          `json:"applied"`
	Amount     models.Amount `json:"amount"`
	Currency   string        `json:"currency"`
	OccurredAt time.Time     `json:"occurred_at"`
}
