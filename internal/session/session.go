package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"asiancryptopay-go/internal/models"
	"asiancryptopay-go/internal/telemetry"
)

// TransitionFunc is invoked exactly once per applied status transition,
// after the transition has been committed and outside the session lock, so
// it may call back into the session or release it. The snapshot carries the
// state after the transition.
type TransitionFunc func(from, to models.Status, snapshot models.Payment)

// Session tracks one payment through its lifecycle:
//
//	created -> pending -> {completed, cancelled, expired}
//
// Terminal states are absorbing. All status writes go through Apply, which
// only moves forward along the graph, so late or duplicate signals from the
// poller and the webhook path cannot regress the state.
type Session struct {
	mu           sync.Mutex
	payment      models.Payment
	startedAt    time.Time
	discarded    bool
	onTransition TransitionFunc

	log     *zap.Logger
	metrics *telemetry.Metrics
}

func New(payment *models.Payment, onTransition TransitionFunc, log *zap.Logger, metrics *telemetry.Metrics) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewNopMetrics()
	}
	return &Session{
		payment:      *payment,
		startedAt:    time.Now(),
		onTransition: onTransition,
		log:          log.With(zap.String("payment_id", payment.ID)),
		metrics:      metrics,
	}
}

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payment.ID
}

func (s *Session) Status() models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payment.Status
}

func (s *Session) Terminal() bool {
	return s.Status().Terminal()
}

// StartedAt is the local creation instant; poll deadlines are measured
// from it.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Snapshot returns a read-only copy of the payment record.
func (s *Session) Snapshot() models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() models.Payment {
	p := s.payment
	if p.Metadata != nil {
		m := make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			m[k] = v
		}
		p.Metadata = m
	}
	return p
}

// Apply feeds an observed payment record into the state machine. The
// transition is applied only when the incoming status advances along the
// lifecycle graph and the session is neither terminal nor discarded.
// Returns true when a transition was applied.
func (s *Session) Apply(p *models.Payment) bool {
	s.mu.Lock()

	if s.discarded || s.payment.Status.Terminal() {
		s.mu.Unlock()
		return false
	}
	incoming := p.Status
	if incoming == s.payment.Status || incoming.Rank() < s.payment.Status.Rank() {
		s.mu.Unlock()
		return false
	}

	from := s.payment.Status
	s.mergeLocked(p)
	s.payment.Status = incoming
	if p.UpdatedAt.IsZero() {
		s.payment.UpdatedAt = time.Now().UTC()
	} else {
		s.payment.UpdatedAt = p.UpdatedAt
	}
	snap := s.snapshotLocked()
	notify := s.onTransition
	s.mu.Unlock()

	s.metrics.StatusTransitions.Add(context.Background(), 1)
	s.log.Info("status transition",
		zap.String("from", from.String()),
		zap.String("to", incoming.String()),
	)
	if notify != nil {
		notify(from, incoming, snap)
	}
	return true
}

// mergeLocked folds the incoming record into the stored one. Webhook bodies
// carry only the fields that changed, so empty incoming fields never clobber
// what the session already holds.
func (s *Session) mergeLocked(p *models.Payment) {
	if p.MerchantID != "" {
		s.payment.MerchantID = p.MerchantID
	}
	if !p.Amount.IsZero() {
		s.payment.Amount = p.Amount
	}
	if p.Currency != "" {
		s.payment.Currency = p.Currency
	}
	if !p.CryptoAmount.IsZero() {
		s.payment.CryptoAmount = p.CryptoAmount
	}
	if p.CryptoCurrency != "" {
		s.payment.CryptoCurrency = p.CryptoCurrency
	}
	if p.Description != "" {
		s.payment.Description = p.Description
	}
	if p.OrderID != "" {
		s.payment.OrderID = p.OrderID
	}
	if p.CustomerEmail != "" {
		s.payment.CustomerEmail = p.CustomerEmail
	}
	if p.CustomerName != "" {
		s.payment.CustomerName = p.CustomerName
	}
	if p.Address != "" {
		s.payment.Address = p.Address
	}
	if p.QRCodeURL != "" {
		s.payment.QRCodeURL = p.QRCodeURL
	}
	if !p.CreatedAt.IsZero() {
		s.payment.CreatedAt = p.CreatedAt
	}
	if !p.ExpiresAt.IsZero() {
		s.payment.ExpiresAt = p.ExpiresAt
	}
	if p.Metadata != nil {
		s.payment.Metadata = p.Metadata
	}
}

// ExpiredBy reports whether the payment's expiry has passed without a
// terminal status being observed.
func (s *Session) ExpiredBy(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded || s.payment.Status.Terminal() || s.payment.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.payment.ExpiresAt)
}

// Expire moves the session to the expired state locally, without a server
// round trip. Returns true when the transition was applied.
func (s *Session) Expire() bool {
	s.mu.Lock()

	if s.discarded || s.payment.Status.Terminal() {
		s.mu.Unlock()
		return false
	}

	from := s.payment.Status
	s.payment.Status = models.StatusExpired
	s.payment.UpdatedAt = time.Now().UTC()
	snap := s.snapshotLocked()
	notify := s.onTransition
	s.mu.Unlock()

	s.metrics.StatusTransitions.Add(context.Background(), 1)
	s.log.Info("payment expired locally", zap.String("from", from.String()))
	if notify != nil {
		notify(from, models.StatusExpired, snap)
	}
	return true
}

// Discard marks the session dead. In-flight poll or webhook results arriving
// afterwards are dropped.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = true
}

func (s *Session) Discarded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}
