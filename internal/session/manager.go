package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"asiancryptopay-go/internal/models"
	"asiancryptopay-go/internal/telemetry"
)

// OrphanFunc receives verified notifications that match no tracked session.
type OrphanFunc func(payment *models.Payment)

type tracked struct {
	session *Session
	poller  *Poller
}

// Manager is the reconciliation point for poller results and webhook
// notifications: it tracks live sessions by payment id and routes verified
// events into the matching session's transition function.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*tracked

	fetch    Fetcher
	onOrphan OrphanFunc

	log     *zap.Logger
	metrics *telemetry.Metrics
}

func NewManager(fetch Fetcher, onOrphan OrphanFunc, log *zap.Logger, metrics *telemetry.Metrics) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewNopMetrics()
	}
	return &Manager{
		entries:  make(map[string]*tracked),
		fetch:    fetch,
		onOrphan: onOrphan,
		log:      log,
		metrics:  metrics,
	}
}

// Track wraps a freshly created payment in a session and starts its poller.
func (m *Manager) Track(ctx context.Context, payment *models.Payment, onTransition TransitionFunc, cfg PollerConfig) *Session {
	sess := New(payment, onTransition, m.log, m.metrics)
	poller := StartPoller(ctx, m.fetch, sess, cfg, m.log, m.metrics)

	m.mu.Lock()
	m.entries[payment.ID] = &tracked{session: sess, poller: poller}
	m.mu.Unlock()

	return sess
}

// Get returns the tracked session for a payment id, or nil.
func (m *Manager) Get(paymentID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.entries[paymentID]; ok {
		return t.session
	}
	return nil
}

// Dispatch routes a verified payment record into its session. Events for
// untracked payments invoke the orphan callback. Returns true when a
// transition was applied.
func (m *Manager) Dispatch(payment *models.Payment) bool {
	m.mu.Lock()
	t, ok := m.entries[payment.ID]
	m.mu.Unlock()

	if !ok {
		m.metrics.OrphanEvents.Add(context.Background(), 1)
		m.log.Warn("orphan notification", zap.String("payment_id", payment.ID))
		if m.onOrphan != nil {
			m.onOrphan(payment)
		}
		return false
	}
	applied := t.session.Apply(payment)
	if t.session.Terminal() {
		t.poller.Stop()
	}
	return applied
}

// Release stops the session's poller, discards the session and drops it
// from the registry. Idempotent.
func (m *Manager) Release(paymentID string) {
	m.mu.Lock()
	t, ok := m.entries[paymentID]
	delete(m.entries, paymentID)
	m.mu.Unlock()

	if ok {
		t.poller.Stop()
		t.session.Discard()
	}
}

// Shutdown releases every tracked session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*tracked)
	m.mu.Unlock()

	for _, t := range entries {
		t.poller.Stop()
		t.session.Discard()
	}
}
