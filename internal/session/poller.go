package session

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"asiancryptopay-go/internal/gateway"
	"asiancryptopay-go/internal/models"
	"asiancryptopay-go/internal/telemetry"
)

// Fetcher retrieves the current record for a payment. *gateway.Client
// satisfies it.
type Fetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
}

// PollerConfig bounds the polling schedule for one session.
type PollerConfig struct {
	// Interval is the base tick period. Defaults to 5s.
	Interval time.Duration
	// MaxInterval caps the backoff growth on transient failures.
	// Defaults to 8x the base interval.
	MaxInterval time.Duration
	// Deadline bounds total polling time, measured from the session's
	// creation instant. Zero means no deadline beyond payment expiry.
	Deadline time.Duration
	// OnError receives the non-transient error that stopped the poller,
	// if any. Transient failures are retried with backoff, not reported.
	OnError func(error)
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 8 * c.Interval
	}
	return c
}

// Poller drives one session with repeated status checks until the session
// is terminal, the deadline passes, or a non-transient error occurs.
type Poller struct {
	fetch   Fetcher
	session *Session
	cfg     PollerConfig

	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}

	log     *zap.Logger
	metrics *telemetry.Metrics
}

// StartPoller begins polling in a background goroutine. Stop is idempotent;
// Done is closed once the loop has released its timer and exited.
func StartPoller(ctx context.Context, fetch Fetcher, sess *Session, cfg PollerConfig, log *zap.Logger, metrics *telemetry.Metrics) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewNopMetrics()
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Poller{
		fetch:   fetch,
		session: sess,
		cfg:     cfg.withDefaults(),
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     log.With(zap.String("payment_id", sess.ID())),
		metrics: metrics,
	}
	go p.run(ctx)
	return p
}

// Stop cancels the polling loop. Safe to call any number of times.
func (p *Poller) Stop() {
	p.stopOnce.Do(p.cancel)
}

// Done is closed when the polling loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// newPollBackoff builds the retry schedule for transient failures. The base
// interval is consumed up front, so the first failure already waits twice
// the base and growth continues from there up to MaxInterval.
func newPollBackoff(cfg PollerConfig) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.Interval
	bo.MaxInterval = cfg.MaxInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	rewindPollBackoff(bo)
	return bo
}

// rewindPollBackoff restarts the schedule after a successful poll. NextBackOff
// hands out the current interval before multiplying, so the base interval is
// discarded here to keep the first retry at twice the base.
func rewindPollBackoff(bo *backoff.ExponentialBackOff) {
	bo.Reset()
	bo.NextBackOff()
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	defer p.cancel()

	bo := newPollBackoff(p.cfg)

	var deadline time.Time
	if p.cfg.Deadline > 0 {
		deadline = p.session.StartedAt().Add(p.cfg.Deadline)
	}

	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		now := time.Now()
		if p.session.ExpiredBy(now) {
			p.session.Expire()
			return
		}
		if p.session.Terminal() || p.session.Discarded() {
			return
		}
		if !deadline.IsZero() && now.After(deadline) {
			p.log.Debug("poll deadline reached")
			return
		}

		interval := p.cfg.Interval
		start := time.Now()
		payment, err := p.fetch.GetPayment(ctx, p.session.ID())
		p.metrics.StatusPolls.Add(ctx, 1)
		p.metrics.PollDuration.Record(ctx, time.Since(start).Seconds())

		switch {
		case err == nil:
			rewindPollBackoff(bo)
			p.session.Apply(payment)
			if p.session.Terminal() {
				return
			}
		case gateway.IsTransient(err):
			// double up to the ceiling, reset on next success
			interval = bo.NextBackOff()
			p.log.Warn("transient poll failure, backing off",
				zap.Duration("next_interval", interval),
				zap.Error(err),
			)
		default:
			if ctx.Err() != nil {
				return
			}
			p.log.Error("poll failed", zap.Error(err))
			if p.cfg.OnError != nil {
				p.cfg.OnError(err)
			}
			return
		}

		if p.session.ExpiredBy(time.Now()) {
			p.session.Expire()
			return
		}
		timer.Reset(interval)
	}
}
