// Package waiter turns the coordinator's single-shot acquire into a
// blocking one. A Waiter loops on Acquire, parks on the release subject
// after a rejection and retries with short jitter after a lost write race.
// Wake-up delivery is advisory, so parked callers also poll on a fallback
// interval instead of trusting the bus alone.
package waiter

import (
	"context"
	"math/rand"
	"time"

	"github.com/mirkobrombin/go-gate/v1/coordinator"
	"github.com/mirkobrombin/go-gate/v1/eventbus"
	"github.com/mirkobrombin/go-gate/v1/metrics"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultRetryJitter  = 50 * time.Millisecond
)

// Waiter blocks callers until capacity is available on a domain.
type Waiter struct {
	coord *coordinator.Coordinator
	bus   eventbus.Bus

	pollInterval time.Duration
	retryJitter  time.Duration
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithPollInterval sets the fallback re-check interval used while parked.
func WithPollInterval(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithRetryJitter bounds the random sleep after a lost write race.
func WithRetryJitter(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.retryJitter = d
		}
	}
}

// New creates a Waiter. bus may be nil, in which case parked callers rely
// on the poll interval alone.
func New(c *coordinator.Coordinator, bus eventbus.Bus, opts ...Option) *Waiter {
	w := &Waiter{
		coord:        c,
		bus:          bus,
		pollInterval: defaultPollInterval,
		retryJitter:  defaultRetryJitter,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Acquire blocks until callerID holds a slot on the domain or ctx ends.
func (w *Waiter) Acquire(ctx context.Context, bucket, counterKey string, limit, timeoutMinutes int, callerID string) error {
	for {
		out, err := w.coord.Acquire(ctx, bucket, counterKey, limit, timeoutMinutes, callerID)
		if err != nil {
			return err
		}
		switch out {
		case coordinator.Acquired:
			return nil
		case coordinator.Retry:
			if err := w.sleep(ctx, time.Duration(rand.Int63n(int64(w.retryJitter)))+time.Millisecond); err != nil {
				return err
			}
		case coordinator.Rejected:
			if err := w.park(ctx, bucket, counterKey); err != nil {
				return err
			}
		}
	}
}

// Release frees callerID's slot on the domain.
func (w *Waiter) Release(ctx context.Context, bucket, counterKey, callerID string) error {
	_, err := w.coord.Release(ctx, bucket, counterKey, callerID)
	return err
}

// park waits for a release signal or the fallback poll interval.
func (w *Waiter) park(ctx context.Context, bucket, counterKey string) error {
	metrics.WaiterGauge.Inc()
	defer metrics.WaiterGauge.Dec()

	if w.bus == nil {
		return w.sleep(ctx, w.pollInterval)
	}

	subject := eventbus.ReleaseSubject(bucket, counterKey)
	ch, err := w.bus.Subscribe(ctx, subject)
	if err != nil {
		return err
	}
	defer func() { _ = w.bus.Unsubscribe(context.Background(), subject, ch) }()

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Waiter) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
