// Package eventbus provides a small pub/sub mechanism used to signal lock
// lifecycle transitions across callers. The coordinator publishes a release
// subject whenever capacity may have been freed, so waiting callers can
// re-attempt immediately instead of sleeping out their full backoff.
// Delivery is advisory: lock correctness never depends on it.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
)

// Bus is the pub/sub surface consumed by the coordinator and by caller
// adapters waiting for capacity.
type Bus interface {
	Publish(ctx context.Context, subject string) error
	Subscribe(ctx context.Context, subject string) (chan struct{}, error)
	Unsubscribe(ctx context.Context, subject string, ch chan struct{}) error
}

// ReleaseSubject returns the subject published when capacity may have been
// freed on the given coordination domain.
func ReleaseSubject(bucket, counterKey string) string {
	return "release:" + bucket + "/" + counterKey
}

// InMemoryBus is a local implementation of Bus mainly for testing and
// single-process deployments.
type InMemoryBus struct {
	mu        sync.Mutex
	subs      map[string][]chan struct{}
	published uint64
	delivered uint64
}

// NewInMemoryBus returns a new InMemoryBus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{subs: make(map[string][]chan struct{})}
}

// Publish implements Bus.Publish.
func (b *InMemoryBus) Publish(ctx context.Context, subject string) error {
	b.mu.Lock()
	chans := append([]chan struct{}(nil), b.subs[subject]...)
	b.mu.Unlock()
	atomic.AddUint64(&b.published, 1)
	for _, ch := range chans {
		select {
		case ch <- struct{}{}:
			atomic.AddUint64(&b.delivered, 1)
		default:
		}
	}
	return nil
}

// Subscribe implements Bus.Subscribe.
func (b *InMemoryBus) Subscribe(ctx context.Context, subject string) (chan struct{}, error) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[subject] = append(b.subs[subject], ch)
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		_ = b.Unsubscribe(context.Background(), subject, ch)
	}()
	return ch, nil
}

// Unsubscribe implements Bus.Unsubscribe.
func (b *InMemoryBus) Unsubscribe(ctx context.Context, subject string, ch chan struct{}) error {
	b.mu.Lock()
	subs := b.subs[subject]
	for i, c := range subs {
		if c == ch {
			subs[i] = subs[len(subs)-1]
			subs = subs[:len(subs)-1]
			b.subs[subject] = subs
			close(c)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subs, subject)
	}
	b.mu.Unlock()
	return nil
}

// Metrics reports publish and delivery counts.
type Metrics struct {
	Published uint64
	Delivered uint64
}

// Metrics returns the published and delivered counts.
func (b *InMemoryBus) Metrics() Metrics {
	return Metrics{
		Published: atomic.LoadUint64(&b.published),
		Delivered: atomic.LoadUint64(&b.delivered),
	}
}
