// Package status serves capacity snapshots for dashboards and admission
// probes. Snapshots come from the coordinator's read-only check and are held
// in a short-TTL ristretto cache, so a busy dashboard does not turn into a
// read storm on the object store. Cached answers are advisory and may lag
// the stored record by up to the TTL.
package status

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/mirkobrombin/go-gate/v1/coordinator"
)

// defaultTTL bounds how stale a served snapshot can be.
const defaultTTL = 2 * time.Second

// Inspector caches coordinator capacity checks.
type Inspector struct {
	coord *coordinator.Coordinator
	cache *ristretto.Cache
	ttl   time.Duration
	limit int
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithTTL sets how long a snapshot is served before a fresh check.
func WithTTL(d time.Duration) Option {
	return func(i *Inspector) {
		if d > 0 {
			i.ttl = d
		}
	}
}

// WithLimit sets the ceiling used when a counter record does not exist yet.
func WithLimit(n int) Option {
	return func(i *Inspector) {
		if n > 0 {
			i.limit = n
		}
	}
}

// NewInspector creates an Inspector on top of the given coordinator.
func NewInspector(c *coordinator.Coordinator, opts ...Option) *Inspector {
	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		panic(err)
	}
	i := &Inspector{
		coord: c,
		cache: rc,
		ttl:   defaultTTL,
		limit: coordinator.DefaultConcurrencyLimit,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func snapshotKey(bucket, counterKey string) string {
	return bucket + "/" + counterKey
}

// Status returns the capacity snapshot for a coordination domain, served
// from cache when a fresh enough one exists.
func (i *Inspector) Status(ctx context.Context, bucket, counterKey string) (coordinator.Status, error) {
	key := snapshotKey(bucket, counterKey)
	if v, ok := i.cache.Get(key); ok {
		return v.(coordinator.Status), nil
	}
	st, err := i.coord.Check(ctx, bucket, counterKey, i.limit)
	if err != nil {
		return coordinator.Status{}, err
	}
	i.cache.SetWithTTL(key, st, 1, i.ttl)
	i.cache.Wait()
	return st, nil
}

// Invalidate drops the cached snapshot for a domain, forcing the next
// Status call to re-read the store.
func (i *Inspector) Invalidate(bucket, counterKey string) {
	i.cache.Del(snapshotKey(bucket, counterKey))
	i.cache.Wait()
}

// Close releases the snapshot cache.
func (i *Inspector) Close() {
	i.cache.Close()
}
