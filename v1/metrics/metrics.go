// Package metrics exposes Prometheus instruments for the object store
// traffic underneath the lock protocol. Coordinator outcome counters live
// on the coordinator itself; these cover the raw read/write layer shared by
// every backend.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	gateerrors "github.com/mirkobrombin/go-gate/v1/errors"
	"github.com/mirkobrombin/go-gate/v1/store"
)

var (
	// GetCounter tracks counter record reads.
	GetCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gate_store_get_total",
		Help: "Total number of counter record reads",
	})
	// PutCounter tracks conditional counter record writes.
	PutCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gate_store_put_total",
		Help: "Total number of conditional counter record writes",
	})
	// DeleteCounter tracks counter record deletions.
	DeleteCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gate_store_delete_total",
		Help: "Total number of counter record deletions",
	})
	// ConflictCounter tracks conditional writes lost to a concurrent writer.
	ConflictCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gate_store_conflict_total",
		Help: "Total number of conditional writes rejected on version mismatch",
	})
	// WaiterGauge reports callers currently parked waiting for capacity.
	WaiterGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gate_waiters",
		Help: "Current number of callers waiting for lock capacity",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterStoreMetrics registers the store metrics on the provided registry.
func RegisterStoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(GetCounter, PutCounter, DeleteCounter, ConflictCounter, WaiterGauge)
}

// Store wraps a store.Store and counts its operations.
type Store struct {
	inner store.Store
}

// Instrument wraps s so its operations are counted.
func Instrument(s store.Store) *Store {
	return &Store{inner: s}
}

// Get implements store.Store.Get.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, string, bool, error) {
	GetCounter.Inc()
	return s.inner.Get(ctx, bucket, key)
}

// Put implements store.Store.Put.
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte, expectedVersion string) (string, error) {
	PutCounter.Inc()
	version, err := s.inner.Put(ctx, bucket, key, data, expectedVersion)
	if errors.Is(err, gateerrors.ErrConflict) {
		ConflictCounter.Inc()
	}
	return version, err
}

// Delete implements store.Store.Delete.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	DeleteCounter.Inc()
	return s.inner.Delete(ctx, bucket, key)
}
