package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	gateerrors "github.com/mirkobrombin/go-gate/v1/errors"
	"github.com/mirkobrombin/go-gate/v1/store"
)

func TestRegisterStoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterStoreMetrics(reg)
	GetCounter.Inc()
	PutCounter.Inc()
	DeleteCounter.Inc()
	ConflictCounter.Inc()
	WaiterGauge.Set(5)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) < 5 {
		t.Fatalf("expected metrics registered")
	}
}

func TestRegisterStoreMetricsDuplicatePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterStoreMetrics(reg)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterStoreMetrics(reg)
}

func TestInstrumentCountsOperations(t *testing.T) {
	ctx := context.Background()
	s := Instrument(store.NewInMemory())

	getsBefore := testutil.ToFloat64(GetCounter)
	putsBefore := testutil.ToFloat64(PutCounter)
	conflictsBefore := testutil.ToFloat64(ConflictCounter)
	deletesBefore := testutil.ToFloat64(DeleteCounter)

	if _, _, _, err := s.Get(ctx, "b", "k"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := s.Put(ctx, "b", "k", []byte("x"), store.VersionAbsent); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "b", "k", []byte("y"), store.VersionAbsent); !errors.Is(err, gateerrors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := s.Delete(ctx, "b", "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got := testutil.ToFloat64(GetCounter) - getsBefore; got != 1 {
		t.Fatalf("get counter: %v", got)
	}
	if got := testutil.ToFloat64(PutCounter) - putsBefore; got != 2 {
		t.Fatalf("put counter: %v", got)
	}
	if got := testutil.ToFloat64(ConflictCounter) - conflictsBefore; got != 1 {
		t.Fatalf("conflict counter: %v", got)
	}
	if got := testutil.ToFloat64(DeleteCounter) - deletesBefore; got != 1 {
		t.Fatalf("delete counter: %v", got)
	}
}
