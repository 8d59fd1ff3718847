package store_test

import (
	"context"
	"errors"
	"testing"

	gateerrors "github.com/mirkobrombin/go-gate/v1/errors"
	"github.com/mirkobrombin/go-gate/v1/store"
)

// testStoreContract exercises the conditional-write contract every Store
// implementation must honor.
func testStoreContract(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	if _, _, found, err := s.Get(ctx, "wf", "counter"); err != nil || found {
		t.Fatalf("get absent: found %v err %v", found, err)
	}

	// Create-only write on an absent object.
	v1, err := s.Put(ctx, "wf", "counter", []byte("one"), store.VersionAbsent)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v1 == store.VersionAbsent {
		t.Fatal("create returned absent version token")
	}

	// Create-only write must conflict once the object exists.
	if _, err := s.Put(ctx, "wf", "counter", []byte("two"), store.VersionAbsent); !errors.Is(err, gateerrors.ErrConflict) {
		t.Fatalf("create over existing: expected conflict, got %v", err)
	}

	data, version, found, err := s.Get(ctx, "wf", "counter")
	if err != nil || !found {
		t.Fatalf("get: found %v err %v", found, err)
	}
	if string(data) != "one" || version != v1 {
		t.Fatalf("get: data %q version %q, want %q %q", data, version, "one", v1)
	}

	// CAS with the current version succeeds and rotates the token.
	v2, err := s.Put(ctx, "wf", "counter", []byte("two"), v1)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if v2 == v1 {
		t.Fatal("cas did not rotate version token")
	}

	// CAS with a stale version must conflict and leave the object intact.
	if _, err := s.Put(ctx, "wf", "counter", []byte("three"), v1); !errors.Is(err, gateerrors.ErrConflict) {
		t.Fatalf("stale cas: expected conflict, got %v", err)
	}
	if data, _, _, _ := s.Get(ctx, "wf", "counter"); string(data) != "two" {
		t.Fatalf("stale cas corrupted object: %q", data)
	}

	// Buckets are independent namespaces.
	if _, _, found, err := s.Get(ctx, "other", "counter"); err != nil || found {
		t.Fatalf("get other bucket: found %v err %v", found, err)
	}

	// Delete, then create-only succeeds again.
	if err := s.Delete(ctx, "wf", "counter"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "wf", "counter"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
	if _, err := s.Put(ctx, "wf", "counter", []byte("fresh"), store.VersionAbsent); err != nil {
		t.Fatalf("create after delete: %v", err)
	}
}

func TestInMemoryContract(t *testing.T) {
	testStoreContract(t, store.NewInMemory())
}

func TestInMemoryGetReturnsCopy(t *testing.T) {
	s := store.NewInMemory()
	ctx := context.Background()
	if _, err := s.Put(ctx, "b", "k", []byte("abc"), store.VersionAbsent); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, _, _, err := s.Get(ctx, "b", "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data[0] = 'x'
	again, _, _, _ := s.Get(ctx, "b", "k")
	if string(again) != "abc" {
		t.Fatalf("stored data mutated through returned slice: %q", again)
	}
}
