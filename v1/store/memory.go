package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	gateerrors "github.com/mirkobrombin/go-gate/v1/errors"
)

type object struct {
	data    []byte
	version string
}

// InMemory implements Store using local memory. It is mainly useful for
// testing and single-process deployments.
type InMemory struct {
	mu      sync.RWMutex
	buckets map[string]map[string]object
}

// NewInMemory returns a new in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{buckets: make(map[string]map[string]object)}
}

// Get implements Store.Get.
func (s *InMemory) Get(ctx context.Context, bucket, key string) ([]byte, string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.buckets[bucket][key]
	if !ok {
		return nil, "", false, nil
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, obj.version, true, nil
}

// Put implements Store.Put.
func (s *InMemory) Put(ctx context.Context, bucket, key string, data []byte, expectedVersion string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.buckets[bucket]
	cur, exists := b[key]
	if expectedVersion == VersionAbsent {
		if exists {
			return "", gateerrors.ErrConflict
		}
	} else if !exists || cur.version != expectedVersion {
		return "", gateerrors.ErrConflict
	}
	if b == nil {
		b = make(map[string]object)
		s.buckets[bucket] = b
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	version := uuid.NewString()
	b[key] = object{data: stored, version: version}
	return version, nil
}

// Delete implements Store.Delete.
func (s *InMemory) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.buckets[bucket], key)
	s.mu.Unlock()
	return nil
}
