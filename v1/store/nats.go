package store

import (
	"context"
	stdErrors "errors"
	"strconv"
	"sync"

	nats "github.com/nats-io/nats.go"

	gateerrors "github.com/mirkobrombin/go-gate/v1/errors"
)

// NATS implements Store on top of JetStream key-value buckets. The KV
// revision number doubles as the version token: Create gives create-only
// semantics and Update with an expected revision gives compare-and-swap.
type NATS struct {
	js nats.JetStreamContext

	mu      sync.Mutex
	buckets map[string]nats.KeyValue
}

// NewNATS returns a new NATS store using the provided connection.
func NewNATS(conn *nats.Conn) (*NATS, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, err
	}
	return &NATS{js: js, buckets: make(map[string]nats.KeyValue)}, nil
}

// kv returns the KeyValue handle for bucket, creating the bucket on first use.
func (s *NATS) kv(bucket string) (nats.KeyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kv, ok := s.buckets[bucket]; ok {
		return kv, nil
	}
	kv, err := s.js.KeyValue(bucket)
	if stdErrors.Is(err, nats.ErrBucketNotFound) {
		kv, err = s.js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
	}
	if err != nil {
		return nil, err
	}
	s.buckets[bucket] = kv
	return kv, nil
}

func isWrongRevision(err error) bool {
	if stdErrors.Is(err, nats.ErrKeyExists) {
		return true
	}
	var apiErr *nats.APIError
	return stdErrors.As(err, &apiErr) && apiErr.ErrorCode == nats.JSErrCodeStreamWrongLastSequence
}

// Get implements Store.Get.
func (s *NATS) Get(ctx context.Context, bucket, key string) ([]byte, string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", false, err
	}
	kv, err := s.kv(bucket)
	if err != nil {
		return nil, "", false, err
	}
	entry, err := kv.Get(key)
	if stdErrors.Is(err, nats.ErrKeyNotFound) {
		return nil, "", false, nil
	}
	if err != nil {
		if stdErrors.Is(err, nats.ErrConnectionClosed) {
			return nil, "", false, gateerrors.ErrConnectionClosed
		}
		return nil, "", false, err
	}
	return entry.Value(), strconv.FormatUint(entry.Revision(), 10), true, nil
}

// Put implements Store.Put.
func (s *NATS) Put(ctx context.Context, bucket, key string, data []byte, expectedVersion string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	kv, err := s.kv(bucket)
	if err != nil {
		return "", err
	}
	var rev uint64
	if expectedVersion == VersionAbsent {
		rev, err = kv.Create(key, data)
	} else {
		var expected uint64
		expected, err = strconv.ParseUint(expectedVersion, 10, 64)
		if err != nil {
			return "", err
		}
		rev, err = kv.Update(key, data, expected)
	}
	if err != nil {
		if isWrongRevision(err) {
			return "", gateerrors.ErrConflict
		}
		if stdErrors.Is(err, nats.ErrConnectionClosed) {
			return "", gateerrors.ErrConnectionClosed
		}
		return "", err
	}
	return strconv.FormatUint(rev, 10), nil
}

// Delete implements Store.Delete.
func (s *NATS) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kv, err := s.kv(bucket)
	if err != nil {
		return err
	}
	// Purge drops the key history so a later create-only write succeeds.
	if err := kv.Purge(key); err != nil && !stdErrors.Is(err, nats.ErrKeyNotFound) {
		if stdErrors.Is(err, nats.ErrConnectionClosed) {
			return gateerrors.ErrConnectionClosed
		}
		return err
	}
	return nil
}
