// Package store provides versioned object storage clients with conditional
// write semantics. A conditional write is the sole atomicity primitive the
// lock coordinator relies on: compare-and-swap against a version token, or
// create-only when the object must not yet exist. In-memory, Redis and NATS
// JetStream implementations are included.
package store

import "context"

// VersionAbsent is the expected-version sentinel meaning "the object must not
// exist yet"; a Put with it has create-only semantics.
const VersionAbsent = ""

// Store abstracts a key-value object store with per-object conditional
// writes. No cross-key atomicity, locking or ordering is assumed beyond
// single-key read-your-writes.
type Store interface {
	// Get retrieves the object body and its current version token. The
	// boolean return indicates whether the object was found.
	Get(ctx context.Context, bucket, key string) (data []byte, version string, found bool, err error)
	// Put writes the object body conditionally. With expectedVersion ==
	// VersionAbsent the write succeeds only if the object does not exist;
	// otherwise only if the stored version equals expectedVersion. On
	// success the new version token is returned; a lost race yields
	// errors.ErrConflict.
	Put(ctx context.Context, bucket, key string, data []byte, expectedVersion string) (string, error)
	// Delete removes the object. Deleting an absent object is not an error.
	Delete(ctx context.Context, bucket, key string) error
}
