package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	gateerrors "github.com/mirkobrombin/go-gate/v1/errors"
	"github.com/mirkobrombin/go-gate/v1/eventbus"
	"github.com/mirkobrombin/go-gate/v1/record"
	"github.com/mirkobrombin/go-gate/v1/store"
	"github.com/mirkobrombin/go-gate/v1/watchbus"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-gate/v1/coordinator")

// Defaults match the original workflow deployment this design grew out of.
const (
	// DefaultCounterKey is the counter object key used when a deployment
	// does not configure its own.
	DefaultCounterKey = "active_locks.json"
	// DefaultConcurrencyLimit admits one execution at a time.
	DefaultConcurrencyLimit = 1
	// DefaultTimeoutMinutes is the stale-lock timeout applied by presets.
	DefaultTimeoutMinutes = 15

	defaultReleaseAttempts = 5
)

var (
	// ErrCallerID is returned when the caller identifier is empty.
	ErrCallerID = errors.New("gate: caller id must be non-empty")
	// ErrLimit is returned when the concurrency limit is not positive.
	ErrLimit = errors.New("gate: concurrency limit must be positive")
	// ErrTimeoutMinutes is returned when the lock timeout is not positive.
	ErrTimeoutMinutes = errors.New("gate: lock timeout must be positive")
)

// Outcome is the result of an acquire or release attempt.
type Outcome int

const (
	// Acquired means the lock is held by the caller.
	Acquired Outcome = iota + 1
	// Rejected means the concurrency ceiling is full after stale-lock
	// filtering; the caller should back off and retry later.
	Rejected
	// Retry means a benign write race with another caller; the caller
	// should re-attempt from a fresh read, typically with short jitter.
	Retry
	// Released means the caller's record is no longer tracked, whether it
	// was removed now, had already been evicted, or never existed.
	Released
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Acquired:
		return "acquired"
	case Rejected:
		return "rejected"
	case Retry:
		return "retry"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// Status is a read-only admission probe result.
type Status struct {
	// Active is the number of fresh lock records.
	Active int
	// Stale is the number of expired records awaiting reclamation.
	Stale int
	// Limit is the effective concurrency ceiling.
	Limit int
	// CanAcquire reports whether an acquire attempt would currently be
	// admitted.
	CanAcquire bool
}

// Coordinator runs the acquire/release protocol against an object store.
// It holds no authoritative state in memory: every decision starts from a
// fresh read of the counter record.
type Coordinator struct {
	store store.Store
	clock func() time.Time
	bus   eventbus.Bus
	watch watchbus.WatchBus

	releaseAttempts int
	traceEnabled    bool

	metrics *counters
}

// New creates a new Coordinator backed by the given store.
func New(s store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:           s,
		clock:           time.Now,
		releaseAttempts: defaultReleaseAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire attempts to admit callerID into the coordination domain
// identified by bucket and counterKey. limit is the concurrency ceiling
// applied when the counter record is created; an existing record's own
// ceiling always wins. timeoutMinutes is the stale-lock timeout recorded
// for this admission.
//
// The attempt is a single read followed by at most one conditional write.
// A lost write race returns Retry without error; the caller owns backoff
// and attempt limits.
func (c *Coordinator) Acquire(ctx context.Context, bucket, counterKey string, limit, timeoutMinutes int, callerID string) (Outcome, error) {
	if callerID == "" {
		return 0, ErrCallerID
	}
	if limit < 1 {
		return 0, ErrLimit
	}
	if timeoutMinutes < 1 {
		return 0, ErrTimeoutMinutes
	}

	var span trace.Span
	if c.traceEnabled {
		ctx, span = tracer.Start(ctx, "Coordinator.Acquire")
		defer span.End()
		span.SetAttributes(
			attribute.String("gate.bucket", bucket),
			attribute.String("gate.counter_key", counterKey),
			attribute.String("gate.caller_id", callerID),
		)
	}

	now := c.clock().UTC()

	rec, version, err := c.read(ctx, bucket, counterKey, limit)
	if err != nil {
		return 0, err
	}

	fresh, stale := record.Partition(rec.Locks, now)
	if len(fresh) >= rec.MaxConcurrency {
		c.metrics.rejected()
		c.emit(ctx, watchbus.Event{
			Type: watchbus.EventRejected, Bucket: bucket, CounterKey: counterKey,
			CallerID: callerID, Active: len(fresh), At: now,
		})
		if c.traceEnabled {
			span.SetAttributes(attribute.String("gate.outcome", Rejected.String()))
		}
		return Rejected, nil
	}

	rec.Locks = append(fresh, record.LockRecord{
		LockID:         callerID,
		CreatedAt:      now,
		TimeoutMinutes: timeoutMinutes,
	})
	rec.LastUpdated = now

	data, err := record.Encode(rec)
	if err != nil {
		return 0, fmt.Errorf("gate: encode counter: %w", err)
	}
	if _, err := c.store.Put(ctx, bucket, counterKey, data, version); err != nil {
		if errors.Is(err, gateerrors.ErrConflict) {
			c.metrics.conflict()
			c.emit(ctx, watchbus.Event{
				Type: watchbus.EventConflict, Bucket: bucket, CounterKey: counterKey,
				CallerID: callerID, Active: len(fresh), At: now,
			})
			if c.traceEnabled {
				span.SetAttributes(attribute.String("gate.outcome", Retry.String()))
			}
			return Retry, nil
		}
		return 0, fmt.Errorf("gate: write counter: %w", err)
	}

	c.metrics.acquired()
	if n := len(stale); n > 0 {
		c.metrics.reclaimed(n)
		c.emit(ctx, watchbus.Event{
			Type: watchbus.EventReclaimed, Bucket: bucket, CounterKey: counterKey,
			Active: len(rec.Locks), At: now,
		})
		// Reclaiming more than our own slot may have freed capacity.
		if len(rec.Locks) < rec.MaxConcurrency {
			c.signalRelease(ctx, bucket, counterKey)
		}
	}
	c.emit(ctx, watchbus.Event{
		Type: watchbus.EventAcquired, Bucket: bucket, CounterKey: counterKey,
		CallerID: callerID, Active: len(rec.Locks), At: now,
	})
	if c.traceEnabled {
		span.SetAttributes(attribute.String("gate.outcome", Acquired.String()))
	}
	return Acquired, nil
}

// Release removes callerID's lock record from the coordination domain. It
// is idempotent: releasing an absent or already-reclaimed lock succeeds.
// Write conflicts are re-attempted from a fresh read up to the configured
// attempt bound, since a silently failed release would leave a phantom
// occupant of the ceiling until its timeout elapses.
func (c *Coordinator) Release(ctx context.Context, bucket, counterKey, callerID string) (Outcome, error) {
	if callerID == "" {
		return 0, ErrCallerID
	}

	var span trace.Span
	if c.traceEnabled {
		ctx, span = tracer.Start(ctx, "Coordinator.Release")
		defer span.End()
		span.SetAttributes(
			attribute.String("gate.bucket", bucket),
			attribute.String("gate.counter_key", counterKey),
			attribute.String("gate.caller_id", callerID),
		)
	}

	for attempt := 0; attempt < c.releaseAttempts; attempt++ {
		data, version, found, err := c.store.Get(ctx, bucket, counterKey)
		if err != nil {
			return 0, fmt.Errorf("gate: read counter: %w", err)
		}
		if !found {
			return Released, nil
		}
		rec, err := record.Decode(data)
		if err != nil {
			return 0, err
		}

		remaining := rec.Locks[:0:0]
		for _, l := range rec.Locks {
			if l.LockID != callerID {
				remaining = append(remaining, l)
			}
		}
		if len(remaining) == len(rec.Locks) {
			// Already absent: evicted as stale or released before.
			return Released, nil
		}

		now := c.clock().UTC()
		rec.Locks = remaining
		rec.LastUpdated = now

		encoded, err := record.Encode(rec)
		if err != nil {
			return 0, fmt.Errorf("gate: encode counter: %w", err)
		}
		if _, err := c.store.Put(ctx, bucket, counterKey, encoded, version); err != nil {
			if errors.Is(err, gateerrors.ErrConflict) {
				c.metrics.conflict()
				continue
			}
			return 0, fmt.Errorf("gate: write counter: %w", err)
		}

		c.metrics.released()
		c.emit(ctx, watchbus.Event{
			Type: watchbus.EventReleased, Bucket: bucket, CounterKey: counterKey,
			CallerID: callerID, Active: len(remaining), At: now,
		})
		c.signalRelease(ctx, bucket, counterKey)
		return Released, nil
	}
	return 0, fmt.Errorf("gate: release of %q contended %d times: %w", callerID, c.releaseAttempts, gateerrors.ErrConflict)
}

// Check reports whether an acquire against the domain would currently be
// admitted. It never writes; the answer may be stale by the time the caller
// acts on it and is intended for probes and dashboards, not admission.
func (c *Coordinator) Check(ctx context.Context, bucket, counterKey string, limit int) (Status, error) {
	if limit < 1 {
		return Status{}, ErrLimit
	}
	rec, _, err := c.read(ctx, bucket, counterKey, limit)
	if err != nil {
		return Status{}, err
	}
	fresh, stale := record.Partition(rec.Locks, c.clock().UTC())
	return Status{
		Active:     len(fresh),
		Stale:      len(stale),
		Limit:      rec.MaxConcurrency,
		CanAcquire: len(fresh) < rec.MaxConcurrency,
	}, nil
}

// read loads and decodes the counter record. An absent object yields an
// empty counter with the caller-supplied ceiling and an absent version, so
// the next write is create-only. A decode failure on an existing object is
// fatal: resetting the record would erase a ceiling enforced for live
// callers.
func (c *Coordinator) read(ctx context.Context, bucket, counterKey string, limit int) (record.CounterRecord, string, error) {
	data, version, found, err := c.store.Get(ctx, bucket, counterKey)
	if err != nil {
		return record.CounterRecord{}, "", fmt.Errorf("gate: read counter: %w", err)
	}
	if !found {
		return record.NewCounter(limit), store.VersionAbsent, nil
	}
	rec, err := record.Decode(data)
	if err != nil {
		return record.CounterRecord{}, "", err
	}
	return rec, version, nil
}

// emit publishes an observation event. Delivery is advisory; failures are
// dropped.
func (c *Coordinator) emit(ctx context.Context, e watchbus.Event) {
	if c.watch == nil {
		return
	}
	data, err := e.Marshal()
	if err != nil {
		return
	}
	_ = c.watch.Publish(ctx, watchbus.Key(e.Bucket, e.CounterKey), data)
}

// signalRelease wakes callers waiting for capacity on the domain.
func (c *Coordinator) signalRelease(ctx context.Context, bucket, counterKey string) {
	if c.bus == nil {
		return
	}
	_ = c.bus.Publish(ctx, eventbus.ReleaseSubject(bucket, counterKey))
}
