// Package record defines the persisted lock bookkeeping records and their
// wire codec. A CounterRecord is the single authoritative object per
// coordination domain; it tracks the concurrency ceiling and the sequence of
// currently admitted LockRecords in admission order.
package record

import "time"

// LockRecord is one admitted, possibly stale, claim on the shared resource.
// Records are immutable once written: release removes them rather than
// mutating them.
type LockRecord struct {
	// LockID is the opaque caller-supplied identifier, unique among the
	// currently tracked entries.
	LockID string
	// CreatedAt is the UTC wall-clock time observed by the acquiring caller
	// at admission.
	CreatedAt time.Time
	// TimeoutMinutes is the duration, measured from CreatedAt, after which
	// the record is considered stale.
	TimeoutMinutes int
}

// ExpiresAt returns the instant at which the record becomes stale.
func (r LockRecord) ExpiresAt() time.Time {
	return r.CreatedAt.Add(time.Duration(r.TimeoutMinutes) * time.Minute)
}

// StaleAt reports whether the record is stale at the given instant. Clock
// skew between callers and the store is not compensated; the caller's wall
// clock is assumed monotonic enough.
func (r LockRecord) StaleAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt())
}

// CounterRecord is the aggregate object for one coordination domain.
type CounterRecord struct {
	// MaxConcurrency is the ceiling on simultaneously admitted LockRecords.
	// It is fixed when the record is first created.
	MaxConcurrency int
	// LastUpdated is the timestamp of the most recent successful write.
	LastUpdated time.Time
	// Locks holds the admitted records in admission order.
	Locks []LockRecord
}

// NewCounter returns an empty counter with the given concurrency ceiling.
func NewCounter(maxConcurrency int) CounterRecord {
	return CounterRecord{MaxConcurrency: maxConcurrency}
}

// Partition splits locks into fresh and stale entries at the given instant.
// Relative order within each half is preserved.
func Partition(locks []LockRecord, now time.Time) (fresh, stale []LockRecord) {
	for _, l := range locks {
		if l.StaleAt(now) {
			stale = append(stale, l)
		} else {
			fresh = append(fresh, l)
		}
	}
	return fresh, stale
}
