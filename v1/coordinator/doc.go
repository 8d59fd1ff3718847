// Package coordinator implements pessimistic mutual-exclusion locking for
// distributed workflow executions on top of a versioned object store. Many
// independent callers agree on who holds a lock through a single counter
// record per coordination domain, mutated exclusively via conditional
// writes: compare-and-swap against the version observed at read time, or
// create-only for a counter that does not exist yet. Stale locks abandoned
// by crashed callers are reclaimed as a byproduct of every acquire attempt.
//
// Acquire and Release are strictly request/response: one read and at most
// one conditional write, no internal sleeping or spinning. All backoff and
// retry scheduling belongs to the caller, which receives Rejected (ceiling
// full, back off longer) and Retry (lost a write race, re-attempt from a
// fresh read) as distinct signals.
package coordinator
