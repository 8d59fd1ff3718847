package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrDecode is wrapped by every decoding failure: malformed JSON, missing
// required fields, or unparsable timestamps. Callers treat it as fatal for a
// pre-existing counter object, since resetting a corrupt record would lift a
// concurrency ceiling enforced for live callers.
var ErrDecode = errors.New("record: malformed counter record")

type wireLock struct {
	LockID         string `json:"lock_id"`
	CreatedAt      string `json:"created_at"`
	TimeoutMinutes int    `json:"timeout_minutes"`
}

type wireCounter struct {
	MaxConcurrency int        `json:"max_concurrency"`
	LastUpdated    string     `json:"last_updated"`
	Locks          []wireLock `json:"locks"`
}

// Encode serializes the counter record to its JSON wire form. Timestamps are
// written as ISO-8601 UTC.
func Encode(c CounterRecord) ([]byte, error) {
	w := wireCounter{
		MaxConcurrency: c.MaxConcurrency,
		LastUpdated:    c.LastUpdated.UTC().Format(time.RFC3339Nano),
		Locks:          make([]wireLock, 0, len(c.Locks)),
	}
	for _, l := range c.Locks {
		w.Locks = append(w.Locks, wireLock{
			LockID:         l.LockID,
			CreatedAt:      l.CreatedAt.UTC().Format(time.RFC3339Nano),
			TimeoutMinutes: l.TimeoutMinutes,
		})
	}
	return json.Marshal(w)
}

// Decode parses and validates a counter record from its JSON wire form.
func Decode(data []byte) (CounterRecord, error) {
	var w wireCounter
	if err := json.Unmarshal(data, &w); err != nil {
		return CounterRecord{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if w.MaxConcurrency < 1 {
		return CounterRecord{}, fmt.Errorf("%w: max_concurrency %d", ErrDecode, w.MaxConcurrency)
	}
	lastUpdated, err := parseTimestamp("last_updated", w.LastUpdated)
	if err != nil {
		return CounterRecord{}, err
	}
	c := CounterRecord{
		MaxConcurrency: w.MaxConcurrency,
		LastUpdated:    lastUpdated,
		Locks:          make([]LockRecord, 0, len(w.Locks)),
	}
	for i, l := range w.Locks {
		if l.LockID == "" {
			return CounterRecord{}, fmt.Errorf("%w: locks[%d] missing lock_id", ErrDecode, i)
		}
		if l.TimeoutMinutes < 1 {
			return CounterRecord{}, fmt.Errorf("%w: locks[%d] timeout_minutes %d", ErrDecode, i, l.TimeoutMinutes)
		}
		createdAt, err := parseTimestamp(fmt.Sprintf("locks[%d].created_at", i), l.CreatedAt)
		if err != nil {
			return CounterRecord{}, err
		}
		c.Locks = append(c.Locks, LockRecord{
			LockID:         l.LockID,
			CreatedAt:      createdAt,
			TimeoutMinutes: l.TimeoutMinutes,
		})
	}
	return c, nil
}

func parseTimestamp(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: missing %s", ErrDecode, field)
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrDecode, field, err)
	}
	return t.UTC(), nil
}
