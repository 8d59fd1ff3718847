package record

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 30, 45, 123456789, time.UTC)
	c := CounterRecord{
		MaxConcurrency: 3,
		LastUpdated:    now,
		Locks: []LockRecord{
			{LockID: "wf-exec-1", CreatedAt: now.Add(-2 * time.Minute), TimeoutMinutes: 15},
			{LockID: "wf-exec-2", CreatedAt: now, TimeoutMinutes: 30},
		},
	}
	data, err := Encode(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.MaxConcurrency != c.MaxConcurrency {
		t.Fatalf("max_concurrency %d != %d", got.MaxConcurrency, c.MaxConcurrency)
	}
	if !got.LastUpdated.Equal(c.LastUpdated) {
		t.Fatalf("last_updated %v != %v", got.LastUpdated, c.LastUpdated)
	}
	if len(got.Locks) != len(c.Locks) {
		t.Fatalf("locks %d != %d", len(got.Locks), len(c.Locks))
	}
	for i := range c.Locks {
		if got.Locks[i].LockID != c.Locks[i].LockID {
			t.Fatalf("locks[%d] id %q != %q", i, got.Locks[i].LockID, c.Locks[i].LockID)
		}
		if !got.Locks[i].CreatedAt.Equal(c.Locks[i].CreatedAt) {
			t.Fatalf("locks[%d] created_at %v != %v", i, got.Locks[i].CreatedAt, c.Locks[i].CreatedAt)
		}
		if got.Locks[i].TimeoutMinutes != c.Locks[i].TimeoutMinutes {
			t.Fatalf("locks[%d] timeout %d != %d", i, got.Locks[i].TimeoutMinutes, c.Locks[i].TimeoutMinutes)
		}
	}
}

func TestEncodeEmptyLocksAsSequence(t *testing.T) {
	c := NewCounter(1)
	c.LastUpdated = time.Now()
	data, err := Encode(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"locks":[]`) {
		t.Fatalf("empty locks not encoded as sequence: %s", data)
	}
}

func TestDecodeTimestampsNormalizedToUTC(t *testing.T) {
	data := []byte(`{"max_concurrency":1,"last_updated":"2025-03-01T13:00:00+01:00","locks":[]}`)
	c, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if !c.LastUpdated.Equal(want) || c.LastUpdated.Location() != time.UTC {
		t.Fatalf("last_updated not UTC-normalized: %v", c.LastUpdated)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"malformed json":       `{`,
		"zero max_concurrency": `{"max_concurrency":0,"last_updated":"2025-03-01T12:00:00Z","locks":[]}`,
		"missing last_updated": `{"max_concurrency":1,"locks":[]}`,
		"bad last_updated":     `{"max_concurrency":1,"last_updated":"yesterday","locks":[]}`,
		"missing lock_id":      `{"max_concurrency":1,"last_updated":"2025-03-01T12:00:00Z","locks":[{"created_at":"2025-03-01T12:00:00Z","timeout_minutes":15}]}`,
		"zero timeout":         `{"max_concurrency":1,"last_updated":"2025-03-01T12:00:00Z","locks":[{"lock_id":"a","created_at":"2025-03-01T12:00:00Z","timeout_minutes":0}]}`,
		"bad created_at":       `{"max_concurrency":1,"last_updated":"2025-03-01T12:00:00Z","locks":[{"lock_id":"a","created_at":"soon","timeout_minutes":15}]}`,
	}
	for name, data := range cases {
		if _, err := Decode([]byte(data)); !errors.Is(err, ErrDecode) {
			t.Fatalf("%s: expected ErrDecode, got %v", name, err)
		}
	}
}
