package watchbus

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisWatchBus(t *testing.T) (*RedisWatchBus, context.Context) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return NewRedisWatchBus(client), context.Background()
}

func TestRedisWatchBusDeliversEvents(t *testing.T) {
	bus, ctx := newRedisWatchBus(t)
	key := Key("wf", "active_locks.json")

	ch, err := bus.Watch(ctx, key)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	// Give the stream reader a moment to start tailing.
	time.Sleep(50 * time.Millisecond)

	payload, _ := Event{Type: EventAcquired, Bucket: "wf", CounterKey: "active_locks.json", CallerID: "exec-1", Active: 1}.Marshal()
	if err := bus.Publish(ctx, key, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-ch:
		e, err := ParseEvent(msg)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if e.Type != EventAcquired || e.CallerID != "exec-1" {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	if err := bus.Unwatch(ctx, key, ch); err != nil {
		t.Fatalf("unwatch: %v", err)
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel closed after unwatch")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close")
	}
}
