package presets

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	natsserver "github.com/nats-io/nats-server/v2/test"
	natsgo "github.com/nats-io/nats.go"

	"github.com/mirkobrombin/go-gate/v1/coordinator"
)

func exercise(t *testing.T, c *coordinator.Coordinator) {
	t.Helper()
	ctx := context.Background()

	out, err := c.Acquire(ctx, "wf", "active_locks.json", 1, 15, "L1")
	if err != nil || out != coordinator.Acquired {
		t.Fatalf("acquire: %v %v", out, err)
	}
	out, err = c.Acquire(ctx, "wf", "active_locks.json", 1, 15, "L2")
	if err != nil || out != coordinator.Rejected {
		t.Fatalf("acquire full: %v %v", out, err)
	}
	out, err = c.Release(ctx, "wf", "active_locks.json", "L1")
	if err != nil || out != coordinator.Released {
		t.Fatalf("release: %v %v", out, err)
	}
	out, err = c.Acquire(ctx, "wf", "active_locks.json", 1, 15, "L2")
	if err != nil || out != coordinator.Acquired {
		t.Fatalf("acquire after release: %v %v", out, err)
	}
}

func TestNewInMemoryStandalone(t *testing.T) {
	exercise(t, NewInMemoryStandalone())
}

func TestNewRedisCoordinator(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	defer mr.Close()

	exercise(t, NewRedisCoordinator(RedisOptions{Addr: mr.Addr()}))
}

func TestNewNATSCoordinator(t *testing.T) {
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	srv := natsserver.RunServer(&opts)
	defer srv.Shutdown()

	conn, err := natsgo.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	defer conn.Close()

	c, err := NewNATSCoordinator(conn)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	exercise(t, c)
}
