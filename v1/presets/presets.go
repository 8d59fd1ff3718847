// Package presets wires common coordinator deployments so callers do not
// assemble store, bus and watch layers by hand.
package presets

import (
	natsgo "github.com/nats-io/nats.go"
	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-gate/v1/coordinator"
	"github.com/mirkobrombin/go-gate/v1/eventbus"
	"github.com/mirkobrombin/go-gate/v1/store"
	"github.com/mirkobrombin/go-gate/v1/watchbus"
)

// RedisOptions configures the connection to Redis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCoordinator creates a coordinator using Redis as the counter
// store, release-signal bus and event stream. One client serves all three.
func NewRedisCoordinator(opts RedisOptions, coordOpts ...coordinator.Option) *coordinator.Coordinator {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	s := store.NewRedis(client)
	bus := eventbus.NewRedisBus(client)
	watch := watchbus.NewRedisWatchBus(client)

	coordOpts = append([]coordinator.Option{
		coordinator.WithBus(bus),
		coordinator.WithWatch(watch),
	}, coordOpts...)
	return coordinator.New(s, coordOpts...)
}

// NewNATSCoordinator creates a coordinator using JetStream key-value
// buckets as the counter store and core NATS for release signals.
func NewNATSCoordinator(conn *natsgo.Conn, coordOpts ...coordinator.Option) (*coordinator.Coordinator, error) {
	s, err := store.NewNATS(conn)
	if err != nil {
		return nil, err
	}
	bus := eventbus.NewNATSBus(conn)

	coordOpts = append([]coordinator.Option{coordinator.WithBus(bus)}, coordOpts...)
	return coordinator.New(s, coordOpts...), nil
}

// NewInMemoryStandalone creates a coordinator that runs entirely in-memory
// with no external dependencies. Useful for local development and tests.
func NewInMemoryStandalone(coordOpts ...coordinator.Option) *coordinator.Coordinator {
	coordOpts = append([]coordinator.Option{
		coordinator.WithBus(eventbus.NewInMemoryBus()),
		coordinator.WithWatch(watchbus.NewInMemory()),
	}, coordOpts...)
	return coordinator.New(store.NewInMemory(), coordOpts...)
}
