package watchbus

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
)

// BenchmarkInMemoryPublish measures event publish throughput with many
// concurrent publishers and watched coordination domains.
func BenchmarkInMemoryPublish(b *testing.B) {
	bus := NewInMemory()
	ctx := context.Background()

	const domains = 1000
	for i := 0; i < domains; i++ {
		key := Key("wf", fmt.Sprintf("counter-%d", i))
		ch, _ := bus.Watch(ctx, key)
		go func(c chan []byte) {
			for range c {
			}
		}(ch)
	}

	payload, _ := Event{Type: EventReleased, Bucket: "wf"}.Marshal()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(0))
		for pb.Next() {
			key := Key("wf", fmt.Sprintf("counter-%d", r.Intn(domains)))
			_ = bus.Publish(ctx, key, payload)
		}
	})
}
