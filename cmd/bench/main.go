// Contention benchmark: N workers hammer one counter object with
// acquire/release cycles and report throughput and outcome mix per backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/go-gate/v1/coordinator"
	"github.com/mirkobrombin/go-gate/v1/presets"
	"github.com/mirkobrombin/go-gate/v1/store"
)

var (
	concurrency = flag.Int("c", 20, "Concurrent workers")
	cycles      = flag.Int("n", 1000, "Acquire/release cycles per worker")
	limit       = flag.Int("limit", 4, "Concurrency ceiling on the counter")
	target      = flag.String("target", "all", "Target: memory, redis")
	redisAddr   = flag.String("redis-addr", "localhost:6379", "Redis address")
)

func main() {
	flag.Parse()

	targets := strings.Split(*target, ",")
	if *target == "all" {
		targets = []string{"memory", "redis"}
	}

	fmt.Printf("| %-10s | %-10s | %-10s | %-10s | %-12s |\n",
		"Backend", "Cycles/sec", "Rejected", "Conflicts", "P99 Latency")
	fmt.Println("|:---|:---|:---|:---|:---|")

	for _, t := range targets {
		run(strings.TrimSpace(t))
	}
}

func run(name string) {
	var coord *coordinator.Coordinator

	switch name {
	case "memory":
		coord = coordinator.New(store.NewInMemory())
	case "redis":
		coord = presets.NewRedisCoordinator(presets.RedisOptions{Addr: *redisAddr})
	default:
		log.Printf("unknown target: %s", name)
		return
	}

	ctx := context.Background()
	bucket := "bench"
	counter := fmt.Sprintf("counter-%d.json", time.Now().UnixNano())

	var acquired, rejected, conflicts int64
	latencies := make([]int64, *concurrency**cycles)

	start := time.Now()
	var g errgroup.Group
	for i := 0; i < *concurrency; i++ {
		offset := i * *cycles
		g.Go(func() error {
			id, err := coordinator.NewCallerID()
			if err != nil {
				return err
			}
			for j := 0; j < *cycles; j++ {
				cycleStart := time.Now()
				out, err := coord.Acquire(ctx, bucket, counter, *limit, 15, id)
				if err != nil {
					return err
				}
				switch out {
				case coordinator.Acquired:
					atomic.AddInt64(&acquired, 1)
					if _, err := coord.Release(ctx, bucket, counter, id); err != nil {
						return err
					}
					latencies[offset+j] = time.Since(cycleStart).Nanoseconds()
				case coordinator.Rejected:
					atomic.AddInt64(&rejected, 1)
				case coordinator.Retry:
					atomic.AddInt64(&conflicts, 1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Printf("| %-10s | %-10s | %-10s | %-10s | %-12s |\n", name, "ERROR", "-", "-", "-")
		log.Printf("%s: %v", name, err)
		return
	}
	elapsed := time.Since(start)

	throughput := float64(acquired) / elapsed.Seconds()

	p99 := "-"
	valid := make([]int64, 0, acquired)
	for _, l := range latencies {
		if l > 0 {
			valid = append(valid, l)
		}
	}
	if len(valid) > 0 {
		sort.Slice(valid, func(i, j int) bool { return valid[i] < valid[j] })
		idx := int(float64(len(valid)) * 0.99)
		if idx >= len(valid) {
			idx = len(valid) - 1
		}
		p99 = time.Duration(valid[idx]).String()
	}

	fmt.Printf("| %-10s | %-10.0f | %-10d | %-10d | %-12s |\n",
		name, throughput, rejected, conflicts, p99)
}
