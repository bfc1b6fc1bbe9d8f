// Command bench drives repeated full update cycles against an in-memory backend (backend/memcluster) of synthetic rows
// and reports per-cycle timing and throughput, for judging the Fetch
// Pipeline and adaptive-relax behavior under load without a real
// database.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/IvanBrykalov/pgcache/backend/memcluster"
	"github.com/IvanBrykalov/pgcache/pgcache"
	"github.com/IvanBrykalov/pgcache/policy"
	"github.com/IvanBrykalov/pgcache/stats"
	"github.com/IvanBrykalov/pgcache/tracing"
)

type record struct {
	ID        int
	Payload   string
	UpdatedAt time.Time
}

func main() {
	rows := flag.Int("rows", 100_000, "number of synthetic rows in the backend")
	shards := flag.Int("shards", 4, "number of backend shards")
	chunk := flag.Int("chunk", 1000, "cursor chunk size (0 = single round trip)")
	cycles := flag.Int("cycles", 5, "number of full update cycles to run")
	flag.Parse()

	perShard := *rows / *shards
	tables := make([]*memcluster.Table[record], *shards)
	now := time.Now()
	id := 0
	for s := 0; s < *shards; s++ {
		shardRows := make([]record, 0, perShard)
		for i := 0; i < perShard; i++ {
			id++
			shardRows = append(shardRows, record{ID: id, Payload: fmt.Sprintf("payload-%d", id), UpdatedAt: now})
		}
		tables[s] = memcluster.NewTable(shardRows, func(r record) time.Time { return r.UpdatedAt })
	}

	registry := memcluster.NewRegistry[record]()
	registry.Register("bench", tables...)

	desc := &policy.Descriptor[int, record, record]{
		Name:         "bench",
		Query:        "SELECT id, payload, updated_at FROM bench",
		UpdatedField: "updated_at",
		KeySelector:  func(r record) (int, error) { return r.ID, nil },
		Convert:      policy.Identity[record],
	}
	cfg := pgcache.NewConfig(pgcache.WithBackend("bench"), pgcache.WithChunkSize(*chunk))

	ctx := context.Background()
	inst, err := pgcache.New[int, record, record](ctx, desc, cfg, registry)
	if err != nil {
		panic(err)
	}

	tracer := noop.NewTracerProvider().Tracer("bench")
	for c := 0; c < *cycles; c++ {
		_, ts := tracing.Start(ctx, tracer, "bench-cycle")
		scope := stats.NewScope(ts, nil)
		start := time.Now()
		if err := inst.Update(ctx, pgcache.KindFull, time.Time{}, time.Now(), scope); err != nil {
			panic(err)
		}
		elapsed := time.Since(start)
		throughput := float64(*rows) / elapsed.Seconds()
		fmt.Printf("cycle %d: %d rows across %d shards in %v (%.0f rows/sec)\n", c, *rows, *shards, elapsed, throughput)
	}
}
