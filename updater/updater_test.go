package updater

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/IvanBrykalov/pgcache/pgcache"
	"github.com/IvanBrykalov/pgcache/stats"
	"github.com/IvanBrykalov/pgcache/tracing"
)

type recordingCache struct {
	mu    sync.Mutex
	calls []pgcache.Kind
}

func (c *recordingCache) Update(ctx context.Context, kind pgcache.Kind, lastUpdate, now time.Time, scope *stats.Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, kind)
	return nil
}

func (c *recordingCache) snapshot() []pgcache.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]pgcache.Kind(nil), c.calls...)
}

func newScopeFactory() ScopeFactory {
	return func(ctx context.Context) (context.Context, *stats.Scope) {
		cctx, ts := tracing.Start(ctx, noop.NewTracerProvider().Tracer("test"), "test")
		return cctx, stats.NewScope(ts, nil)
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func TestTickerFirstTickIsFull(t *testing.T) {
	cache := &recordingCache{}
	ticker := New(cache, time.Millisecond, newScopeFactory(), WithFullEvery(3))

	// Drive a single tick directly rather than racing a real timer.
	ticker.runOnce(context.Background())
	calls := cache.snapshot()
	if len(calls) != 1 || calls[0] != pgcache.KindFull {
		t.Fatalf("first tick = %v, want [KindFull]", calls)
	}
}

func TestTickerAlternatesFullEveryN(t *testing.T) {
	cache := &recordingCache{}
	ticker := New(cache, time.Millisecond, newScopeFactory(), WithFullEvery(3))

	for i := 0; i < 6; i++ {
		ticker.runOnce(context.Background())
	}
	calls := cache.snapshot()
	want := []pgcache.Kind{
		pgcache.KindFull,        // tick 0
		pgcache.KindIncremental, // tick 1
		pgcache.KindIncremental, // tick 2
		pgcache.KindFull,        // tick 3
		pgcache.KindIncremental, // tick 4
		pgcache.KindIncremental, // tick 5
	}
	if len(calls) != len(want) {
		t.Fatalf("len(calls) = %d, want %d", len(calls), len(want))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("tick %d: kind = %v, want %v", i, calls[i], want[i])
		}
	}
}

func TestTickerRunStopsOnContextCancel(t *testing.T) {
	cache := &recordingCache{}
	ticker := New(cache, time.Millisecond, newScopeFactory())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ticker.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
	if len(cache.snapshot()) == 0 {
		t.Error("expected at least one tick to have run")
	}
}

func TestTickerUsesSuppliedClock(t *testing.T) {
	cache := &recordingCache{}
	clock := &fakeClock{now: time.Unix(500, 0)}
	ticker := New(cache, time.Millisecond, newScopeFactory(), WithClock(clock))

	ticker.runOnce(context.Background())
	if ticker.lastUpdate != time.Unix(500, 0) {
		t.Errorf("lastUpdate = %v, want %v", ticker.lastUpdate, time.Unix(500, 0))
	}
}
