package component

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/IvanBrykalov/pgcache/backend/memcluster"
	"github.com/IvanBrykalov/pgcache/pgcache"
	"github.com/IvanBrykalov/pgcache/policy"
)

type row struct {
	ID   int
	Name string
}

func newShell(t *testing.T, tickInterval time.Duration) (*Shell[int, row, row], *memcluster.Table[row]) {
	t.Helper()
	table := memcluster.NewTable([]row{{ID: 1, Name: "a"}}, nil)
	reg := memcluster.NewRegistry[row]()
	reg.Register("widgets", table)

	desc := &policy.Descriptor[int, row, row]{
		Name:        "widgets",
		Query:       "SELECT id, name FROM widgets",
		KeySelector: func(v row) (int, error) { return v.ID, nil },
		Convert:     policy.Identity[row],
	}
	cfg := pgcache.NewConfig(pgcache.WithBackend("widgets"))

	s, err := New[int, row, row](context.Background(), desc, cfg, reg, noop.NewTracerProvider().Tracer("test"), nil, tickInterval)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, table
}

func TestShellStartStopIdempotent(t *testing.T) {
	s, _ := newShell(t, time.Hour)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() without Stop() should fail")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop() should be a no-op, got error = %v", err)
	}
}

func TestShellRefreshPopulatesCache(t *testing.T) {
	s, _ := newShell(t, time.Hour)

	if s.Cache().Len() != 0 {
		t.Fatalf("cache should start empty before any Refresh")
	}
	if err := s.Refresh(context.Background(), pgcache.KindFull); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if s.Cache().Len() != 1 {
		t.Errorf("cache.Len() = %d, want 1 after Refresh", s.Cache().Len())
	}
	if v, ok := s.Cache().Get(1); !ok || v.Name != "a" {
		t.Errorf("Get(1) = %v, %v", v, ok)
	}
}

func TestShellRefreshCoalescesConcurrentCalls(t *testing.T) {
	s, _ := newShell(t, time.Hour)

	const n = 16
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() { errs <- s.Refresh(context.Background(), pgcache.KindFull) }()
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Refresh() error = %v", err)
		}
	}
	if s.Cache().Len() != 1 {
		t.Errorf("cache.Len() = %d, want 1", s.Cache().Len())
	}
}
