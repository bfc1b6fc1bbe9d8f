// Package memcluster is an in-process fake implementing the backend
// contract (package backend) over plain Go slices instead of a real
// PostgreSQL connection. It is used by the pgcache test suite and by the
// examples, exactly the way spec.md §1 frames the SQL backend as a named
// external collaborator: core packages depend only on backend.Registry,
// never on memcluster or pqcluster directly.
package memcluster

import (
	"context"
	"sync"
	"time"

	"github.com/IvanBrykalov/pgcache/backend"
	"github.com/IvanBrykalov/pgcache/policy/hostrole"
)

// Table is one shard's row set for a fake cluster. Its rows are read under a
// mutex so tests can mutate it between update cycles to simulate writes
// landing on the backend between polls.
type Table[Raw any] struct {
	mu        sync.Mutex
	rows      []Raw
	updatedAt func(Raw) time.Time

	// Err, if set, is returned by Execute/Begin instead of running the
	// fake query — used to simulate backend errors and exercise the
	// "cycle aborted, no publish" path (spec.md §7).
	Err error
}

// NewTable constructs a fake shard table. updatedAt is used to filter
// delta ("incremental") queries; pass nil if the policy under test never
// runs incremental updates against this table.
func NewTable[Raw any](rows []Raw, updatedAt func(Raw) time.Time) *Table[Raw] {
	return &Table[Raw]{rows: append([]Raw(nil), rows...), updatedAt: updatedAt}
}

// SetRows atomically replaces the table's contents, simulating writes
// landing on the backend between update cycles.
func (t *Table[Raw]) SetRows(rows []Raw) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append([]Raw(nil), rows...)
}

func (t *Table[Raw]) snapshot(watermark *time.Time) []Raw {
	t.mu.Lock()
	defer t.mu.Unlock()
	if watermark == nil || t.updatedAt == nil {
		return append([]Raw(nil), t.rows...)
	}
	out := make([]Raw, 0, len(t.rows))
	for _, r := range t.rows {
		if !t.updatedAt(r).Before(*watermark) {
			out = append(out, r)
		}
	}
	return out
}

// Registry is a fake backend.Registry keyed by component name.
type Registry[Raw any] struct {
	mu         sync.RWMutex
	components map[string]*ShardSet[Raw]
}

// NewRegistry constructs an empty fake registry.
func NewRegistry[Raw any]() *Registry[Raw] {
	return &Registry[Raw]{components: make(map[string]*ShardSet[Raw])}
}

// Register adds a named component backed by the given per-shard tables.
func (r *Registry[Raw]) Register(name string, shards ...*Table[Raw]) *ShardSet[Raw] {
	r.mu.Lock()
	defer r.mu.Unlock()
	ss := &ShardSet[Raw]{shards: shards}
	r.components[name] = ss
	return ss
}

// Resolve implements backend.Registry.
func (r *Registry[Raw]) Resolve(name string) (backend.ShardSet[Raw], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ss, ok := r.components[name]
	if !ok {
		return nil, errNotFound(name)
	}
	return ss, nil
}

type errNotFound string

func (e errNotFound) Error() string { return "memcluster: no component named " + string(e) }

// ShardSet implements backend.ShardSet over a fixed slice of Tables.
type ShardSet[Raw any] struct {
	shards []*Table[Raw]
}

func (s *ShardSet[Raw]) ShardCount(context.Context) (int, error) { return len(s.shards), nil }

func (s *ShardSet[Raw]) Shard(i int) backend.Cluster[Raw] {
	return &cluster[Raw]{table: s.shards[i]}
}

type cluster[Raw any] struct {
	table *Table[Raw]
}

func (c *cluster[Raw]) Execute(ctx context.Context, _ hostrole.Role, _ backend.CommandControl, _ string, args ...any) ([]Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.table.Err != nil {
		return nil, c.table.Err
	}
	return c.table.snapshot(watermarkArg(args)), nil
}

func (c *cluster[Raw]) Begin(ctx context.Context, _ hostrole.Role, _ bool, _ backend.CommandControl) (backend.Transaction[Raw], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.table.Err != nil {
		return nil, c.table.Err
	}
	return &transaction[Raw]{table: c.table}, nil
}

type transaction[Raw any] struct {
	table *Table[Raw]
}

func (t *transaction[Raw]) MakePortal(ctx context.Context, _ string, args ...any) (backend.Portal[Raw], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &portal[Raw]{rows: t.table.snapshot(watermarkArg(args))}, nil
}

func (t *transaction[Raw]) Commit(context.Context) error   { return nil }
func (t *transaction[Raw]) Rollback(context.Context) error { return nil }

type portal[Raw any] struct {
	rows []Raw
	pos  int
}

func (p *portal[Raw]) Fetch(ctx context.Context, n int) ([]Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.pos >= len(p.rows) {
		return []Raw{}, nil
	}
	end := p.pos + n
	if end > len(p.rows) {
		end = len(p.rows)
	}
	batch := p.rows[p.pos:end]
	p.pos = end
	return batch, nil
}

func watermarkArg(args []any) *time.Time {
	if len(args) == 0 {
		return nil
	}
	t, ok := args[0].(time.Time)
	if !ok {
		return nil
	}
	return &t
}
