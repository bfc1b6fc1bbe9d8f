// Package backend declares the driver contract spec.md §6 consumes: the
// out-of-core collaborator that resolves a named backend component,
// exposes its shards, and runs queries or cursor-fetched transactions
// against each. The Policy Validator, Query Builder, Snapshot Store, and
// Fetch Pipeline never import a concrete driver — only this contract.
//
// Two implementations live at the edge of the module: pqcluster (real
// PostgreSQL, over database/sql + lib/pq) and memcluster (an in-process
// fake used by tests and examples).
package backend

import (
	"context"
	"time"

	"github.com/IvanBrykalov/pgcache/policy/hostrole"
)

// CommandControl bounds one query's execution time. Statement-level
// timeouts are always left disabled by implementations (matching the
// original source's kStatementTimeoutOff), only the command/network
// timeout is configurable here.
type CommandControl struct {
	Timeout time.Duration
}

// Registry resolves a named backend component to its ShardSet, the
// `resolve(name) -> cluster-component` contract of spec.md §6.
type Registry[Raw any] interface {
	Resolve(name string) (ShardSet[Raw], error)
}

// ShardSet exposes a backend component's independently addressed
// partitions.
type ShardSet[Raw any] interface {
	ShardCount(ctx context.Context) (int, error)
	Shard(i int) Cluster[Raw]
}

// Cluster is a single shard's query surface.
type Cluster[Raw any] interface {
	// Execute runs query once and returns every resulting row, the
	// chunk-size == 0 path of spec.md §4.4.
	Execute(ctx context.Context, role hostrole.Role, cc CommandControl, query string, args ...any) ([]Raw, error)
	// Begin opens a (optionally read-only) transaction pinned to role,
	// the chunk-size > 0 path's entry point.
	Begin(ctx context.Context, role hostrole.Role, readOnly bool, cc CommandControl) (Transaction[Raw], error)
}

// Transaction is an open backend transaction used to drive a server-side
// cursor.
type Transaction[Raw any] interface {
	MakePortal(ctx context.Context, query string, args ...any) (Portal[Raw], error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Portal is a server-side cursor bound to one query.
type Portal[Raw any] interface {
	// Fetch returns up to n further rows. An empty, non-nil slice with a
	// nil error means the cursor is exhausted.
	Fetch(ctx context.Context, n int) ([]Raw, error)
}
