// Package fetch implements the Fetch Pipeline from spec.md §4.4: per-shard
// cursor-or-batch execution against a backend.Cluster, row
// parse/convert/key/upsert, parse-failure counting, and adaptive
// cooperative yielding between rows.
package fetch

import (
	"context"
	"fmt"

	golog "github.com/ipfs/go-log/v2"

	"github.com/IvanBrykalov/pgcache/backend"
	"github.com/IvanBrykalov/pgcache/container"
	"github.com/IvanBrykalov/pgcache/policy/hostrole"
	"github.com/IvanBrykalov/pgcache/querybuilder"
	"github.com/IvanBrykalov/pgcache/relax"
	"github.com/IvanBrykalov/pgcache/tracing"
)

var log = golog.Logger("pgcache/fetch")

// Pipeline runs one shard's portion of one update cycle. It holds no
// per-cycle state of its own; Run is called once per shard, per cycle,
// by the Update Controller.
type Pipeline[K comparable, V any, Raw any] struct {
	// Convert maps a raw row into the materialized value. Pass an
	// identity function when RawValueType == ValueType.
	Convert func(Raw) (V, error)
	// KeySelector extracts the container key from a materialized value.
	// An error return is treated the same as a Convert failure: the row
	// is counted and logged as a parse failure and skipped, the cycle
	// continues.
	KeySelector func(V) (K, error)
}

// Result summarizes one shard's pass.
type Result struct {
	Changes       int
	ParseFailures int
}

// Run streams rows from cluster into into, applying Convert/KeySelector
// to every row and upserting it (last-write-wins). chunkSize <= 0 selects
// the single round-trip path; chunkSize > 0 drives a server-side cursor.
// args is passed through to the query verbatim — empty for a full query,
// [watermark] for a delta query.
func (p *Pipeline[K, V, Raw]) Run(
	ctx context.Context,
	cluster backend.Cluster[Raw],
	role hostrole.Role,
	cc backend.CommandControl,
	query querybuilder.Query,
	chunkSize int,
	args []any,
	into container.Container[K, V],
	scope *tracing.Scope,
	relaxer *relax.Relaxer,
) (Result, error) {
	if chunkSize > 0 {
		return p.runCursor(ctx, cluster, role, cc, query, chunkSize, args, into, scope, relaxer)
	}
	return p.runBatch(ctx, cluster, role, cc, query, args, into, scope, relaxer)
}

func (p *Pipeline[K, V, Raw]) runBatch(
	ctx context.Context,
	cluster backend.Cluster[Raw],
	role hostrole.Role,
	cc backend.CommandControl,
	query querybuilder.Query,
	args []any,
	into container.Container[K, V],
	scope *tracing.Scope,
	relaxer *relax.Relaxer,
) (Result, error) {
	scope.Reset("fetch")
	rows, err := cluster.Execute(ctx, role, cc, query.Statement, args...)
	if err != nil {
		return Result{}, err
	}

	scope.Reset("parse")
	parseFailures := p.apply(rows, into, relaxer)
	return Result{Changes: len(rows), ParseFailures: parseFailures}, nil
}

func (p *Pipeline[K, V, Raw]) runCursor(
	ctx context.Context,
	cluster backend.Cluster[Raw],
	role hostrole.Role,
	cc backend.CommandControl,
	query querybuilder.Query,
	chunkSize int,
	args []any,
	into container.Container[K, V],
	scope *tracing.Scope,
	relaxer *relax.Relaxer,
) (Result, error) {
	scope.Reset("fetch")
	tx, err := cluster.Begin(ctx, role, true, cc)
	if err != nil {
		return Result{}, err
	}

	portal, err := tx.MakePortal(ctx, query.Statement, args...)
	if err != nil {
		_ = tx.Rollback(ctx)
		return Result{}, err
	}

	var result Result
	for {
		scope.Reset("fetch")
		rows, err := portal.Fetch(ctx, chunkSize)
		if err != nil {
			_ = tx.Rollback(ctx)
			return Result{}, err
		}
		if len(rows) == 0 {
			break
		}

		scope.Reset("parse")
		result.Changes += len(rows)
		result.ParseFailures += p.apply(rows, into, relaxer)
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}
	return result, nil
}

// apply converts, keys, and upserts every row in rows, counting and
// logging per-row failures without aborting the batch. relaxer.Relax is
// invoked once per row, matching spec.md §4.4's "between rows" cadence.
func (p *Pipeline[K, V, Raw]) apply(rows []Raw, into container.Container[K, V], relaxer *relax.Relaxer) int {
	failures := 0
	for _, raw := range rows {
		v, err := p.Convert(raw)
		if err != nil {
			failures++
			log.Errorw("row parse failure", "type", fmt.Sprintf("%T", raw), "error", err)
			relaxer.Relax()
			continue
		}
		k, err := p.KeySelector(v)
		if err != nil {
			failures++
			log.Errorw("row key-extract failure", "type", fmt.Sprintf("%T", v), "error", err)
			relaxer.Relax()
			continue
		}
		into.Set(k, v)
		relaxer.Relax()
	}
	return failures
}
