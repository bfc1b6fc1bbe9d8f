package pgcache

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	golog "github.com/ipfs/go-log/v2"

	"github.com/IvanBrykalov/pgcache/backend"
	"github.com/IvanBrykalov/pgcache/container"
	"github.com/IvanBrykalov/pgcache/fetch"
	"github.com/IvanBrykalov/pgcache/policy"
	"github.com/IvanBrykalov/pgcache/querybuilder"
	"github.com/IvanBrykalov/pgcache/relax"
	"github.com/IvanBrykalov/pgcache/snapshot"
	"github.com/IvanBrykalov/pgcache/stats"
)

var log = golog.Logger("pgcache")

// Instance is the Update Controller plus the Base class contract from
// spec.md §4.5/§6, generic over the container key K, materialized value
// V, and backend row representation Raw.
type Instance[K comparable, V any, Raw any] struct {
	desc *policy.Descriptor[K, V, Raw]
	cfg  Config

	shards     backend.ShardSet[Raw]
	shardCount int
	full       querybuilder.Query
	delta      querybuilder.Query
	pipeline   fetch.Pipeline[K, V, Raw]

	snap snapshot.Store[K, V]

	// mu serializes Update entry, satisfying spec.md §5's "at most one
	// in-flight update per instance" and doubling as the lock a manual
	// Refresh call contends on against the periodic driver's own call.
	mu              sync.Mutex
	relaxIterations int
}

// New constructs a cache instance: validates the policy and
// configuration, resolves the named backend component, and populates the
// shard list. ctx bounds only the shard-count lookup, not the instance's
// subsequent lifetime.
func New[K comparable, V any, Raw any](
	ctx context.Context,
	desc *policy.Descriptor[K, V, Raw],
	cfg Config,
	registry backend.Registry[Raw],
) (*Instance[K, V, Raw], error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.AllowedUpdateTypes.Has(KindIncremental) && !desc.Incremental() {
		return nil, errors.Newf("cache %q: incremental requested but updated-field is empty", desc.Name)
	}

	shardSet, err := registry.Resolve(cfg.Backend)
	if err != nil {
		return nil, errors.Wrapf(err, "cache %q: resolve backend %q", desc.Name, cfg.Backend)
	}
	n, err := shardSet.ShardCount(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "cache %q: shard count", desc.Name)
	}
	if n == 0 {
		return nil, errors.Newf("cache %q: backend %q reports zero shards", desc.Name, cfg.Backend)
	}

	full, delta := querybuilder.Build(querybuilder.Descriptor{
		Name:           desc.Name,
		BaseQuery:      desc.EffectiveQuery(),
		ExtraPredicate: desc.ExtraPredicate,
		UpdatedField:   desc.UpdatedField,
		Incremental:    desc.Incremental(),
	})
	log.Infow("cache queries computed", "cache", desc.Name, "full_query", full.Statement, "delta_query", delta.Statement)

	return &Instance[K, V, Raw]{
		desc:       desc,
		cfg:        cfg,
		shards:     shardSet,
		shardCount: n,
		full:       full,
		delta:      delta,
		pipeline:   fetch.Pipeline[K, V, Raw]{Convert: desc.Convert, KeySelector: desc.KeySelector},
	}, nil
}

// Name returns the cache's stable identifier, as given by the policy.
func (c *Instance[K, V, Raw]) Name() string { return c.desc.Name }

// Get implements Cache.
func (c *Instance[K, V, Raw]) Get(key K) (V, bool) {
	snap := c.snap.Get()
	if snap == nil {
		var zero V
		return zero, false
	}
	return snap.Get(key)
}

// Len implements Cache.
func (c *Instance[K, V, Raw]) Len() int {
	snap := c.snap.Get()
	if snap == nil {
		return 0
	}
	return snap.Len()
}

// AllowedUpdateTypes implements Cache. It reports what the policy itself
// supports, further narrowed by cfg.AllowedUpdateTypes when the caller
// configured one (the zero Kind means "no additional restriction").
func (c *Instance[K, V, Raw]) AllowedUpdateTypes() Kind {
	supported := KindFull
	if c.desc.Incremental() {
		supported |= KindIncremental
	}
	if c.cfg.AllowedUpdateTypes != 0 {
		supported &= c.cfg.AllowedUpdateTypes
	}
	return supported
}

// Close implements Cache.
func (c *Instance[K, V, Raw]) Close() error {
	c.snap.Clear()
	return nil
}

// Update is the Update Controller entry contract from spec.md §4.5,
// invoked by an external periodic driver (or a manual Refresh call) with
// one tick's (kind, last-update-time, now). scope must be non-nil; its
// stage timer and metrics forwarding are used for the whole cycle. A kind
// not reported by AllowedUpdateTypes — whether because the policy itself
// never enabled incremental updates, or because cfg.AllowedUpdateTypes
// additionally restricts it — is silently downgraded to KindFull.
//
// On any backend error or cancellation, Update returns the error (or the
// context's cancellation cause) without publishing; the previously
// published snapshot, if any, remains current.
func (c *Instance[K, V, Raw]) Update(ctx context.Context, kind Kind, lastUpdate, now time.Time, scope *stats.Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.AllowedUpdateTypes().Has(kind) {
		kind = KindFull
	}

	query, timeout := c.full, c.cfg.FullUpdateTimeout
	if kind == KindIncremental {
		query, timeout = c.delta, c.cfg.IncrementalUpdateTimeout
	}

	scope.Reset("copy_data")
	working := c.workingContainer(kind)

	scope.Reset("fetch")
	args := c.watermarkArgs(kind, lastUpdate, working)

	relaxer := relax.New(c.relaxIterations, scope)
	cc := backend.CommandControl{Timeout: timeout}
	role := c.desc.EffectiveHostRole()

	var changes, parseFailures int
	for i := 0; i < c.shardCount; i++ {
		res, err := c.pipeline.Run(ctx, c.shards.Shard(i), role, cc, query, c.cfg.ChunkSize, args, working, scope.Scope, relaxer)
		if err != nil {
			scope.End(err)
			return errors.Wrapf(err, "cache %q: update shard %d", c.desc.Name, i)
		}
		changes += res.Changes
		parseFailures += res.ParseFailures
	}

	scope.Reset("")
	if parseElapsed := scope.ElapsedTotal("parse"); parseElapsed > relax.Threshold {
		c.relaxIterations = relax.ComputeIterations(changes, parseElapsed)
	}

	scope.DocumentsRead(changes)
	scope.DocumentsParseFailures(parseFailures)

	if changes > 0 || kind == KindFull {
		c.snap.Set(working)
		scope.Finish(working.Len())
	} else {
		scope.FinishNoChanges()
	}

	scope.End(nil)
	return nil
}

func (c *Instance[K, V, Raw]) workingContainer(kind Kind) container.Container[K, V] {
	if kind == KindFull {
		return c.desc.EffectiveContainerFactory()()
	}
	if cur := c.snap.Get(); cur != nil {
		return cur.Clone()
	}
	return c.desc.EffectiveContainerFactory()()
}

func (c *Instance[K, V, Raw]) watermarkArgs(kind Kind, lastUpdate time.Time, working container.Container[K, V]) []any {
	if kind != KindIncremental {
		return nil
	}
	watermark := lastUpdate.Add(-c.cfg.UpdateCorrection)
	if c.desc.GetLastKnownUpdated != nil {
		watermark = c.desc.GetLastKnownUpdated(working)
	}
	return []any{watermark}
}

// Compile-time check: ensure Instance implements Cache.
var _ Cache[int, int] = (*Instance[int, int, int])(nil)
