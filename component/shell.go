// Package component implements the Component Shell from spec.md §4.7:
// the binding between a configured, policy-driven cache instance and the
// surrounding service — configuration, backend resolution, the
// background update loop's lifecycle, and (supplemental, per
// SPEC_FULL.md §4.7) a manual on-demand refresh entry point.
package component

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	golog "github.com/ipfs/go-log/v2"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/pgcache/backend"
	"github.com/IvanBrykalov/pgcache/internal/singleflight"
	"github.com/IvanBrykalov/pgcache/pgcache"
	"github.com/IvanBrykalov/pgcache/policy"
	"github.com/IvanBrykalov/pgcache/stats"
	"github.com/IvanBrykalov/pgcache/tracing"
	"github.com/IvanBrykalov/pgcache/updater"
)

var log = golog.Logger("pgcache/component")

// Shell binds a pgcache.Instance to a running service: it owns the
// background update loop and exposes Start/Stop lifecycle hooks plus a
// manual Refresh entry point, per spec.md §4.7.
type Shell[K comparable, V any, Raw any] struct {
	cache   *pgcache.Instance[K, V, Raw]
	ticker  *updater.Ticker
	tracer  trace.Tracer
	metrics stats.Metrics

	sf singleflight.Group[pgcache.Kind, struct{}]

	refreshMu        sync.Mutex
	lastManualUpdate time.Time

	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	group       *errgroup.Group
}

// New constructs a Shell: it validates the policy and configuration,
// resolves the backend component by name, populates the shard list, and
// logs the computed queries (all via pgcache.New), then wires a
// background updater.Ticker on tickInterval. The cache does not start
// updating until Start is called.
func New[K comparable, V any, Raw any](
	ctx context.Context,
	desc *policy.Descriptor[K, V, Raw],
	cfg pgcache.Config,
	registry backend.Registry[Raw],
	tracer trace.Tracer,
	metrics stats.Metrics,
	tickInterval time.Duration,
	opts ...updater.Option,
) (*Shell[K, V, Raw], error) {
	cache, err := pgcache.New(ctx, desc, cfg, registry)
	if err != nil {
		return nil, err
	}

	s := &Shell[K, V, Raw]{cache: cache, tracer: tracer, metrics: metrics}
	s.ticker = updater.New(cache, tickInterval, s.newScope, opts...)
	return s, nil
}

func (s *Shell[K, V, Raw]) newScope(ctx context.Context) (context.Context, *stats.Scope) {
	cctx, ts := tracing.Start(ctx, s.tracer, s.cache.Name())
	return cctx, stats.NewScope(ts, s.metrics)
}

// Cache exposes the underlying pgcache.Cache contract for lookups.
func (s *Shell[K, V, Raw]) Cache() pgcache.Cache[K, V] { return s.cache }

// Start launches the background update loop. Calling Start twice without
// an intervening Stop returns an error.
func (s *Shell[K, V, Raw]) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.started {
		return errors.Newf("cache %q: already started", s.cache.Name())
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return s.ticker.Run(groupCtx) })

	s.cancel = cancel
	s.group = group
	s.started = true
	return nil
}

// Stop deregisters from the periodic updater and releases the published
// snapshot, per spec.md §4.7 ("deregister before any owned state is
// released"). Idempotent: a second call is a no-op.
func (s *Shell[K, V, Raw]) Stop() error {
	s.lifecycleMu.Lock()
	if !s.started {
		s.lifecycleMu.Unlock()
		return nil
	}
	s.started = false
	cancel, group := s.cancel, s.group
	s.lifecycleMu.Unlock()

	cancel()
	err := group.Wait()
	if closeErr := s.cache.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Refresh forces an out-of-cadence update of the given kind, e.g. after a
// known bulk write to the backend. Concurrent Refresh calls for the same
// kind are coalesced via internal/singleflight, so only one extra Update
// call runs even if many callers ask at once; pgcache.Instance's own
// per-instance mutex still serializes this against the periodic driver's
// own call, honoring spec.md §5's "at most one in-flight update".
//
// Refresh tracks its own last-update time, independent of the periodic
// ticker's: a manual refresh passes the start time of the previous
// successful manual refresh (the zero time before the first one) as
// lastUpdate, so its delta binds that time minus correction (or the
// policy's custom watermark function, which ignores this value
// entirely), rather than reaching into the ticker's private schedule
// state.
func (s *Shell[K, V, Raw]) Refresh(ctx context.Context, kind pgcache.Kind) error {
	_, err := s.sf.Do(ctx, kind, func() (struct{}, error) {
		now := time.Now()
		s.refreshMu.Lock()
		last := s.lastManualUpdate
		s.refreshMu.Unlock()

		cctx, scope := s.newScope(ctx)
		err := s.cache.Update(cctx, kind, last, now, scope)
		if err != nil {
			log.Errorw("manual refresh failed", "cache", s.cache.Name(), "kind", kind.String(), "error", err)
			return struct{}{}, err
		}

		s.refreshMu.Lock()
		s.lastManualUpdate = now
		s.refreshMu.Unlock()
		return struct{}{}, nil
	})
	return err
}
