// Package policy defines the compile-time-ish cache policy descriptor:
// the bundle of row type, key, query, and update-column information that
// a caller supplies to parameterize a generic cache instance.
//
// The original source (userver's components::PostgreCache) detects these
// as optional static members via SFINAE. Go has no template
// introspection, so the same trait system is expressed as an ordinary
// struct whose optional capabilities are nil-able fields: presence of a
// field stands in for "the trait is detected". Descriptor.Validate is the
// Policy Validator from spec.md §4.1, run once at cache construction.
package policy

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/IvanBrykalov/pgcache/container"
	"github.com/IvanBrykalov/pgcache/policy/hostrole"
)

// Descriptor bundles everything a generic cache needs to know about one
// cached table: its row type V, its wire/row representation Raw (equal to
// V when no conversion step is needed), and its key type K.
type Descriptor[K comparable, V any, Raw any] struct {
	// Name is the stable cache identifier used in logs, metrics, and
	// config lookups. Required.
	Name string

	// Query is a literal SQL statement. Exactly one of Query/QueryFunc
	// must be set.
	Query string
	// QueryFunc returns the base query lazily, sidestepping
	// initialization-order issues between package-level variables (the
	// same reason the original source allows a GetQuery() static member
	// instead of a plain std::string).
	QueryFunc func() string

	// ExtraPredicate is an optional SQL fragment appended as `AND` to
	// delta queries and as `WHERE` to full queries.
	ExtraPredicate string

	// UpdatedField is the column used for incremental watermarking. An
	// empty string is the explicit opt-out of incremental updates, not a
	// missing-field error.
	UpdatedField string

	// KeySelector projects a ValueType to its cache key. Required. An
	// error return is a key-extract failure: one of the three per-row
	// failure categories spec.md §4.4/§8 names alongside parse and
	// convert, counted and logged the same way, the row skipped and the
	// cycle continued rather than aborted.
	KeySelector func(V) (K, error)

	// Convert turns a parsed Raw row into a ValueType. When Raw == V,
	// pass Identity[V] (no template-level "defaults to ValueType" exists
	// in Go; this is the idiomatic stand-in). Required.
	Convert func(Raw) (V, error)

	// GetLastKnownUpdated computes the delta watermark from the current
	// snapshot's contents instead of `last_update - correction`. Per
	// spec.md §9's resolved Open Question, when this is nil the fallback
	// watermark is computed against the *source* clock supplied by the
	// caller of Update, never a backend-read clock.
	GetLastKnownUpdated func(container.Container[K, V]) time.Time

	// ClusterHostRole selects which replica role(s) to read from. Zero
	// defaults to hostrole.Any ("any secondary").
	ClusterHostRole hostrole.Role

	// ContainerFactory overrides the default map-backed Container. Nil
	// uses container.New.
	ContainerFactory container.Factory[K, V]
}

// Identity is the Convert function for policies where Raw == V: the row
// type returned by the driver is already the materialized value type.
func Identity[V any](v V) (V, error) { return v, nil }

// Incremental reports whether this descriptor supports incremental
// (delta) updates. An empty UpdatedField is the explicit opt-out.
func (d *Descriptor[K, V, Raw]) Incremental() bool { return d.UpdatedField != "" }

// EffectiveHostRole returns ClusterHostRole, defaulting to hostrole.Any.
func (d *Descriptor[K, V, Raw]) EffectiveHostRole() hostrole.Role {
	if d.ClusterHostRole == 0 {
		return hostrole.Any
	}
	return d.ClusterHostRole
}

// EffectiveQuery resolves Query/QueryFunc into the base query string.
func (d *Descriptor[K, V, Raw]) EffectiveQuery() string {
	if d.QueryFunc != nil {
		return d.QueryFunc()
	}
	return d.Query
}

// EffectiveContainerFactory resolves ContainerFactory, defaulting to
// container.New.
func (d *Descriptor[K, V, Raw]) EffectiveContainerFactory() container.Factory[K, V] {
	if d.ContainerFactory != nil {
		return d.ContainerFactory
	}
	return container.New[K, V]
}

// Validate checks the static shape of the descriptor, mirroring the
// PolicyChecker static_asserts in the original source. All failures are
// fatal and meant to be surfaced to the embedder at construction time.
func (d *Descriptor[K, V, Raw]) Validate() error {
	if d.Name == "" {
		return errors.New("cache policy: name must not be empty")
	}
	if d.KeySelector == nil {
		return errors.Newf("cache policy %q: KeySelector is required", d.Name)
	}
	if d.Convert == nil {
		return errors.Newf("cache policy %q: Convert is required (use policy.Identity[V] when RawValueType == ValueType)", d.Name)
	}

	hasQuery := d.Query != ""
	hasQueryFunc := d.QueryFunc != nil
	if !hasQuery && !hasQueryFunc {
		return errors.Newf("cache policy %q: must define Query or QueryFunc", d.Name)
	}
	if hasQuery && hasQueryFunc {
		return errors.Newf("cache policy %q: must define Query or QueryFunc, not both", d.Name)
	}

	if !d.EffectiveHostRole().Legal() {
		return errors.Newf("cache policy %q: cluster host role must be a non-empty combination of master/sync/slave", d.Name)
	}

	return nil
}
