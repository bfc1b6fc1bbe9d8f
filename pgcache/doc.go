// Package pgcache implements the Update Controller and the cache's
// upward-facing Base class contract (spec.md §4.5 and §6): a
// policy-driven, read-through, periodically refreshed in-memory cache
// over a sharded SQL backend.
//
// A cache instance is constructed once per logical table via New, with a
// policy.Descriptor describing the row type, key, query, and update
// column, and is driven by repeated calls to Update from an external
// periodic-update driver (package updater, or a service's own
// scheduler). Lookups via Get never block on Update and vice versa.
package pgcache
