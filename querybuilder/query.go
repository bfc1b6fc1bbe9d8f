// Package querybuilder produces the full and delta query forms a policy's
// base query implies, per spec.md §4.2.
package querybuilder

import "fmt"

// Query is a named SQL statement. Name is stable across calls for a given
// policy name and form, so a backend driver can use it as a prepared
// statement cache key (the same role storages::postgres::Query's
// GetName() plays in the original source).
type Query struct {
	Statement string
	Name      string
}

// Descriptor is the minimal shape querybuilder needs from a policy.
// querybuilder does not import package policy; callers (pgcache.New)
// fill this from a policy.Descriptor.
type Descriptor struct {
	Name           string
	BaseQuery      string
	ExtraPredicate string
	UpdatedField   string
	Incremental    bool
}

// Build returns the full and delta queries for d. Delta degenerates to
// Full when d.Incremental is false.
func Build(d Descriptor) (full, delta Query) {
	full = buildFull(d)
	if !d.Incremental {
		return full, full
	}
	delta = buildDelta(d)
	return full, delta
}

func buildFull(d Descriptor) Query {
	stmt := d.BaseQuery
	if d.ExtraPredicate != "" {
		stmt = fmt.Sprintf("%s where %s", d.BaseQuery, d.ExtraPredicate)
	}
	return Query{Statement: stmt, Name: d.Name + "/full"}
}

func buildDelta(d Descriptor) Query {
	var stmt string
	if d.ExtraPredicate != "" {
		stmt = fmt.Sprintf("%s where (%s) and %s >= $1", d.BaseQuery, d.ExtraPredicate, d.UpdatedField)
	} else {
		stmt = fmt.Sprintf("%s where %s >= $1", d.BaseQuery, d.UpdatedField)
	}
	return Query{Statement: stmt, Name: d.Name + "/delta"}
}
