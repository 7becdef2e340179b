package oracle

import (
	"fmt"
	"strings"
)

// Discipline is the comparison rule applied to reference and combined rows.
type Discipline string

const (
	// DisciplineMultiset compares rows as bags: order is ignored, counts are not.
	DisciplineMultiset Discipline = "multiset"
	// DisciplineOrdered compares rows position by position.
	DisciplineOrdered Discipline = "ordered"
	// DisciplineSet compares distinct values only.
	DisciplineSet Discipline = "set"
)

// PartitionSet is the rendered partition queries of one cycle plus how they
// are combined.
type PartitionSet struct {
	Queries []string `json:"queries"`
	// OrderKeys, when set, orders the merged partitions in one statement.
	OrderKeys string `json:"order_keys,omitempty"`
	// UnionAll merges unordered partitions in one statement.
	UnionAll bool `json:"union_all,omitempty"`
}

// Ordered reports whether the combined rows carry an order.
func (p PartitionSet) Ordered() bool {
	return p.OrderKeys != ""
}

// merged reports whether all partitions run as one statement.
func (p PartitionSet) merged() bool {
	return p.Ordered() || p.UnionAll
}

// UnionSQL renders the single statement that merges every partition.
func (p PartitionSet) UnionSQL() string {
	union := strings.Join(p.Queries, " UNION ALL ")
	if !p.Ordered() {
		return union
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS tlp_u ORDER BY %s", union, p.OrderKeys)
}

// Statements returns the SQL that Combine sends to the engine.
func (p PartitionSet) Statements() []string {
	if p.merged() {
		return []string{p.UnionSQL()}
	}
	return append([]string{}, p.Queries...)
}

type filterRenderer[E any, Q any] interface {
	ExprCapabilities[E]
	RenderFiltered(q Q, filter E) string
}

// ComposeSingle renders the three partitions of one predicate:
// WHERE p, WHERE NOT p and WHERE p IS NULL.
func ComposeSingle[E any, Q any](r filterRenderer[E, Q], base Q, v PredicateVariants[E]) []string {
	return []string{
		r.RenderFiltered(base, v.Predicate),
		r.RenderFiltered(base, v.Negated),
		r.RenderFiltered(base, v.IsNull),
	}
}

// ComposeDual renders the five queries of the two-predicate form:
//
//	WHERE l
//	WHERE r
//	WHERE (l OR r) IS NULL
//	WHERE NOT l AND NOT r
//	WHERE l AND r
//
// Together they cover every row of base at least once, but rows where both
// l and r are TRUE are returned three times, so the union only matches base
// as a set of distinct values.
func ComposeDual[E any, Q any](r filterRenderer[E, Q], base Q, left, right PredicateVariants[E]) []string {
	return []string{
		r.RenderFiltered(base, left.Predicate),
		r.RenderFiltered(base, right.Predicate),
		r.RenderFiltered(base, r.IsNull(r.Or(left.Predicate, right.Predicate))),
		r.RenderFiltered(base, r.And(left.Negated, right.Negated)),
		r.RenderFiltered(base, r.And(left.Predicate, right.Predicate)),
	}
}
