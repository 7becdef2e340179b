// Package oracle implements the ternary-logic WHERE partitioning (TLP WHERE)
// test oracle.
//
// For a base query Q and a predicate P, every row of Q satisfies exactly one
// of P, NOT P and P IS NULL. Running Q three times, once per variant, and
// combining the row sets must therefore reproduce Q. A mismatch means the
// engine evaluated at least one of the statements incorrectly.
//
//	Q:  SELECT t0.c0 AS f0 FROM t0
//	Q1: SELECT t0.c0 AS f0 FROM t0 WHERE (t0.c0 > 1)
//	Q2: SELECT t0.c0 AS f0 FROM t0 WHERE (NOT (t0.c0 > 1))
//	Q3: SELECT t0.c0 AS f0 FROM t0 WHERE ((t0.c0 > 1) IS NULL)
//
// The oracle is generic over the expression type E and the query type Q so
// any dialect's AST can drive it through QueryGenerator.
package oracle

import (
	"context"
	"math/rand"

	"tlpwhere/internal/schema"
)

// ExprCapabilities builds the boolean combinations the partitions need.
// Implementations must not modify their arguments.
type ExprCapabilities[E any] interface {
	Not(e E) E
	And(l, r E) E
	Or(l, r E) E
	IsNull(e E) E
}

// QueryGenerator produces and renders queries for one dialect.
type QueryGenerator[E any, Q any] interface {
	ExprCapabilities[E]
	// GenerateBase returns an unfiltered, unordered query over the group.
	GenerateBase(group schema.TableGroup) Q
	// GenerateOrderBy returns a copy of base with ORDER BY keys drawn from its
	// projected aliases; the first projected alias is always a key.
	GenerateOrderBy(base Q) Q
	// GeneratePredicate returns a random boolean expression valid in base's WHERE.
	GeneratePredicate(base Q) E
	// Render renders q as is, including any ORDER BY.
	Render(q Q) string
	// RenderFiltered renders q with filter as WHERE and without ORDER BY.
	RenderFiltered(q Q, filter E) string
	// OrderKeys renders q's ORDER BY key list, or "" when q is unordered.
	OrderKeys(q Q) string
}

// Executor runs a query and returns the first column of each row as text,
// with SQL NULL rendered as a fixed marker.
type Executor interface {
	QueryFirstColumn(ctx context.Context, sql string) ([]string, error)
}

// TablePicker selects the tables a cycle queries.
type TablePicker interface {
	PickNonEmptyTableGroup(r *rand.Rand) (schema.TableGroup, error)
}

// Result is the outcome of one oracle cycle in reporting form.
type Result struct {
	OK       bool
	Oracle   string
	SQL      []string
	Expected string
	Actual   string
	Details  map[string]any
	Err      error
}
