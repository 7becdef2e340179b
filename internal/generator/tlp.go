package generator

// The methods below let the TLP WHERE oracle drive the generator through its
// generic query-generator interface.

// GeneratePredicate builds a random boolean expression over the columns
// visible to base.
func (g *Generator) GeneratePredicate(base *SelectQuery) Expr {
	return g.predicate(base.scope, g.maxDepth)
}

// Not returns NOT e.
func (g *Generator) Not(e Expr) Expr {
	return UnaryExpr{Op: "NOT", Expr: e}
}

// And returns l AND r.
func (g *Generator) And(l, r Expr) Expr {
	return BinaryExpr{Left: l, Op: "AND", Right: r}
}

// Or returns l OR r.
func (g *Generator) Or(l, r Expr) Expr {
	return BinaryExpr{Left: l, Op: "OR", Right: r}
}

// IsNull returns e IS NULL.
func (g *Generator) IsNull(e Expr) Expr {
	return BinaryExpr{Left: e, Op: "IS", Right: LiteralExpr{}}
}

// Render renders the query as generated, including ORDER BY.
func (g *Generator) Render(q *SelectQuery) string {
	return q.SQLString(g.Config.Dialect)
}

// RenderFiltered renders q with filter as its WHERE clause and without
// ORDER BY. q itself is not modified.
func (g *Generator) RenderFiltered(q *SelectQuery, filter Expr) string {
	b := SQLBuilder{Dialect: g.Config.Dialect}
	q.build(&b, filter, false)
	return b.String()
}

// OrderKeys renders the ORDER BY key list of q, or "" when unordered.
func (g *Generator) OrderKeys(q *SelectQuery) string {
	if len(q.OrderBy) == 0 {
		return ""
	}
	return q.orderKeys(g.Config.Dialect)
}
