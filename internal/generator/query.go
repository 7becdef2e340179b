package generator

import (
	"strings"

	"tlpwhere/internal/config"
)

// JoinType defines join kinds for SQL generation.
type JoinType string

// Join kinds emitted by the generator.
const (
	JoinInner JoinType = "JOIN"
	JoinLeft  JoinType = "LEFT JOIN"
	JoinCross JoinType = "CROSS JOIN"
)

// Join models a FROM join clause.
type Join struct {
	Type  JoinType
	Table string
	On    Expr
}

// FromClause models a FROM clause with joins.
type FromClause struct {
	BaseTable string
	Joins     []Join
}

// OrderBy models an ORDER BY item.
type OrderBy struct {
	Expr Expr
	Desc bool
}

// SelectItem models a SELECT list item.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// SelectQuery models a SELECT statement. Once generated it is treated as
// immutable; derived statements are rendered, never written back.
type SelectQuery struct {
	Hint    *Hint
	Items   []SelectItem
	From    FromClause
	Where   Expr
	OrderBy []OrderBy
	// scope lists the columns visible to WHERE.
	scope []ColumnRef
}

// Build emits the SQL for the select query into the builder.
func (q *SelectQuery) Build(b *SQLBuilder) {
	q.build(b, q.Where, true)
}

func (q *SelectQuery) build(b *SQLBuilder, where Expr, withOrder bool) {
	b.Write("SELECT ")
	if q.Hint != nil && b.Dialect != config.DialectSQLite {
		b.Write("/*+ ")
		q.Hint.Build(b)
		b.Write(" */ ")
	}
	for i, item := range q.Items {
		if i > 0 {
			b.Write(", ")
		}
		item.Expr.Build(b)
		b.Write(" AS ")
		b.Write(item.Alias)
	}
	b.Write(" FROM ")
	b.Write(q.From.BaseTable)
	for _, join := range q.From.Joins {
		b.Write(" ")
		b.Write(string(join.Type))
		b.Write(" ")
		b.Write(join.Table)
		if join.On != nil {
			b.Write(" ON ")
			join.On.Build(b)
		}
	}
	if where != nil {
		b.Write(" WHERE ")
		where.Build(b)
	}
	if withOrder && len(q.OrderBy) > 0 {
		b.Write(" ORDER BY ")
		b.Write(q.orderKeys(b.Dialect))
	}
}

func (q *SelectQuery) orderKeys(dialect config.Dialect) string {
	parts := make([]string, 0, len(q.OrderBy))
	for _, ob := range q.OrderBy {
		key := BuildString(dialect, ob.Expr)
		if ob.Desc {
			key += " DESC"
		}
		parts = append(parts, key)
	}
	return strings.Join(parts, ", ")
}

// ColumnAliases returns the SELECT-list aliases in order.
func (q *SelectQuery) ColumnAliases() []string {
	aliases := make([]string, 0, len(q.Items))
	for _, item := range q.Items {
		aliases = append(aliases, item.Alias)
	}
	return aliases
}

// Clone creates a shallow copy of the query structure.
func (q *SelectQuery) Clone() *SelectQuery {
	clone := *q
	clone.Items = append([]SelectItem{}, q.Items...)
	clone.OrderBy = append([]OrderBy{}, q.OrderBy...)
	clone.scope = append([]ColumnRef{}, q.scope...)
	clone.From = FromClause{BaseTable: q.From.BaseTable, Joins: append([]Join{}, q.From.Joins...)}
	return &clone
}

// Scope returns the columns a WHERE clause may reference.
func (q *SelectQuery) Scope() []ColumnRef {
	return append([]ColumnRef{}, q.scope...)
}

// SQLString renders the query for a dialect.
func (q *SelectQuery) SQLString(dialect config.Dialect) string {
	return BuildString(dialect, q)
}
