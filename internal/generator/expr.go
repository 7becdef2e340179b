package generator

import (
	"fmt"
	"strconv"
	"strings"

	"tlpwhere/internal/schema"
)

// Expr renders a SQL expression.
type Expr interface {
	Build(b *SQLBuilder)
	Columns() []ColumnRef
}

// ColumnRef identifies a column used in expressions.
type ColumnRef struct {
	Table string
	Name  string
	Type  schema.ColumnType
}

// ColumnExpr renders a column reference.
type ColumnExpr struct {
	Ref ColumnRef
}

// Build emits the qualified column reference.
func (e ColumnExpr) Build(b *SQLBuilder) {
	if e.Ref.Table == "" {
		b.Write(e.Ref.Name)
		return
	}
	b.Write(fmt.Sprintf("%s.%s", e.Ref.Table, e.Ref.Name))
}

// Columns reports the column references used.
func (e ColumnExpr) Columns() []ColumnRef { return []ColumnRef{e.Ref} }

// LiteralExpr renders a literal value. A nil value is SQL NULL.
type LiteralExpr struct {
	Value any
}

// Build emits the literal as SQL text.
func (e LiteralExpr) Build(b *SQLBuilder) {
	switch v := e.Value.(type) {
	case string:
		b.Write("'")
		b.Write(strings.ReplaceAll(v, "'", "''"))
		b.Write("'")
	case nil:
		b.Write("NULL")
	case float64:
		b.Write(strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		if v {
			b.Write("1")
		} else {
			b.Write("0")
		}
	default:
		b.Write(fmt.Sprintf("%v", v))
	}
}

// Columns reports the column references used.
func (e LiteralExpr) Columns() []ColumnRef { return nil }

// UnaryExpr renders a prefix operator applied to an operand.
type UnaryExpr struct {
	Op   string
	Expr Expr
}

// Build emits the unary expression in parentheses so it binds as one operand.
func (e UnaryExpr) Build(b *SQLBuilder) {
	b.Write("(")
	b.Write(e.Op)
	b.Write(" ")
	if e.Expr == nil {
		b.Write("NULL")
	} else {
		e.Expr.Build(b)
	}
	b.Write(")")
}

// Columns reports the column references used.
func (e UnaryExpr) Columns() []ColumnRef {
	if e.Expr == nil {
		return nil
	}
	return e.Expr.Columns()
}

// BinaryExpr renders a binary expression.
type BinaryExpr struct {
	Left  Expr
	Op    string
	Right Expr
}

// Build emits the binary expression with parentheses.
func (e BinaryExpr) Build(b *SQLBuilder) {
	b.Write("(")
	if e.Left == nil {
		b.Write("NULL")
	} else {
		e.Left.Build(b)
	}
	b.Write(" ")
	b.Write(e.Op)
	b.Write(" ")
	if e.Right == nil {
		b.Write("NULL")
	} else {
		e.Right.Build(b)
	}
	b.Write(")")
}

// Columns reports the column references used.
func (e BinaryExpr) Columns() []ColumnRef {
	cols := make([]ColumnRef, 0, 4)
	if e.Left != nil {
		cols = append(cols, e.Left.Columns()...)
	}
	if e.Right != nil {
		cols = append(cols, e.Right.Columns()...)
	}
	return cols
}

// FuncExpr renders a function call.
type FuncExpr struct {
	Name string
	Args []Expr
}

// Build emits the function call expression.
func (e FuncExpr) Build(b *SQLBuilder) {
	b.Write(e.Name)
	b.Write("(")
	for i, arg := range e.Args {
		if i > 0 {
			b.Write(", ")
		}
		arg.Build(b)
	}
	b.Write(")")
}

// Columns reports the column references used.
func (e FuncExpr) Columns() []ColumnRef {
	cols := make([]ColumnRef, 0, len(e.Args))
	for _, arg := range e.Args {
		cols = append(cols, arg.Columns()...)
	}
	return cols
}

// InExpr renders an IN predicate.
type InExpr struct {
	Left Expr
	List []Expr
}

// Build emits the IN predicate.
func (e InExpr) Build(b *SQLBuilder) {
	b.Write("(")
	e.Left.Build(b)
	b.Write(" IN (")
	for i, item := range e.List {
		if i > 0 {
			b.Write(", ")
		}
		item.Build(b)
	}
	b.Write("))")
}

// Columns reports the column references used.
func (e InExpr) Columns() []ColumnRef {
	cols := append([]ColumnRef{}, e.Left.Columns()...)
	for _, item := range e.List {
		cols = append(cols, item.Columns()...)
	}
	return cols
}

// BetweenExpr renders expr BETWEEN low AND high.
type BetweenExpr struct {
	Expr Expr
	Low  Expr
	High Expr
}

// Build emits the BETWEEN predicate.
func (e BetweenExpr) Build(b *SQLBuilder) {
	b.Write("(")
	e.Expr.Build(b)
	b.Write(" BETWEEN ")
	e.Low.Build(b)
	b.Write(" AND ")
	e.High.Build(b)
	b.Write(")")
}

// Columns reports the column references used.
func (e BetweenExpr) Columns() []ColumnRef {
	cols := append([]ColumnRef{}, e.Expr.Columns()...)
	cols = append(cols, e.Low.Columns()...)
	return append(cols, e.High.Columns()...)
}

// CaseWhen represents a WHEN branch.
type CaseWhen struct {
	When Expr
	Then Expr
}

// CaseExpr renders a searched CASE expression.
type CaseExpr struct {
	Whens []CaseWhen
	Else  Expr
}

// Build emits a CASE expression.
func (e CaseExpr) Build(b *SQLBuilder) {
	b.Write("CASE ")
	for _, w := range e.Whens {
		b.Write("WHEN ")
		w.When.Build(b)
		b.Write(" THEN ")
		w.Then.Build(b)
		b.Write(" ")
	}
	if e.Else != nil {
		b.Write("ELSE ")
		e.Else.Build(b)
		b.Write(" ")
	}
	b.Write("END")
}

// Columns reports the column references used.
func (e CaseExpr) Columns() []ColumnRef {
	var cols []ColumnRef
	for _, w := range e.Whens {
		cols = append(cols, w.When.Columns()...)
		cols = append(cols, w.Then.Columns()...)
	}
	if e.Else != nil {
		cols = append(cols, e.Else.Columns()...)
	}
	return cols
}
