package generator

import (
	"fmt"
	"strings"

	"tlpwhere/internal/schema"
)

// InsertSQL emits an INSERT statement and advances auto IDs.
func (g *Generator) InsertSQL(tbl *schema.Table) string {
	rowCount := g.Rand.Intn(InsertRowCountMax) + 1
	cols := make([]string, 0, len(tbl.Columns))
	for _, col := range tbl.Columns {
		cols = append(cols, col.Name)
	}
	values := make([]string, 0, rowCount)
	for i := 0; i < rowCount; i++ {
		vals := make([]string, 0, len(tbl.Columns))
		for _, col := range tbl.Columns {
			if col.Name == "id" {
				vals = append(vals, fmt.Sprintf("%d", tbl.NextID))
				tbl.NextID++
				continue
			}
			vals = append(vals, g.SQL(g.valueForColumn(col)))
		}
		values = append(values, fmt.Sprintf("(%s)", strings.Join(vals, ", ")))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", tbl.Name, strings.Join(cols, ", "), strings.Join(values, ", "))
}

// UpdateSQL emits an UPDATE statement. ok is false when the table has no updatable column.
func (g *Generator) UpdateSQL(tbl schema.Table) (sql string, ok bool) {
	col, ok := g.pickUpdatableColumn(tbl)
	if !ok {
		return "", false
	}
	ref := ColumnRef{Name: col.Name, Type: col.Type}
	var setExpr Expr
	switch col.Type {
	case schema.TypeInt, schema.TypeBigInt, schema.TypeDouble, schema.TypeDecimal:
		setExpr = BinaryExpr{Left: ColumnExpr{Ref: ref}, Op: "+", Right: LiteralExpr{Value: 1}}
	default:
		setExpr = g.valueForColumn(col)
	}
	predicate := g.predicate(refsFromTable(tbl), g.maxDepth)
	return fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s", tbl.Name, col.Name, g.SQL(setExpr), g.SQL(predicate)), true
}

// DeleteSQL emits a DELETE statement.
func (g *Generator) DeleteSQL(tbl schema.Table) string {
	predicate := g.predicate(refsFromTable(tbl), g.maxDepth)
	return fmt.Sprintf("DELETE FROM %s WHERE %s", tbl.Name, g.SQL(predicate))
}

func (g *Generator) pickUpdatableColumn(tbl schema.Table) (schema.Column, bool) {
	candidates := make([]schema.Column, 0, len(tbl.Columns))
	for _, col := range tbl.Columns {
		if col.Name == "id" {
			continue
		}
		candidates = append(candidates, col)
	}
	if len(candidates) == 0 {
		return schema.Column{}, false
	}
	return candidates[g.Rand.Intn(len(candidates))], true
}
