package generator

import (
	"fmt"
	"strings"

	"tlpwhere/internal/schema"
	"tlpwhere/internal/util"
)

// GenerateTable creates a randomized table definition with planned indexes.
func (g *Generator) GenerateTable() schema.Table {
	colCount := 1
	if g.Config.MaxColumns > 1 {
		colCount = g.Rand.Intn(g.Config.MaxColumns) + 1
	}
	cols := make([]schema.Column, 0, colCount+1)
	cols = append(cols, schema.Column{Name: "id", Type: schema.TypeBigInt, Nullable: false})
	for i := 0; i < colCount; i++ {
		cols = append(cols, schema.Column{
			Name:     fmt.Sprintf("c%d", i),
			Type:     util.Pick(g.Rand, schema.AllColumnTypes),
			Nullable: util.Chance(g.Rand, ColumnNullableProb),
		})
	}
	tbl := schema.Table{
		Name:    g.NextTableName(),
		Columns: cols,
		HasPK:   true,
		NextID:  1,
	}
	if !g.Config.Features.Indexes {
		return tbl
	}
	for i := 1; i < len(tbl.Columns); i++ {
		if util.Chance(g.Rand, ColumnIndexProb) {
			tbl.Columns[i].HasIndex = true
			tbl.Indexes = append(tbl.Indexes, schema.Index{Name: g.nextIndexName(tbl.Name), Columns: []string{tbl.Columns[i].Name}})
		}
	}
	if len(tbl.Columns) > 2 && util.Chance(g.Rand, CompositeIndexProb) {
		first := g.Rand.Intn(len(tbl.Columns)-2) + 1
		tbl.Indexes = append(tbl.Indexes, schema.Index{
			Name:    g.nextIndexName(tbl.Name),
			Columns: []string{tbl.Columns[first].Name, tbl.Columns[first+1].Name},
		})
	}
	return tbl
}

func (g *Generator) nextIndexName(table string) string {
	name := fmt.Sprintf("idx_%s_%d", table, g.indexSeq)
	g.indexSeq++
	return name
}

// CreateTableSQL renders a CREATE TABLE statement for a schema table.
// Indexes are created separately with IndexSQL.
func (g *Generator) CreateTableSQL(tbl schema.Table) string {
	parts := make([]string, 0, len(tbl.Columns)+1)
	for _, col := range tbl.Columns {
		line := fmt.Sprintf("%s %s", col.Name, col.SQLType())
		if !col.Nullable {
			line += " NOT NULL"
		}
		parts = append(parts, line)
	}
	if tbl.HasPK {
		parts = append(parts, "PRIMARY KEY (id)")
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", tbl.Name, strings.Join(parts, ", "))
}

// IndexSQL renders a CREATE INDEX statement for an index of tbl.
func (g *Generator) IndexSQL(tbl schema.Table, idx schema.Index) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.Name, tbl.Name, strings.Join(idx.Columns, ", "))
}

// CreateIndexSQL emits a CREATE INDEX statement and updates table metadata.
func (g *Generator) CreateIndexSQL(tbl *schema.Table) (string, bool) {
	candidates := make([]*schema.Column, 0, len(tbl.Columns))
	for i := range tbl.Columns {
		col := &tbl.Columns[i]
		if col.HasIndex || col.Name == "id" {
			continue
		}
		candidates = append(candidates, col)
	}
	if len(candidates) == 0 {
		return "", false
	}
	col := util.Pick(g.Rand, candidates)
	col.HasIndex = true
	idx := schema.Index{Name: g.nextIndexName(tbl.Name), Columns: []string{col.Name}}
	tbl.Indexes = append(tbl.Indexes, idx)
	return g.IndexSQL(*tbl, idx), true
}
