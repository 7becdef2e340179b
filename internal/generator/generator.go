// Package generator builds random schemas, rows and SELECT queries for the
// TLP WHERE oracle.
package generator

import (
	"fmt"
	"math/rand"
	"time"

	"tlpwhere/internal/config"
	"tlpwhere/internal/schema"
)

// Generator creates SQL statements based on schema state.
type Generator struct {
	Rand     *rand.Rand
	Config   config.Config
	State    *schema.State
	Seed     int64
	tableSeq int
	indexSeq int
	maxDepth int
}

// New constructs a Generator with a seed.
func New(cfg config.Config, state *schema.State, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	maxDepth := cfg.Oracle.MaxPredicateDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &Generator{
		Rand:     rand.New(rand.NewSource(seed)),
		Config:   cfg,
		State:    state,
		Seed:     seed,
		maxDepth: maxDepth,
	}
}

// Dialect returns the SQL dialect the generator renders for.
func (g *Generator) Dialect() config.Dialect {
	return g.Config.Dialect
}

// NextTableName returns a new unique table name.
func (g *Generator) NextTableName() string {
	name := fmt.Sprintf("t%d", g.tableSeq)
	g.tableSeq++
	return name
}

// SQL renders any node for the generator's dialect.
func (g *Generator) SQL(node interface{ Build(*SQLBuilder) }) string {
	return BuildString(g.Config.Dialect, node)
}

func refsFromGroup(group schema.TableGroup) []ColumnRef {
	cols := group.Columns()
	out := make([]ColumnRef, 0, len(cols))
	for _, c := range cols {
		out = append(out, ColumnRef{Table: c.Table, Name: c.Column.Name, Type: c.Column.Type})
	}
	return out
}

func refsFromTable(tbl schema.Table) []ColumnRef {
	return refsFromGroup(schema.TableGroup{Tables: []schema.Table{tbl}})
}
