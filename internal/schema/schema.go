// Package schema defines schema state and helpers for SQL generation.
package schema

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"tlpwhere/internal/util"
)

// ErrNoTables reports that no table exists to query.
var ErrNoTables = errors.New("schema has no tables")

// ColumnType enumerates column data types.
type ColumnType int

// Column type constants for schema generation.
const (
	TypeInt ColumnType = iota
	TypeBigInt
	TypeDouble
	TypeDecimal
	TypeVarchar
	TypeDate
	TypeBool
)

// AllColumnTypes lists every generated column type.
var AllColumnTypes = []ColumnType{TypeInt, TypeBigInt, TypeDouble, TypeDecimal, TypeVarchar, TypeDate, TypeBool}

// Column describes a table column.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	HasIndex bool
}

// Index describes a (potentially multi-column) index.
type Index struct {
	Name    string
	Columns []string
}

// Table describes a database table.
type Table struct {
	Name    string
	Columns []Column
	Indexes []Index
	HasPK   bool
	NextID  int64
}

// State tracks the current schema state. It is owned by a single worker.
type State struct {
	Tables []Table
	// MaxGroupSize caps the tables picked for one query; zero means no cap.
	MaxGroupSize int
}

// TableGroup is the set of tables a single query reads from.
type TableGroup struct {
	Tables []Table
}

// ColumnRef names a column together with its owning table.
type ColumnRef struct {
	Table  string
	Column Column
}

// IndexRef names an index together with its owning table.
type IndexRef struct {
	Table string
	Index Index
}

// Numeric reports whether values of this type compare numerically.
func (t ColumnType) Numeric() bool {
	switch t {
	case TypeInt, TypeBigInt, TypeDouble, TypeDecimal, TypeBool:
		return true
	default:
		return false
	}
}

// SQLType returns the MySQL type string for this column.
func (c Column) SQLType() string {
	switch c.Type {
	case TypeInt:
		return "INT"
	case TypeBigInt:
		return "BIGINT"
	case TypeDouble:
		return "DOUBLE"
	case TypeDecimal:
		return "DECIMAL(12,2)"
	case TypeVarchar:
		return "VARCHAR(64)"
	case TypeDate:
		return "DATE"
	case TypeBool:
		return "BOOLEAN"
	default:
		return "INT"
	}
}

// ColumnByName returns a column by name if present.
func (t Table) ColumnByName(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// TableByName returns a table by name if present.
func (s State) TableByName(name string) (Table, bool) {
	for _, tbl := range s.Tables {
		if tbl.Name == name {
			return tbl, true
		}
	}
	return Table{}, false
}

// HasTables reports whether any tables exist in the schema state.
func (s State) HasTables() bool {
	return len(s.Tables) > 0
}

// PickNonEmptyTableGroup returns a random non-empty subset of tables.
func (s *State) PickNonEmptyTableGroup(r *rand.Rand) (TableGroup, error) {
	if s == nil || len(s.Tables) == 0 {
		return TableGroup{}, ErrNoTables
	}
	picked := util.NonEmptySubset(r, s.Tables)
	if s.MaxGroupSize > 0 && len(picked) > s.MaxGroupSize {
		r.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
		picked = picked[:s.MaxGroupSize]
	}
	tables := make([]Table, len(picked))
	copy(tables, picked)
	return TableGroup{Tables: tables}, nil
}

// Names returns the table names of the group in order.
func (g TableGroup) Names() []string {
	out := make([]string, 0, len(g.Tables))
	for _, tbl := range g.Tables {
		out = append(out, tbl.Name)
	}
	return out
}

// Columns returns every column of the group, qualified by table.
func (g TableGroup) Columns() []ColumnRef {
	var out []ColumnRef
	for _, tbl := range g.Tables {
		for _, col := range tbl.Columns {
			out = append(out, ColumnRef{Table: tbl.Name, Column: col})
		}
	}
	return out
}

// Indexes returns every index of the group, qualified by table.
func (g TableGroup) Indexes() []IndexRef {
	var out []IndexRef
	for _, tbl := range g.Tables {
		for _, idx := range tbl.Indexes {
			out = append(out, IndexRef{Table: tbl.Name, Index: idx})
		}
	}
	return out
}

// String renders a fully qualified column reference.
func (c ColumnRef) String() string {
	return QualifiedName(c.Table, c.Column.Name)
}

// QualifiedName builds a fully qualified column reference.
func QualifiedName(table, column string) string {
	return fmt.Sprintf("%s.%s", table, column)
}
