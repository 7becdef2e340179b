package generator

import (
	"fmt"

	"tlpwhere/internal/config"
	"tlpwhere/internal/schema"
	"tlpwhere/internal/util"
)

// typeFamily groups column types whose values compare without conversion errors.
type typeFamily int

const (
	familyNumeric typeFamily = iota
	familyString
	familyDate
)

var allFamilies = []typeFamily{familyNumeric, familyString, familyDate}

func familyOf(t schema.ColumnType) typeFamily {
	switch t {
	case schema.TypeVarchar:
		return familyString
	case schema.TypeDate:
		return familyDate
	default:
		return familyNumeric
	}
}

func columnsOfFamily(cols []ColumnRef, fam typeFamily) []ColumnRef {
	out := make([]ColumnRef, 0, len(cols))
	for _, c := range cols {
		if familyOf(c.Type) == fam {
			out = append(out, c)
		}
	}
	return out
}

func (g *Generator) literalForType(t schema.ColumnType) LiteralExpr {
	switch t {
	case schema.TypeInt, schema.TypeBigInt:
		return LiteralExpr{Value: g.Rand.Intn(2*NumericLiteralMax) - NumericLiteralMax}
	case schema.TypeDouble, schema.TypeDecimal:
		return LiteralExpr{Value: float64(g.Rand.Intn(FloatLiteralScale)-FloatLiteralScale/2) / FloatLiteralDiv}
	case schema.TypeVarchar:
		return LiteralExpr{Value: fmt.Sprintf("s%d", g.Rand.Intn(StringLiteralMax))}
	case schema.TypeDate:
		return LiteralExpr{Value: fmt.Sprintf("%04d-%02d-%02d", DateYearMin+g.Rand.Intn(DateYearSpan), g.Rand.Intn(12)+1, g.Rand.Intn(28)+1)}
	case schema.TypeBool:
		if util.Chance(g.Rand, BoolLiteralTrueProb) {
			return LiteralExpr{Value: 1}
		}
		return LiteralExpr{Value: 0}
	default:
		return LiteralExpr{Value: g.Rand.Intn(NumericLiteralMax)}
	}
}

func (g *Generator) literalForFamily(fam typeFamily) LiteralExpr {
	switch fam {
	case familyString:
		return g.literalForType(schema.TypeVarchar)
	case familyDate:
		return g.literalForType(schema.TypeDate)
	default:
		if g.Rand.Intn(3) == 0 {
			return g.literalForType(schema.TypeDecimal)
		}
		return g.literalForType(schema.TypeInt)
	}
}

// nullableLiteral returns a literal of the family, or NULL when null literals are enabled.
func (g *Generator) nullableLiteral(fam typeFamily) LiteralExpr {
	if g.Config.Features.NullLiterals && util.Chance(g.Rand, g.Config.Weights.Features.NullProb) {
		return LiteralExpr{}
	}
	return g.literalForFamily(fam)
}

func (g *Generator) valueForColumn(col schema.Column) LiteralExpr {
	if col.Nullable && util.Chance(g.Rand, g.Config.Weights.Features.NullProb) {
		return LiteralExpr{}
	}
	return g.literalForType(col.Type)
}

// scalar returns an expression of the given family over cols.
func (g *Generator) scalar(cols []ColumnRef, fam typeFamily) Expr {
	candidates := columnsOfFamily(cols, fam)
	if len(candidates) == 0 || !util.Chance(g.Rand, ScalarExprColumnProb) {
		return g.nullableLiteral(fam)
	}
	col := util.Pick(g.Rand, candidates)
	if !util.Chance(g.Rand, ScalarExprWrapProb) {
		return ColumnExpr{Ref: col}
	}
	return g.wrapColumn(cols, col)
}

// wrapColumn applies a type-preserving operation to a column.
func (g *Generator) wrapColumn(cols []ColumnRef, col ColumnRef) Expr {
	fam := familyOf(col.Type)
	base := ColumnExpr{Ref: col}
	if util.Chance(g.Rand, CaseExprProb) {
		return CaseExpr{
			Whens: []CaseWhen{{When: g.leafPredicate(cols), Then: base}},
			Else:  g.nullableLiteral(fam),
		}
	}
	switch fam {
	case familyNumeric:
		switch g.Rand.Intn(3) {
		case 0:
			return BinaryExpr{Left: base, Op: g.pickArithmetic(), Right: LiteralExpr{Value: g.Rand.Intn(10)}}
		case 1:
			return FuncExpr{Name: "ABS", Args: []Expr{base}}
		default:
			return FuncExpr{Name: "COALESCE", Args: []Expr{base, g.literalForFamily(fam)}}
		}
	case familyString:
		switch g.Rand.Intn(3) {
		case 0:
			return FuncExpr{Name: "LOWER", Args: []Expr{base}}
		case 1:
			return FuncExpr{Name: "UPPER", Args: []Expr{base}}
		default:
			return FuncExpr{Name: "COALESCE", Args: []Expr{base, g.literalForFamily(fam)}}
		}
	default:
		return FuncExpr{Name: "COALESCE", Args: []Expr{base, g.literalForFamily(fam)}}
	}
}

func (g *Generator) pickComparison() string {
	ops := []string{"=", "<", ">", "<=", ">=", "!=", "<>"}
	if g.Config.Dialect == config.DialectSQLite {
		ops = append(ops, "IS", "IS NOT")
	} else {
		ops = append(ops, "<=>")
	}
	return util.Pick(g.Rand, ops)
}

func (g *Generator) pickArithmetic() string {
	return util.Pick(g.Rand, []string{"+", "-", "*"})
}

func (g *Generator) pickFamily(cols []ColumnRef) typeFamily {
	if len(cols) == 0 {
		return util.Pick(g.Rand, allFamilies)
	}
	return familyOf(util.Pick(g.Rand, cols).Type)
}
