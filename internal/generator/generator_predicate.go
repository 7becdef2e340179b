package generator

import (
	"fmt"

	"tlpwhere/internal/schema"
	"tlpwhere/internal/util"
)

// predicate builds a random boolean expression over cols.
func (g *Generator) predicate(cols []ColumnRef, depth int) Expr {
	if depth <= 0 || util.Chance(g.Rand, PredicateLeafProb) {
		return g.leafPredicate(cols)
	}
	if util.Chance(g.Rand, g.Config.Weights.Features.NotProb) {
		return g.Not(g.predicate(cols, depth-1))
	}
	left := g.predicate(cols, depth-1)
	right := g.predicate(cols, depth-1)
	if util.Chance(g.Rand, g.Config.Weights.Features.OrProb) {
		return g.Or(left, right)
	}
	return g.And(left, right)
}

func (g *Generator) leafPredicate(cols []ColumnRef) Expr {
	fam := g.pickFamily(cols)
	switch g.Rand.Intn(7) {
	case 0:
		op := "IS"
		if g.Rand.Intn(2) == 0 {
			op = "IS NOT"
		}
		return BinaryExpr{Left: g.scalar(cols, fam), Op: op, Right: LiteralExpr{}}
	case 1:
		low, high := g.literalForFamily(fam), g.literalForFamily(fam)
		if lessLiteral(high, low) {
			low, high = high, low
		}
		return BetweenExpr{Expr: g.scalar(cols, fam), Low: low, High: high}
	case 2:
		size := g.Rand.Intn(PredicateInListMax) + 1
		list := make([]Expr, 0, size)
		for i := 0; i < size; i++ {
			list = append(list, g.nullableLiteral(fam))
		}
		return InExpr{Left: g.scalar(cols, fam), List: list}
	case 3:
		if strCols := columnsOfFamily(cols, familyString); len(strCols) > 0 {
			pattern := fmt.Sprintf("s%d%%", g.Rand.Intn(StringLiteralMax/2))
			return BinaryExpr{Left: ColumnExpr{Ref: util.Pick(g.Rand, strCols)}, Op: "LIKE", Right: LiteralExpr{Value: pattern}}
		}
	case 4:
		var bools []ColumnRef
		for _, c := range cols {
			if c.Type == schema.TypeBool {
				bools = append(bools, c)
			}
		}
		if len(bools) > 0 {
			return ColumnExpr{Ref: util.Pick(g.Rand, bools)}
		}
	}
	left := g.scalar(cols, fam)
	var right Expr
	if util.Chance(g.Rand, ColumnColumnCompareProb) {
		right = g.scalar(cols, fam)
	} else {
		right = g.nullableLiteral(fam)
	}
	return BinaryExpr{Left: left, Op: g.pickComparison(), Right: right}
}

func lessLiteral(a, b LiteralExpr) bool {
	switch av := a.Value.(type) {
	case int:
		switch bv := b.Value.(type) {
		case int:
			return av < bv
		case float64:
			return float64(av) < bv
		}
	case float64:
		switch bv := b.Value.(type) {
		case int:
			return av < float64(bv)
		case float64:
			return av < bv
		}
	case string:
		if bv, ok := b.Value.(string); ok {
			return av < bv
		}
	}
	return false
}
