package generator

import (
	"fmt"

	"tlpwhere/internal/config"
	"tlpwhere/internal/schema"
	"tlpwhere/internal/util"
)

// GenerateBase builds the unfiltered base query over a non-empty table group:
// a random projection with aliases f0..fN, every group table in FROM (the
// first as base, the rest joined) and an optional optimizer hint.
func (g *Generator) GenerateBase(group schema.TableGroup) *SelectQuery {
	first := group.Tables[0]
	q := &SelectQuery{From: FromClause{BaseTable: first.Name}}
	visible := refsFromTable(first)
	for _, tbl := range group.Tables[1:] {
		cols := refsFromTable(tbl)
		q.From.Joins = append(q.From.Joins, g.generateJoin(tbl.Name, visible, cols))
		visible = append(visible, cols...)
	}
	picked := util.NonEmptySubset(g.Rand, visible)
	if len(picked) > SelectListMax {
		g.Rand.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
		picked = picked[:SelectListMax]
	}
	for i, ref := range picked {
		var expr Expr = ColumnExpr{Ref: ref}
		if util.Chance(g.Rand, ProjectionExprProb) {
			expr = g.wrapColumn(visible, ref)
		}
		q.Items = append(q.Items, SelectItem{Expr: expr, Alias: fmt.Sprintf("f%d", i)})
	}
	q.scope = visible
	if g.Config.Features.Hints && g.Config.Dialect == config.DialectMySQL && util.Chance(g.Rand, g.Config.Weights.Features.HintProb) {
		if hint, ok := g.GenerateHint(group); ok {
			q.Hint = &hint
		}
	}
	return q
}

func (g *Generator) generateJoin(table string, visible []ColumnRef, cols []ColumnRef) Join {
	if util.Chance(g.Rand, CrossJoinProb) {
		return Join{Type: JoinCross, Table: table}
	}
	joinType := JoinInner
	if util.Chance(g.Rand, LeftJoinProb) {
		joinType = JoinLeft
	}
	return Join{Type: joinType, Table: table, On: g.joinCondition(visible, cols)}
}

// joinCondition prefers an equality between a joined column and an already
// visible column of the same family, falling back to a random predicate.
func (g *Generator) joinCondition(visible []ColumnRef, cols []ColumnRef) Expr {
	for _, idx := range g.Rand.Perm(len(cols)) {
		right := cols[idx]
		candidates := columnsOfFamily(visible, familyOf(right.Type))
		if len(candidates) == 0 {
			continue
		}
		left := util.Pick(g.Rand, candidates)
		return BinaryExpr{Left: ColumnExpr{Ref: left}, Op: "=", Right: ColumnExpr{Ref: right}}
	}
	all := append(append([]ColumnRef{}, visible...), cols...)
	return g.predicate(all, 1)
}

// GenerateOrderBy returns a copy of base ordered by its projected aliases.
// The first alias is always the leading key.
func (g *Generator) GenerateOrderBy(base *SelectQuery) *SelectQuery {
	q := base.Clone()
	q.OrderBy = nil
	for i, alias := range base.ColumnAliases() {
		if i > 0 && !util.Chance(g.Rand, OrderByExtraKeyProb) {
			continue
		}
		q.OrderBy = append(q.OrderBy, OrderBy{
			Expr: ColumnExpr{Ref: ColumnRef{Name: alias}},
			Desc: util.Chance(g.Rand, OrderByDescProb),
		})
	}
	return q
}
