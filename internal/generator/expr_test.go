package generator

import (
	"testing"

	"tlpwhere/internal/config"
)

func TestExprRendering(t *testing.T) {
	col := ColumnExpr{Ref: ColumnRef{Table: "t0", Name: "c0"}}
	cases := []struct {
		expr Expr
		want string
	}{
		{LiteralExpr{Value: "it's"}, "'it''s'"},
		{LiteralExpr{}, "NULL"},
		{LiteralExpr{Value: -12.5}, "-12.5"},
		{LiteralExpr{Value: true}, "1"},
		{UnaryExpr{Op: "NOT", Expr: col}, "(NOT t0.c0)"},
		{BinaryExpr{Left: col, Op: "-", Right: LiteralExpr{Value: -3}}, "(t0.c0 - -3)"},
		{InExpr{Left: col, List: []Expr{LiteralExpr{Value: 1}, LiteralExpr{}}}, "(t0.c0 IN (1, NULL))"},
		{BetweenExpr{Expr: col, Low: LiteralExpr{Value: 1}, High: LiteralExpr{Value: 2}}, "(t0.c0 BETWEEN 1 AND 2)"},
		{FuncExpr{Name: "COALESCE", Args: []Expr{col, LiteralExpr{Value: 0}}}, "COALESCE(t0.c0, 0)"},
		{CaseExpr{Whens: []CaseWhen{{When: col, Then: LiteralExpr{Value: 1}}}, Else: LiteralExpr{}}, "CASE WHEN t0.c0 THEN 1 ELSE NULL END"},
	}
	for _, tc := range cases {
		if got := BuildString(config.DialectMySQL, tc.expr); got != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, got)
		}
	}
}

func TestLessLiteral(t *testing.T) {
	if !lessLiteral(LiteralExpr{Value: 1}, LiteralExpr{Value: 1.5}) {
		t.Fatalf("expected 1 < 1.5")
	}
	if lessLiteral(LiteralExpr{Value: "s2"}, LiteralExpr{Value: "s10"}) {
		t.Fatalf("expected string comparison")
	}
	if lessLiteral(LiteralExpr{}, LiteralExpr{Value: 1}) {
		t.Fatalf("NULL must not compare")
	}
}
