package oracle

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"tlpwhere/internal/config"
	"tlpwhere/internal/schema"
)

type fakeQuery struct {
	sql   string
	order string
}

type fakeGen struct {
	preds []string
	next  int
}

func (g *fakeGen) Not(e string) string { return "(NOT " + e + ")" }
func (g *fakeGen) And(l, r string) string { return "(" + l + " AND " + r + ")" }
func (g *fakeGen) Or(l, r string) string { return "(" + l + " OR " + r + ")" }
func (g *fakeGen) IsNull(e string) string { return "(" + e + " IS NULL)" }
func (g *fakeGen) OrderKeys(q fakeQuery) string { return q.order }

func (g *fakeGen) GenerateBase(group schema.TableGroup) fakeQuery {
	return fakeQuery{sql: "SELECT a AS f0 FROM " + strings.Join(group.Names(), ", ")}
}

func (g *fakeGen) GenerateOrderBy(base fakeQuery) fakeQuery {
	base.order = "f0"
	return base
}

func (g *fakeGen) GeneratePredicate(fakeQuery) string {
	p := g.preds[g.next%len(g.preds)]
	g.next++
	return p
}

func (g *fakeGen) Render(q fakeQuery) string {
	if q.order == "" {
		return q.sql
	}
	return q.sql + " ORDER BY " + q.order
}

func (g *fakeGen) RenderFiltered(q fakeQuery, filter string) string {
	return q.sql + " WHERE " + filter
}

type scripted struct {
	rows []string
	err  error
}

type scriptedExec struct {
	results map[string]scripted
	calls   []string
}

func (e *scriptedExec) QueryFirstColumn(_ context.Context, sql string) ([]string, error) {
	e.calls = append(e.calls, sql)
	res, ok := e.results[sql]
	if !ok {
		return nil, fmt.Errorf("unscripted query: %s", sql)
	}
	return append([]string{}, res.rows...), res.err
}

const (
	baseSQL = "SELECT a AS f0 FROM t"
	pSQL    = baseSQL + " WHERE (a > 1)"
	notSQL  = baseSQL + " WHERE (NOT (a > 1))"
	nullSQL = baseSQL + " WHERE ((a > 1) IS NULL)"
)

func singleScript() map[string]scripted {
	return map[string]scripted{
		baseSQL: {rows: []string{"1", "NULL", "3"}},
		pSQL:    {rows: []string{"3"}},
		notSQL:  {rows: []string{"1"}},
		nullSQL: {rows: []string{"NULL"}},
	}
}

func testTables() *schema.State {
	return &schema.State{Tables: []schema.Table{{Name: "t", Columns: []schema.Column{{Name: "a", Type: schema.TypeInt, Nullable: true}}}}}
}

func testErrors(t *testing.T) *ExpectedErrors {
	t.Helper()
	errs, err := NewExpectedErrors([]uint16{1690}, []string{"integer overflow"}, nil)
	if err != nil {
		t.Fatalf("expected errors: %v", err)
	}
	return errs
}

func newTestOracle(t *testing.T, exec Executor, preds []string, opts Options) *TLPWhere[string, fakeQuery] {
	t.Helper()
	o, err := NewTLPWhere[string, fakeQuery](&fakeGen{preds: preds}, testTables(), exec, testErrors(t), rand.New(rand.NewSource(1)), opts)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	return o
}

func TestCheckCleanSinglePartition(t *testing.T) {
	exec := &scriptedExec{results: singleScript()}
	o := newTestOracle(t, exec, []string{"(a > 1)"}, Options{Mode: config.PartitionSingle})
	if err := o.Check(context.Background()); err != nil {
		t.Fatalf("expected clean cycle, got %v", err)
	}
	if o.LastQuery() != baseSQL {
		t.Fatalf("unexpected last query %q", o.LastQuery())
	}
	want := []string{baseSQL, pSQL, notSQL, nullSQL}
	if fmt.Sprint(exec.calls) != fmt.Sprint(want) {
		t.Fatalf("expected calls %v, got %v", want, exec.calls)
	}
	rep := o.LastReproducer()
	if rep == nil || rep.Discipline != DisciplineMultiset || len(rep.Partitions.Queries) != 3 {
		t.Fatalf("unexpected reproducer %+v", rep)
	}
	if rep.StillTriggers(context.Background(), exec) {
		t.Fatalf("clean reproducer must not trigger")
	}
}

func TestCheckIsIdempotentOnCleanData(t *testing.T) {
	exec := &scriptedExec{results: singleScript()}
	o := newTestOracle(t, exec, []string{"(a > 1)"}, Options{Mode: config.PartitionSingle})
	for i := 0; i < 3; i++ {
		if err := o.Check(context.Background()); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
}

func TestCheckReportsMissingRow(t *testing.T) {
	results := singleScript()
	results[notSQL] = scripted{}
	exec := &scriptedExec{results: results}
	o := newTestOracle(t, exec, []string{"(a > 1)"}, Options{Mode: config.PartitionSingle})
	err := o.Check(context.Background())
	var cmp *ComparisonError
	if !errors.As(err, &cmp) {
		t.Fatalf("expected comparison error, got %v", err)
	}
	if cmp.ReferenceSQL != baseSQL || len(cmp.Statements) != 3 || !strings.Contains(cmp.Reason, "missing [1]") {
		t.Fatalf("unexpected comparison error %+v", cmp)
	}
	rep := o.LastReproducer()
	if rep == nil || !rep.StillTriggers(context.Background(), exec) {
		t.Fatalf("reproducer should still trigger")
	}
	exec.results[notSQL] = scripted{rows: []string{"1"}}
	if rep.StillTriggers(context.Background(), exec) {
		t.Fatalf("fixed engine must not trigger")
	}
}

func TestCheckBenignPartitionErrorSkips(t *testing.T) {
	results := singleScript()
	results[notSQL] = scripted{err: &mysql.MySQLError{Number: 1690, Message: "BIGINT value is out of range"}}
	exec := &scriptedExec{results: results}
	o := newTestOracle(t, exec, []string{"(a > 1)"}, Options{Mode: config.PartitionSingle})
	err := o.Check(context.Background())
	if !errors.Is(err, ErrSkipped) {
		t.Fatalf("expected skip, got %v", err)
	}
	if o.LastReproducer() != nil {
		t.Fatalf("skipped cycle must not leave a reproducer")
	}
	if len(exec.calls) != 4 {
		t.Fatalf("remaining partitions should still run, calls %v", exec.calls)
	}
}

func TestCheckBenignReferenceErrorSkips(t *testing.T) {
	exec := &scriptedExec{results: map[string]scripted{baseSQL: {err: errors.New("integer overflow")}}}
	o := newTestOracle(t, exec, []string{"(a > 1)"}, Options{Mode: config.PartitionSingle})
	if err := o.Check(context.Background()); !errors.Is(err, ErrSkipped) {
		t.Fatalf("expected skip, got %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("partitions must not run after a skipped reference, calls %v", exec.calls)
	}
}

func TestCheckUnexpectedErrorPropagates(t *testing.T) {
	driverErr := &mysql.MySQLError{Number: 1105, Message: "unknown error"}
	results := singleScript()
	results[nullSQL] = scripted{err: driverErr}
	exec := &scriptedExec{results: results}
	o := newTestOracle(t, exec, []string{"(a > 1)"}, Options{Mode: config.PartitionSingle})
	err := o.Check(context.Background())
	var execErr *ExecError
	if !errors.As(err, &execErr) || execErr.SQL != nullSQL {
		t.Fatalf("expected exec error on %q, got %v", nullSQL, err)
	}
	var got *mysql.MySQLError
	if !errors.As(err, &got) || got.Number != 1105 {
		t.Fatalf("exec error should unwrap to the driver error, got %v", err)
	}
	if o.LastReproducer() != nil {
		t.Fatalf("failed cycle must not leave a reproducer")
	}
}

func TestCheckOrderedUsesSingleUnionStatement(t *testing.T) {
	union := fmt.Sprintf("SELECT * FROM (%s UNION ALL %s UNION ALL %s) AS tlp_u ORDER BY f0", pSQL, notSQL, nullSQL)
	exec := &scriptedExec{results: map[string]scripted{
		baseSQL + " ORDER BY f0": {rows: []string{"NULL", "1", "3"}},
		union:                    {rows: []string{"NULL", "1", "3"}},
	}}
	o := newTestOracle(t, exec, []string{"(a > 1)"}, Options{Mode: config.PartitionSingle, OrderByProb: 100})
	if err := o.Check(context.Background()); err != nil {
		t.Fatalf("expected clean ordered cycle, got %v", err)
	}
	if rep := o.LastReproducer(); rep.Discipline != DisciplineOrdered || rep.Partitions.OrderKeys != "f0" {
		t.Fatalf("unexpected reproducer %+v", rep)
	}

	exec.results[union] = scripted{rows: []string{"1", "NULL", "3"}}
	err := o.Check(context.Background())
	var cmp *ComparisonError
	if !errors.As(err, &cmp) || cmp.Discipline != DisciplineOrdered {
		t.Fatalf("expected ordered mismatch, got %v", err)
	}
}

func TestCheckDualFormToleratesOvercount(t *testing.T) {
	l, r := "(a > 1)", "(a < 3)"
	results := map[string]scripted{baseSQL: {rows: []string{"1", "2", "NULL", "3"}}}
	results[baseSQL+" WHERE "+l] = scripted{rows: []string{"2", "3"}}
	results[baseSQL+" WHERE "+r] = scripted{rows: []string{"1", "2"}}
	results[baseSQL+" WHERE (("+l+" OR "+r+") IS NULL)"] = scripted{rows: []string{"NULL"}}
	results[baseSQL+" WHERE ((NOT "+l+") AND (NOT "+r+"))"] = scripted{}
	results[baseSQL+" WHERE ("+l+" AND "+r+")"] = scripted{rows: []string{"2"}}
	exec := &scriptedExec{results: results}
	o := newTestOracle(t, exec, []string{l, r}, Options{Mode: config.PartitionDual})
	if err := o.Check(context.Background()); err != nil {
		t.Fatalf("expected clean dual cycle, got %v", err)
	}
	rep := o.LastReproducer()
	if rep.Discipline != DisciplineSet || len(rep.Partitions.Queries) != 5 {
		t.Fatalf("unexpected reproducer %+v", rep)
	}
	combined, err := Combine(context.Background(), exec, rep.Partitions, nil)
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	if err := CheckEquivalence(rep.ReferenceSQL, combined.Statements, rep.Expected, combined.Rows, DisciplineMultiset); err == nil {
		t.Fatalf("rows where both predicates hold should be overcounted as a multiset")
	}
}

func TestRunReportsResult(t *testing.T) {
	results := singleScript()
	results[pSQL] = scripted{rows: []string{"3", "3"}}
	o := newTestOracle(t, &scriptedExec{results: results}, []string{"(a > 1)"}, Options{Mode: config.PartitionSingle})
	res := o.Run(context.Background())
	if res.OK || res.Oracle != "TLPWhere" || res.Err == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.SQL) != 4 || res.SQL[0] != baseSQL {
		t.Fatalf("unexpected sql %v", res.SQL)
	}
	if res.Details["discipline"] != "multiset" || !strings.Contains(res.Details["reason"].(string), "unexpected [3]") {
		t.Fatalf("unexpected details %v", res.Details)
	}

	results[pSQL] = scripted{err: errors.New("integer overflow")}
	res = o.Run(context.Background())
	if !res.OK || res.Details["skip_reason"] == nil {
		t.Fatalf("expected skipped result, got %+v", res)
	}
}

func TestNewTLPWhereRejectsNilDependencies(t *testing.T) {
	gen := &fakeGen{preds: []string{"(a > 1)"}}
	errs := testErrors(t)
	r := rand.New(rand.NewSource(1))
	var nilExec *scriptedExec
	var nilState *schema.State
	cases := []struct {
		name   string
		gen    QueryGenerator[string, fakeQuery]
		tables TablePicker
		exec   Executor
		errs   *ExpectedErrors
		rand   *rand.Rand
	}{
		{"generator", nil, testTables(), &scriptedExec{}, errs, r},
		{"tables", gen, nilState, &scriptedExec{}, errs, r},
		{"executor", gen, testTables(), nilExec, errs, r},
		{"errors", gen, testTables(), &scriptedExec{}, nil, r},
		{"rand", gen, testTables(), &scriptedExec{}, errs, nil},
	}
	for _, tc := range cases {
		if _, err := NewTLPWhere(tc.gen, tc.tables, tc.exec, tc.errs, tc.rand, Options{}); !errors.Is(err, ErrNilDependency) {
			t.Fatalf("%s: expected ErrNilDependency, got %v", tc.name, err)
		}
	}
}

func TestCheckEmptySchema(t *testing.T) {
	o, err := NewTLPWhere[string, fakeQuery](&fakeGen{preds: []string{"x"}}, &schema.State{}, &scriptedExec{}, testErrors(t), rand.New(rand.NewSource(1)), Options{})
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	if err := o.Check(context.Background()); !errors.Is(err, schema.ErrNoTables) {
		t.Fatalf("expected ErrNoTables, got %v", err)
	}
}

func TestNewTLPWhereDefaultsToDualMode(t *testing.T) {
	o := newTestOracle(t, &scriptedExec{}, []string{"(a > 1)"}, Options{})
	if o.opts.Mode != config.Default().Oracle.PartitionMode || o.opts.Mode != config.PartitionDual {
		t.Fatalf("default mode %q does not match config default", o.opts.Mode)
	}
	if _, err := NewTLPWhere[string, fakeQuery](&fakeGen{preds: []string{"x"}}, testTables(), &scriptedExec{}, testErrors(t), rand.New(rand.NewSource(1)), Options{Mode: "triple"}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestCheckDualOrderedComparesSets(t *testing.T) {
	l, r := "(a > 1)", "(a < 3)"
	parts := []string{
		baseSQL + " WHERE " + l,
		baseSQL + " WHERE " + r,
		baseSQL + " WHERE ((" + l + " OR " + r + ") IS NULL)",
		baseSQL + " WHERE ((NOT " + l + ") AND (NOT " + r + "))",
		baseSQL + " WHERE (" + l + " AND " + r + ")",
	}
	union := "SELECT * FROM (" + strings.Join(parts, " UNION ALL ") + ") AS tlp_u ORDER BY f0"
	exec := &scriptedExec{results: map[string]scripted{
		baseSQL + " ORDER BY f0": {rows: []string{"NULL", "1", "2", "3"}},
		// Out of order and overcounted, still the same set of values.
		union: {rows: []string{"3", "2", "NULL", "1", "2", "2"}},
	}}
	o := newTestOracle(t, exec, []string{l, r}, Options{OrderByProb: 100})
	if err := o.Check(context.Background()); err != nil {
		t.Fatalf("expected clean ordered dual cycle, got %v", err)
	}
	if rep := o.LastReproducer(); rep.Discipline != DisciplineSet || rep.Partitions.OrderKeys != "f0" {
		t.Fatalf("unexpected reproducer %+v", rep)
	}

	exec.results[union] = scripted{rows: []string{"1", "2", "NULL"}}
	var cmp *ComparisonError
	if err := o.Check(context.Background()); !errors.As(err, &cmp) || cmp.Discipline != DisciplineSet {
		t.Fatalf("expected set mismatch for a missing value, got %v", err)
	}
}

func TestReproducerSaveLoad(t *testing.T) {
	results := singleScript()
	results[pSQL] = scripted{}
	exec := &scriptedExec{results: results}
	o := newTestOracle(t, exec, []string{"(a > 1)"}, Options{Mode: config.PartitionSingle})
	if err := o.Check(context.Background()); err == nil {
		t.Fatalf("expected mismatch")
	}
	path := filepath.Join(t.TempDir(), "reproducer.json")
	if err := o.LastReproducer().Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadReproducer(path, testErrors(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ReferenceSQL != baseSQL || loaded.Discipline != DisciplineMultiset {
		t.Fatalf("unexpected loaded reproducer %+v", loaded)
	}
	if !loaded.StillTriggers(context.Background(), exec) {
		t.Fatalf("loaded reproducer should trigger")
	}
	results[notSQL] = scripted{err: &mysql.MySQLError{Number: 1690}}
	if loaded.StillTriggers(context.Background(), exec) {
		t.Fatalf("dropped partition must not count as a trigger")
	}
}
