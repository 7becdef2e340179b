package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"tlpwhere/internal/config"
	"tlpwhere/internal/db"
	"tlpwhere/internal/oracle"
	"tlpwhere/internal/report"
	"tlpwhere/internal/repro"
	"tlpwhere/internal/schema"
	"tlpwhere/internal/util"
)

func sqliteConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Dialect = config.DialectSQLite
	cfg.Features.Hints = false
	cfg.Oracle.ExpectedErrors = config.DefaultExpectedErrors(config.DialectSQLite)
	cfg.Seed = 7
	cfg.Iterations = 80
	cfg.StatementTimeoutMs = 10000
	cfg.Logging.ReportIntervalSeconds = 0
	cfg.Report.OutputDir = t.TempDir()
	return cfg
}

func newSQLiteRunner(t *testing.T, cfg config.Config) *Runner {
	t.Helper()
	exec, err := db.Open(config.DialectSQLite, fmt.Sprintf("file:%s?mode=memory", t.Name()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = exec.Close() })
	r, err := New(cfg, exec, 1)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func TestRunSQLiteFindsNoDiscrepancy(t *testing.T) {
	for _, mode := range []config.PartitionMode{config.PartitionSingle, config.PartitionDual} {
		cfg := sqliteConfig(t)
		cfg.Oracle.PartitionMode = mode
		cfg.Oracle.OrderByProb = 20
		r := newSQLiteRunner(t, cfg)
		if err := r.Run(context.Background()); err != nil {
			t.Fatalf("%s: run: %v", mode, err)
		}
		stats := r.Stats()
		if stats.Cycles == 0 || stats.SQLTotal == 0 {
			t.Fatalf("%s: runner did nothing: %+v", mode, stats)
		}
		if stats.Discrepancies != 0 || stats.Crashes != 0 {
			t.Fatalf("%s: unexpected findings on sqlite: %+v", mode, stats)
		}
		if len(r.state.Tables) < initialTables || len(r.state.Tables) > cfg.MaxTables {
			t.Fatalf("%s: unexpected table count %d", mode, len(r.state.Tables))
		}
	}
}

func TestHandleResultWritesReplayableCase(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	cfg.Report.Archive = true
	r := newSQLiteRunner(t, cfg)
	r.exec.Observe = r.observeSQL
	if err := r.initState(ctx); err != nil {
		t.Fatalf("init state: %v", err)
	}
	table := r.state.Tables[0].Name
	base := fmt.Sprintf("SELECT %s.id AS f0 FROM %s", table, table)
	rep := (&oracle.Reproducer{
		ReferenceSQL: base,
		Partitions: oracle.PartitionSet{Queries: []string{
			base + fmt.Sprintf(" WHERE (%s.id > 1)", table),
			base + fmt.Sprintf(" WHERE (NOT (%s.id > 1))", table),
			base + fmt.Sprintf(" WHERE ((%s.id > 1) IS NULL)", table),
		}},
		Expected:   []string{"-1"},
		Discipline: oracle.DisciplineMultiset,
	}).Bind(r.errs)
	combined, err := oracle.Combine(ctx, r.exec, rep.Partitions, r.errs)
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	cmpErr := oracle.CheckEquivalence(base, combined.Statements, rep.Expected, combined.Rows, rep.Discipline)
	if cmpErr == nil {
		t.Fatalf("expected mismatch")
	}
	result := oracle.Result{
		Oracle:  "TLPWhere",
		SQL:     append([]string{base}, combined.Statements...),
		Err:     cmpErr,
		Details: map[string]any{"discipline": "multiset", "reason": "test"},
	}

	r.handleResult(ctx, result, rep)

	dirs, err := filepath.Glob(filepath.Join(cfg.Report.OutputDir, "case_w1_0001_*"))
	if err != nil || len(dirs) != 1 {
		t.Fatalf("expected one case dir, got %v (%v)", dirs, err)
	}
	caseDir := dirs[0]
	for _, name := range []string{
		report.CaseSQLFile, report.InsertsFile, report.SchemaFile, report.DataFile,
		report.ExpectedFile, report.ActualFile, report.ReproducerFile, report.SummaryFile,
		report.CaseArchiveName,
	} {
		if _, err := os.Stat(filepath.Join(caseDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	data, err := os.ReadFile(filepath.Join(caseDir, report.SummaryFile))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var summary report.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Flaky || summary.Discipline != "multiset" || summary.Reason != "test" || summary.ArchiveName != report.CaseArchiveName {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if r.Stats().Flaky != 0 {
		t.Fatalf("stable reproducer counted as flaky")
	}
	if len(r.insertLog) == 0 || len(r.state.Tables) != initialTables {
		t.Fatalf("database was not reset: log=%d tables=%d", len(r.insertLog), len(r.state.Tables))
	}

	reproduces, err := repro.Run(ctx, repro.Options{
		CaseDir: caseDir,
		DSN:     "file:runner_replay?mode=memory",
		Dialect: config.DialectSQLite,
		Out:     io.Discard,
	})
	if err != nil || !reproduces {
		t.Fatalf("case should replay: reproduces=%t err=%v", reproduces, err)
	}
}

func TestClassify(t *testing.T) {
	cmp := &oracle.ComparisonError{Discipline: oracle.DisciplineSet}
	cases := []struct {
		result oracle.Result
		want   outcome
	}{
		{oracle.Result{OK: true}, outcomeClean},
		{oracle.Result{OK: true, Details: map[string]any{"skip_reason": "x"}}, outcomeSkipped},
		{oracle.Result{Err: cmp}, outcomeDiscrepancy},
		{oracle.Result{Err: errors.Wrap(schema.ErrNoTables, "pick")}, outcomeSkipped},
		{oracle.Result{Err: errors.Wrap(db.ErrInvalidSQL, "syntax")}, outcomeInvalidSQL},
		{oracle.Result{Err: &oracle.ExecError{SQL: "SELECT 1", Err: &mysql.MySQLError{Number: 1105, Message: "runtime: panic in executor"}}}, outcomeCrash},
		{oracle.Result{Err: &oracle.ExecError{SQL: "SELECT 1", Err: &mysql.MySQLError{Number: 1146, Message: "Table 't9' doesn't exist"}}}, outcomeExecError},
	}
	for _, tc := range cases {
		if got := classify(tc.result); got != tc.want {
			t.Fatalf("classify(%v) = %s, want %s", tc.result.Err, got, tc.want)
		}
	}
}

func TestRecordInsertKeepsDataChanges(t *testing.T) {
	r := &Runner{}
	for _, sql := range []string{
		"CREATE TABLE t0 (id BIGINT)",
		" INSERT INTO t0 (id) VALUES (1)",
		"update t0 SET id = 2",
		"SELECT 1",
		"DELETE FROM t0 WHERE (t0.id > 1)",
	} {
		r.recordInsert(sql)
	}
	want := "[INSERT INTO t0 (id) VALUES (1) update t0 SET id = 2 DELETE FROM t0 WHERE (t0.id > 1)]"
	if fmt.Sprint(r.insertLog) != want {
		t.Fatalf("unexpected log %v", r.insertLog)
	}
}

func TestWriteCaseArtifactFailureIsLogged(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(t.TempDir(), "runner.log")
	sync := util.InitLogging(util.LogOptions{Level: "info", File: logPath})
	defer util.InitLogging(util.LogOptions{Level: "info"})

	r := &Runner{worker: 3, reporter: report.New(dir, 10, config.DialectSQLite)}
	caseData := report.Case{Dir: dir}
	if err := os.Mkdir(filepath.Join(dir, report.CaseSQLFile), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	r.warnWrite(caseData, report.CaseSQLFile, r.reporter.WriteSQL(caseData, report.CaseSQLFile, []string{"SELECT 1"}))
	r.warnWrite(caseData, report.InsertsFile, r.reporter.WriteSQL(caseData, report.InsertsFile, []string{"INSERT INTO t0 VALUES (1)"}))
	sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "write "+report.CaseSQLFile+" failed worker=3") {
		t.Fatalf("missing write warning: %s", text)
	}
	if strings.Contains(text, "write "+report.InsertsFile+" failed") {
		t.Fatalf("unexpected warning for successful write: %s", text)
	}
	if _, err := os.Stat(filepath.Join(dir, report.InsertsFile)); err != nil {
		t.Fatalf("inserts file missing: %v", err)
	}
}
