package repro

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tlpwhere/internal/config"
	"tlpwhere/internal/oracle"
)

func TestSplitSQL(t *testing.T) {
	input := "-- t0\nCREATE TABLE `t;0` (a INT /*T![clustered_index] CLUSTERED; */);\n" +
		"INSERT INTO t0 VALUES ('a;b', \"c\\\"d;\");\n# trailing\n-- only a comment\n"
	got := splitSQL(input)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if !strings.HasSuffix(got[0], "CLUSTERED; */)") {
		t.Fatalf("block comment split: %q", got[0])
	}
	if !strings.HasSuffix(got[1], "VALUES ('a;b', \"c\\\"d;\")") {
		t.Fatalf("quoted semicolon split: %q", got[1])
	}
}

func writeCase(t *testing.T, expected []string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"schema.sql":  "DROP TABLE IF EXISTS t;\nCREATE TABLE t (a INT);\n",
		"inserts.sql": "INSERT INTO t VALUES (1), (NULL);\nINSERT INTO t VALUES (3);\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	rep := &oracle.Reproducer{
		ReferenceSQL: "SELECT a AS f0 FROM t",
		Partitions: oracle.PartitionSet{Queries: []string{
			"SELECT a AS f0 FROM t WHERE (a > 1)",
			"SELECT a AS f0 FROM t WHERE (NOT (a > 1))",
			"SELECT a AS f0 FROM t WHERE ((a > 1) IS NULL)",
		}},
		Expected:   expected,
		Discipline: oracle.DisciplineMultiset,
	}
	if err := rep.Save(filepath.Join(dir, "reproducer.json")); err != nil {
		t.Fatalf("save reproducer: %v", err)
	}
	return dir
}

func TestRunSQLite(t *testing.T) {
	cases := []struct {
		expected []string
		want     bool
	}{
		{[]string{"1", "NULL", "3"}, false},
		{[]string{"1", "NULL"}, true},
	}
	for i, tc := range cases {
		var out bytes.Buffer
		got, err := Run(context.Background(), Options{
			CaseDir: writeCase(t, tc.expected),
			DSN:     fmt.Sprintf("file:repro_%d?mode=memory", i),
			Dialect: config.DialectSQLite,
			Out:     &out,
		})
		if err != nil {
			t.Fatalf("case %d: run: %v\n%s", i, err, out.String())
		}
		if got != tc.want || !strings.Contains(out.String(), fmt.Sprintf("reproduces=%t", tc.want)) {
			t.Fatalf("case %d: expected %t, got %t\n%s", i, tc.want, got, out.String())
		}
	}
}

func TestRunRequiresCaseDir(t *testing.T) {
	if _, err := Run(context.Background(), Options{DSN: "x"}); err == nil {
		t.Fatalf("expected case_dir error")
	}
}
