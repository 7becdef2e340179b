package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"tlpwhere/internal/config"
)

func openSQLite(t *testing.T) *DB {
	t.Helper()
	exec, err := Open(config.DialectSQLite, fmt.Sprintf("file:%s?mode=memory", t.Name()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = exec.Close() })
	return exec
}

func TestQueryFirstColumnRendersNull(t *testing.T) {
	ctx := context.Background()
	exec := openSQLite(t)
	for _, stmt := range []string{
		"CREATE TABLE t (a INT, b TEXT)",
		"INSERT INTO t VALUES (1, 'x'), (NULL, 'y'), (3, NULL)",
	} {
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("exec %s: %v", stmt, err)
		}
	}
	got, err := exec.QueryFirstColumn(ctx, "SELECT a, b FROM t ORDER BY b")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	want := []string{"3", "1", "NULL"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	tables, err := ListTables(ctx, exec)
	if err != nil || len(tables) != 1 || tables[0] != "t" {
		t.Fatalf("unexpected tables %v (%v)", tables, err)
	}
	if err := DropTables(ctx, exec, tables); err != nil {
		t.Fatalf("drop tables: %v", err)
	}
}

func TestValidateHookRejects(t *testing.T) {
	exec := openSQLite(t)
	var observed []string
	exec.Validate = func(string) error { return errors.New("syntax") }
	exec.Observe = func(sql string, err error) {
		observed = append(observed, sql)
	}
	_, err := exec.QueryFirstColumn(context.Background(), "SELECT 1")
	if !IsInvalidSQL(err) {
		t.Fatalf("expected invalid sql error, got %v", err)
	}
	if len(observed) != 1 {
		t.Fatalf("expected one observed statement, got %d", len(observed))
	}
}

func TestErrorCode(t *testing.T) {
	err := errors.Wrap(&mysql.MySQLError{Number: 1292, Message: "Truncated"}, "query")
	code, ok := ErrorCode(err)
	if !ok || code != 1292 {
		t.Fatalf("unexpected code %d %v", code, ok)
	}
	if _, ok := ErrorCode(errors.New("plain")); ok {
		t.Fatalf("plain error reported a code")
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent(config.DialectMySQL, "a`b"); got != "`a``b`" {
		t.Fatalf("unexpected mysql quote %s", got)
	}
	if got := QuoteIdent(config.DialectSQLite, `a"b`); got != `"a""b"` {
		t.Fatalf("unexpected sqlite quote %s", got)
	}
}
