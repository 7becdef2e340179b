// Package db wraps database/sql for the fuzzer.
package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // Register the sqlite driver.

	"tlpwhere/internal/config"
	"tlpwhere/internal/util"
)

// NullValue is how SQL NULL is rendered in result rows.
const NullValue = "NULL"

// ErrInvalidSQL marks statements rejected by the validation hook before execution.
var ErrInvalidSQL = errors.New("invalid sql")

// DB is a connection pool plus execution hooks.
type DB struct {
	*sql.DB
	Dialect config.Dialect
	// Validate, when set, checks each statement before it is sent.
	Validate func(string) error
	// Observe, when set, is called after each statement with its outcome.
	Observe func(sql string, err error)
}

// Open opens a pool for the given dialect. For SQLite the pool is pinned to
// a single connection so every statement sees the same in-memory database.
func Open(dialect config.Dialect, dsn string) (*DB, error) {
	driver := "mysql"
	if dialect == config.DialectSQLite {
		driver = "sqlite"
	}
	pool, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	if dialect == config.DialectSQLite {
		pool.SetMaxOpenConns(1)
	}
	return &DB{DB: pool, Dialect: dialect}, nil
}

func (d *DB) check(query string) error {
	if d.Validate == nil {
		return nil
	}
	if err := d.Validate(query); err != nil {
		return errors.Wrapf(ErrInvalidSQL, "%v", err)
	}
	return nil
}

func (d *DB) observe(query string, err error) {
	if d.Observe != nil {
		d.Observe(query, err)
	}
}

// ExecContext validates and executes a statement.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := d.check(query); err != nil {
		d.observe(query, err)
		return nil, err
	}
	res, err := d.DB.ExecContext(ctx, query, args...)
	d.observe(query, err)
	return res, err
}

// QueryFirstColumn runs a query and returns the first column of every row as text.
func (d *DB) QueryFirstColumn(ctx context.Context, query string) ([]string, error) {
	rows, err := d.QueryRows(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row[0])
	}
	return out, nil
}

// QueryRows runs a query and returns every row rendered as text.
func (d *DB) QueryRows(ctx context.Context, query string) (result [][]string, err error) {
	if err := d.check(query); err != nil {
		d.observe(query, err)
		return nil, err
	}
	defer func() { d.observe(query, err) }()
	rows, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer util.CloseWithErr(rows, "rows")
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errors.Errorf("query returned no columns: %s", query)
	}
	raw := make([]sql.RawBytes, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range raw {
			if v == nil {
				row[i] = NullValue
				continue
			}
			row[i] = string(v)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// QueryString returns the first column of the first row, or "" if no rows.
func (d *DB) QueryString(ctx context.Context, query string) (string, error) {
	vals, err := d.QueryFirstColumn(ctx, query)
	if err != nil || len(vals) == 0 {
		return "", err
	}
	return vals[0], nil
}

// ErrorCode extracts the MySQL error number, if any.
func ErrorCode(err error) (uint16, bool) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number, true
	}
	return 0, false
}

// IsInvalidSQL reports whether err came from the validation hook.
func IsInvalidSQL(err error) bool {
	return errors.Is(err, ErrInvalidSQL)
}

// QuoteIdent quotes an identifier for the dialect.
func QuoteIdent(dialect config.Dialect, name string) string {
	if dialect == config.DialectSQLite {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
