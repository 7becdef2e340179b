package db

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"tlpwhere/internal/config"
	"tlpwhere/internal/util"
)

// EnsureDatabase creates the database if it does not exist. SQLite databases
// come into existence when opened, so only the MySQL dialect does any work.
func EnsureDatabase(ctx context.Context, dialect config.Dialect, dsn string, dbName string) error {
	if dbName == "" || dialect == config.DialectSQLite {
		return nil
	}
	exec, err := Open(dialect, config.AdminDSN(dsn))
	if err != nil {
		return err
	}
	defer util.CloseWithErr(exec, "db exec")
	if _, err := exec.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", QuoteIdent(dialect, dbName))); err != nil {
		return errors.Wrapf(err, "create database %s", dbName)
	}
	return nil
}

// DropTables drops the named tables, ignoring ones that do not exist.
func DropTables(ctx context.Context, exec *DB, tables []string) error {
	for _, name := range tables {
		if _, err := exec.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name)); err != nil {
			return errors.Wrapf(err, "drop table %s", name)
		}
	}
	return nil
}

// ListTables returns the user tables of the current database.
func ListTables(ctx context.Context, exec *DB) ([]string, error) {
	query := "SHOW TABLES"
	if exec.Dialect == config.DialectSQLite {
		query = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	}
	return exec.QueryFirstColumn(ctx, query)
}
