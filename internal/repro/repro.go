// Package repro replays a saved TLP WHERE case against a fresh database.
package repro

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"tlpwhere/internal/config"
	"tlpwhere/internal/db"
	"tlpwhere/internal/oracle"
	"tlpwhere/internal/report"
	"tlpwhere/internal/util"
)

// Options configures a reproduction run.
type Options struct {
	CaseDir  string
	DSN      string
	Database string
	Dialect  config.Dialect
	// ExpectedErrors defaults to the dialect's benign error set when empty.
	ExpectedErrors config.ExpectedErrorsConfig
	Out            io.Writer
}

// Run loads the case schema and data, replays its partition queries and
// reports whether the discrepancy still shows up.
func Run(ctx context.Context, opts Options) (bool, error) {
	if opts.CaseDir == "" {
		return false, errors.New("case_dir is required")
	}
	if opts.DSN == "" {
		return false, errors.New("dsn is required")
	}
	if opts.Dialect == "" {
		opts.Dialect = config.DialectMySQL
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	errCfg := opts.ExpectedErrors
	if len(errCfg.Codes) == 0 && len(errCfg.Messages) == 0 && len(errCfg.Patterns) == 0 {
		errCfg = config.DefaultExpectedErrors(opts.Dialect)
	}
	expected, err := oracle.ExpectedErrorsFromConfig(errCfg)
	if err != nil {
		return false, err
	}
	rep, err := oracle.LoadReproducer(filepath.Join(opts.CaseDir, report.ReproducerFile), expected)
	if err != nil {
		return false, err
	}

	dsn := opts.DSN
	if opts.Dialect == config.DialectMySQL {
		if opts.Database == "" {
			opts.Database = "tlpwhere_repro"
		}
		if err := db.EnsureDatabase(ctx, opts.Dialect, opts.DSN, opts.Database); err != nil {
			return false, err
		}
		dsn = config.UpdateDatabaseInDSN(opts.DSN, opts.Database)
	}
	exec, err := db.Open(opts.Dialect, dsn)
	if err != nil {
		return false, err
	}
	defer util.CloseWithErr(exec, "repro db")

	fmt.Fprintf(opts.Out, "dialect=%s dsn=%s\n", opts.Dialect, dsn)
	if v := report.EngineVersion(ctx, exec); v != "" {
		fmt.Fprintf(opts.Out, "version=%s\n", v)
	}
	for _, name := range []string{report.SchemaFile, report.InsertsFile} {
		if err := execSQLFile(ctx, exec, filepath.Join(opts.CaseDir, name), opts.Out); err != nil {
			return false, errors.Wrap(err, strings.TrimSuffix(name, ".sql"))
		}
	}
	reproduces := rep.StillTriggers(ctx, exec)
	fmt.Fprintf(opts.Out, "discipline=%s partitions=%d\n", rep.Discipline, len(rep.Partitions.Queries))
	fmt.Fprintf(opts.Out, "reproduces=%t\n", reproduces)
	return reproduces, nil
}

func execSQLFile(ctx context.Context, exec *db.DB, path string, out io.Writer) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "read %s", path)
	}
	statements := splitSQL(string(content))
	fmt.Fprintf(out, "exec_file=%s statements=%d\n", path, len(statements))
	for idx, stmt := range statements {
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return errors.Errorf("stmt=%d err=%v sql=%s", idx+1, err, stmt)
		}
	}
	return nil
}
