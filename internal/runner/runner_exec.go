package runner

import (
	"context"
	"strings"
	"time"
)

var loggedPrefixes = []string{"INSERT", "UPDATE", "DELETE"}

// execSQL runs a DDL or DML statement under the statement timeout. Successful
// data changes are appended to the insert log used to rebuild cases.
func (r *Runner) execSQL(ctx context.Context, sql string) error {
	qctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if _, err := r.exec.ExecContext(qctx, sql); err != nil {
		if r.cfg.Logging.Verbose {
			r.logSQLError(sql, err)
		}
		return err
	}
	r.recordInsert(sql)
	return nil
}

func (r *Runner) recordInsert(sql string) {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)
	for _, prefix := range loggedPrefixes {
		if strings.HasPrefix(upper, prefix) {
			r.insertLog = append(r.insertLog, trimmed)
			return
		}
	}
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.StatementTimeoutMs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(r.cfg.StatementTimeoutMs)*time.Millisecond)
}
