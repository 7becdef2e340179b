package runner

import (
	"strings"

	"github.com/pkg/errors"

	"tlpwhere/internal/db"
	"tlpwhere/internal/oracle"
	"tlpwhere/internal/schema"
	"tlpwhere/internal/util"
)

type outcome int

const (
	outcomeClean outcome = iota
	outcomeSkipped
	outcomeDiscrepancy
	outcomeCrash
	outcomeInvalidSQL
	outcomeExecError
)

func (o outcome) String() string {
	switch o {
	case outcomeClean:
		return "clean"
	case outcomeSkipped:
		return "skipped"
	case outcomeDiscrepancy:
		return "discrepancy"
	case outcomeCrash:
		return "crash"
	case outcomeInvalidSQL:
		return "invalid_sql"
	default:
		return "exec_error"
	}
}

// classify maps an oracle result to the outcome the runner acts on.
func classify(result oracle.Result) outcome {
	if result.OK {
		if _, ok := result.Details["skip_reason"]; ok {
			return outcomeSkipped
		}
		return outcomeClean
	}
	var cmp *oracle.ComparisonError
	switch err := result.Err; {
	case errors.As(err, &cmp):
		return outcomeDiscrepancy
	case errors.Is(err, schema.ErrNoTables):
		return outcomeSkipped
	case db.IsInvalidSQL(err):
		return outcomeInvalidSQL
	case isPanicError(err):
		return outcomeCrash
	default:
		return outcomeExecError
	}
}

// isPanicError reports engine failures that are bugs on their own, whatever
// the oracle verdict.
func isPanicError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "panic") || strings.Contains(msg, "assert") || strings.Contains(msg, "internal error")
}

func (r *Runner) benign(err error) bool {
	return r.errs.Matches(err) || db.IsInvalidSQL(err)
}

func (r *Runner) logSQLError(sql string, err error) {
	if code, ok := db.ErrorCode(err); ok {
		util.Detailf("sql error worker=%d code=%d benign=%t sql=%s err=%v", r.worker, code, r.benign(err), sql, err)
		return
	}
	util.Detailf("sql error worker=%d benign=%t sql=%s err=%v", r.worker, r.benign(err), sql, err)
}
