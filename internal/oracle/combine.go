package oracle

import (
	"context"
)

// DroppedStatement is a partition statement discarded because it raised an
// expected error.
type DroppedStatement struct {
	SQL string
	Err error
}

// Combined is the merged output of a partition set.
type Combined struct {
	Rows       []string
	Statements []string
	Dropped    []DroppedStatement
}

// Combine executes a partition set and merges the rows.
//
// Unordered sets run one statement per partition and concatenate the rows;
// a partition failing with an expected error is dropped and the rest still
// run. Ordered and union-all sets run as one statement, so an expected error
// drops every partition. Any other error aborts with an *ExecError.
func Combine(ctx context.Context, exec Executor, set PartitionSet, errs *ExpectedErrors) (Combined, error) {
	out := Combined{Statements: set.Statements()}
	for _, stmt := range out.Statements {
		rows, err := exec.QueryFirstColumn(ctx, stmt)
		if err != nil {
			if errs.Matches(err) {
				out.Dropped = append(out.Dropped, DroppedStatement{SQL: stmt, Err: err})
				continue
			}
			return Combined{}, &ExecError{SQL: stmt, Err: err}
		}
		out.Rows = append(out.Rows, rows...)
	}
	return out, nil
}
