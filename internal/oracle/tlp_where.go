package oracle

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"tlpwhere/internal/config"
	"tlpwhere/internal/util"
)

const oracleName = "TLPWhere"

// Options tunes a TLPWhere controller.
type Options struct {
	// Mode defaults to config.PartitionDual, matching the config default.
	Mode config.PartitionMode
	// OrderByProb is the percentage of cycles that add ORDER BY. Only the
	// single mode compares ordered results; the dual mode always compares
	// distinct values, so ordering never changes its verdict.
	OrderByProb int
	// UnionAll merges unordered partitions in a single statement.
	UnionAll bool
}

// TLPWhere runs TLP WHERE cycles. It is not safe for concurrent use.
type TLPWhere[E any, Q any] struct {
	gen    QueryGenerator[E, Q]
	tables TablePicker
	exec   Executor
	errs   *ExpectedErrors
	rand   *rand.Rand
	opts   Options

	lastQuery      string
	lastReproducer *Reproducer
}

// NewTLPWhere wires a controller. Every collaborator is required.
func NewTLPWhere[E any, Q any](gen QueryGenerator[E, Q], tables TablePicker, exec Executor, errs *ExpectedErrors, r *rand.Rand, opts Options) (*TLPWhere[E, Q], error) {
	deps := []struct {
		name string
		v    any
	}{
		{"generator", gen},
		{"table picker", tables},
		{"executor", exec},
		{"expected errors", errs},
		{"rand", r},
	}
	for _, dep := range deps {
		if isNil(dep.v) {
			return nil, errors.Wrap(ErrNilDependency, dep.name)
		}
	}
	if opts.Mode == "" {
		opts.Mode = config.PartitionDual
	}
	if opts.Mode != config.PartitionSingle && opts.Mode != config.PartitionDual {
		return nil, errors.Errorf("unknown partition mode %q", opts.Mode)
	}
	return &TLPWhere[E, Q]{gen: gen, tables: tables, exec: exec, errs: errs, rand: r, opts: opts}, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// Name returns the oracle name.
func (o *TLPWhere[E, Q]) Name() string { return oracleName }

// LastQuery returns the reference query of the most recent cycle.
func (o *TLPWhere[E, Q]) LastQuery() string { return o.lastQuery }

// LastReproducer returns the reproducer of the most recent cycle that
// reached a comparison, or nil.
func (o *TLPWhere[E, Q]) LastReproducer() *Reproducer { return o.lastReproducer }

// Check runs one cycle. It returns nil when the partitions reproduce the
// reference, ErrSkipped (wrapped) when an expected error interfered, a
// *ComparisonError on a discrepancy and an *ExecError on any other engine
// failure.
//
// The single mode compares multisets, or sequences when the cycle is ordered.
// The dual mode compares sets whether or not the cycle is ordered.
func (o *TLPWhere[E, Q]) Check(ctx context.Context) error {
	o.lastReproducer = nil
	o.lastQuery = ""

	group, err := o.tables.PickNonEmptyTableGroup(o.rand)
	if err != nil {
		return err
	}
	base := o.gen.GenerateBase(group)

	discipline := DisciplineMultiset
	if o.opts.Mode == config.PartitionDual {
		discipline = DisciplineSet
	}
	reference := base
	if util.Chance(o.rand, o.opts.OrderByProb) {
		reference = o.gen.GenerateOrderBy(base)
		if discipline == DisciplineMultiset {
			discipline = DisciplineOrdered
		}
	}
	referenceSQL := o.gen.Render(reference)
	o.lastQuery = referenceSQL

	expected, err := o.exec.QueryFirstColumn(ctx, referenceSQL)
	if err != nil {
		if o.errs.Matches(err) {
			return skipped("reference query", err)
		}
		return &ExecError{SQL: referenceSQL, Err: err}
	}

	set := PartitionSet{OrderKeys: o.gen.OrderKeys(reference), UnionAll: o.opts.UnionAll}
	left := BuildVariants[E](o.gen, o.gen.GeneratePredicate(base))
	if o.opts.Mode == config.PartitionDual {
		right := BuildVariants[E](o.gen, o.gen.GeneratePredicate(base))
		set.Queries = ComposeDual[E, Q](o.gen, base, left, right)
	} else {
		set.Queries = ComposeSingle[E, Q](o.gen, base, left)
	}

	combined, err := Combine(ctx, o.exec, set, o.errs)
	if err != nil {
		return err
	}
	if len(combined.Dropped) > 0 {
		return skipped("partition query", combined.Dropped[0].Err)
	}

	o.lastReproducer = newReproducer(referenceSQL, set, expected, discipline, o.errs)
	return CheckEquivalence(referenceSQL, combined.Statements, expected, combined.Rows, discipline)
}

// Run executes one cycle and reports it in Result form.
func (o *TLPWhere[E, Q]) Run(ctx context.Context) Result {
	err := o.Check(ctx)
	res := Result{OK: err == nil, Oracle: oracleName}
	if o.lastQuery != "" {
		res.SQL = []string{o.lastQuery}
	}
	if rep := o.lastReproducer; rep != nil {
		res.SQL = append([]string{rep.ReferenceSQL}, rep.Partitions.Statements()...)
		res.Details = map[string]any{"discipline": string(rep.Discipline)}
	}
	if err == nil {
		return res
	}
	var cmp *ComparisonError
	switch {
	case errors.Is(err, ErrSkipped):
		res.OK = true
		res.Details = map[string]any{"skip_reason": err.Error()}
	case errors.As(err, &cmp):
		res.Expected = summarizeRows(cmp.Expected)
		res.Actual = summarizeRows(cmp.Actual)
		res.Details["reason"] = cmp.Reason
		res.Err = err
	default:
		res.Err = err
	}
	return res
}

func summarizeRows(rows []string) string {
	const maxRows = 20
	if len(rows) <= maxRows {
		return fmt.Sprintf("rows=%d [%s]", len(rows), strings.Join(rows, ", "))
	}
	return fmt.Sprintf("rows=%d [%s, ...]", len(rows), strings.Join(rows[:maxRows], ", "))
}
