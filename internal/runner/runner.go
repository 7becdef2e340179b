// Package runner drives the fuzz loop: it evolves a random schema with DDL and
// DML, runs TLP WHERE cycles against it and captures discrepancies as cases.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"tlpwhere/internal/config"
	"tlpwhere/internal/db"
	"tlpwhere/internal/generator"
	"tlpwhere/internal/oracle"
	"tlpwhere/internal/replayer"
	"tlpwhere/internal/report"
	"tlpwhere/internal/runinfo"
	"tlpwhere/internal/schema"
	"tlpwhere/internal/uploader"
	"tlpwhere/internal/util"
	"tlpwhere/internal/validator"
)

const initialTables = 2

type tlpOracle = oracle.TLPWhere[generator.Expr, *generator.SelectQuery]

// Runner orchestrates fuzzing, execution, and reporting for one worker.
type Runner struct {
	cfg       config.Config
	worker    int
	exec      *db.DB
	gen       *generator.Generator
	state     *schema.State
	validator *validator.Validator
	reporter  *report.Reporter
	uploader  uploader.Uploader
	replayer  *replayer.Replayer
	runInfo   *runinfo.Info
	errs      *oracle.ExpectedErrors
	oracle    *tlpOracle
	insertLog []string
	resets    int64

	statsMu sync.Mutex
	stats   Stats
}

// New constructs a Runner for the given config and DB. worker numbers the
// runner in logs and case names.
func New(cfg config.Config, exec *db.DB, worker int) (*Runner, error) {
	errs, err := oracle.ExpectedErrorsFromConfig(cfg.Oracle.ExpectedErrors)
	if err != nil {
		return nil, err
	}
	up, err := uploader.New(cfg.Storage)
	if err != nil {
		util.Warnf("storage disabled: %v", err)
		up = uploader.NoopUploader{}
	}
	reporter := report.New(cfg.Report.OutputDir, cfg.MaxDataDumpRows, cfg.Dialect)
	reporter.Prefix = fmt.Sprintf("w%d", worker)
	r := &Runner{
		cfg:       cfg,
		worker:    worker,
		exec:      exec,
		validator: validator.New(),
		reporter:  reporter,
		uploader:  up,
		replayer:  replayer.New(cfg.PlanReplayer),
		runInfo:   runinfo.FromEnv(),
		errs:      errs,
	}
	if err := r.resetGenerator(cfg.Seed); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) resetGenerator(seed int64) error {
	r.state = &schema.State{MaxGroupSize: r.maxGroupSize()}
	r.gen = generator.New(r.cfg, r.state, seed)
	o, err := oracle.NewTLPWhere[generator.Expr, *generator.SelectQuery](r.gen, r.state, r.exec, r.errs, r.gen.Rand, oracle.Options{
		Mode:        r.cfg.Oracle.PartitionMode,
		OrderByProb: r.cfg.Oracle.OrderByProb,
		UnionAll:    r.cfg.Oracle.UnionAll,
	})
	if err != nil {
		return err
	}
	r.oracle = o
	r.insertLog = nil
	return nil
}

func (r *Runner) maxGroupSize() int {
	if !r.cfg.Features.Joins {
		return 1
	}
	return r.cfg.MaxJoinTables
}

// Run executes the fuzz loop until iterations are exhausted, ctx is done or
// the database becomes unusable.
func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.Dialect == config.DialectMySQL {
		r.exec.Validate = r.validator.Validate
	}
	r.exec.Observe = r.observeSQL
	stop := r.startStatsLogger()
	defer stop()

	util.Infof("runner start worker=%d dialect=%s database=%s iterations=%d seed=%d mode=%s",
		r.worker, r.cfg.Dialect, r.cfg.Database, r.cfg.Iterations, r.gen.Seed, r.cfg.Oracle.PartitionMode)
	if err := r.setupDatabase(ctx); err != nil {
		return err
	}
	if err := r.initState(ctx); err != nil {
		return err
	}

	weights := []int{r.cfg.Weights.Actions.DDL, r.cfg.Weights.Actions.DML, r.cfg.Weights.Actions.Query}
	for i := 0; i < r.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		switch util.PickWeighted(r.gen.Rand, weights) {
		case 0:
			r.runDDL(ctx)
		case 1:
			r.runDML(ctx)
		default:
			r.runQuery(ctx)
		}
	}
	r.logStats("final", r.Stats())
	return nil
}

// setupDatabase drops leftover tables from earlier runs.
func (r *Runner) setupDatabase(ctx context.Context) error {
	tables, err := db.ListTables(ctx, r.exec)
	if err != nil {
		return errors.Wrap(err, "list tables")
	}
	return db.DropTables(ctx, r.exec, tables)
}

func (r *Runner) initState(ctx context.Context) error {
	for i := 0; i < initialTables; i++ {
		if err := r.createTable(ctx); err != nil {
			return errors.Wrap(err, "create initial table")
		}
	}
	return nil
}

// createTable creates a table with its planned indexes and seeds it with rows.
func (r *Runner) createTable(ctx context.Context) error {
	tbl := r.gen.GenerateTable()
	if err := r.execSQL(ctx, r.gen.CreateTableSQL(tbl)); err != nil {
		return err
	}
	for _, idx := range tbl.Indexes {
		if err := r.execSQL(ctx, r.gen.IndexSQL(tbl, idx)); err != nil {
			return err
		}
	}
	r.state.Tables = append(r.state.Tables, tbl)
	tablePtr := &r.state.Tables[len(r.state.Tables)-1]
	inserts := max(1, r.cfg.MaxRowsPerTable/5)
	for j := 0; j < inserts; j++ {
		if err := r.execSQL(ctx, r.gen.InsertSQL(tablePtr)); err != nil && !r.benign(err) {
			return err
		}
	}
	return nil
}

func (r *Runner) runDDL(ctx context.Context) {
	actions := make([]string, 0, 2)
	if len(r.state.Tables) < r.cfg.MaxTables {
		actions = append(actions, "create_table")
	}
	if r.cfg.Features.Indexes && len(r.state.Tables) > 0 {
		actions = append(actions, "create_index")
	}
	if len(actions) == 0 {
		return
	}
	switch util.Pick(r.gen.Rand, actions) {
	case "create_table":
		if err := r.createTable(ctx); err != nil {
			util.Detailf("create table failed worker=%d err=%v", r.worker, err)
		}
	case "create_index":
		tablePtr := &r.state.Tables[r.gen.Rand.Intn(len(r.state.Tables))]
		tableCopy := *tablePtr
		tableCopy.Columns = append([]schema.Column{}, tablePtr.Columns...)
		tableCopy.Indexes = append([]schema.Index{}, tablePtr.Indexes...)
		sql, ok := r.gen.CreateIndexSQL(&tableCopy)
		if !ok {
			return
		}
		if err := r.execSQL(ctx, sql); err != nil {
			return
		}
		*tablePtr = tableCopy
	}
}

func (r *Runner) runDML(ctx context.Context) {
	if len(r.state.Tables) == 0 {
		return
	}
	tbl := &r.state.Tables[r.gen.Rand.Intn(len(r.state.Tables))]
	weights := []int{r.cfg.Weights.DML.Insert, r.cfg.Weights.DML.Update, r.cfg.Weights.DML.Delete}
	switch util.PickWeighted(r.gen.Rand, weights) {
	case 0:
		if r.cfg.MaxRowsPerTable > 0 && tbl.NextID > int64(r.cfg.MaxRowsPerTable) {
			return
		}
		_ = r.execSQL(ctx, r.gen.InsertSQL(tbl))
	case 1:
		if sql, ok := r.gen.UpdateSQL(*tbl); ok {
			_ = r.execSQL(ctx, sql)
		}
	default:
		_ = r.execSQL(ctx, r.gen.DeleteSQL(*tbl))
	}
}

// runQuery runs one oracle cycle and reports it when it exposes a bug.
func (r *Runner) runQuery(ctx context.Context) {
	qctx, cancel := r.withTimeout(ctx)
	result := r.oracle.Run(qctx)
	cancel()
	rep := r.oracle.LastReproducer()
	outcome := classify(result)
	r.observeOutcome(outcome)
	switch outcome {
	case outcomeDiscrepancy, outcomeCrash:
		r.handleResult(ctx, result, rep)
	case outcomeExecError:
		util.Detailf("oracle exec error worker=%d err=%v", r.worker, result.Err)
	}
}

// resetDatabase starts over with an empty schema after a captured case so
// later cases do not inherit its state.
func (r *Runner) resetDatabase(ctx context.Context) error {
	r.resets++
	if err := r.resetGenerator(r.gen.Seed + r.resets); err != nil {
		return err
	}
	if err := r.setupDatabase(ctx); err != nil {
		return err
	}
	return r.initState(ctx)
}
