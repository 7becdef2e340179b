// Package report writes TLP WHERE discrepancy cases to disk.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"tlpwhere/internal/config"
	"tlpwhere/internal/db"
	"tlpwhere/internal/runinfo"
	"tlpwhere/internal/schema"
	"tlpwhere/internal/util"
)

// Case file names.
const (
	CaseSQLFile    = "case.sql"
	SchemaFile     = "schema.sql"
	InsertsFile    = "inserts.sql"
	DataFile       = "data.tsv"
	ExpectedFile   = "expected.tsv"
	ActualFile     = "actual.tsv"
	ReproducerFile = "reproducer.json"
	SummaryFile    = "summary.json"
)

const readme = `# Reproduce Case

- Apply schema: schema.sql
- Load data: inserts.sql (preferred) or data.tsv
- Reference and partition queries: case.sql
- Replay: tlpwhere-repro -case_dir <this dir> -dsn <dsn>
`

// Reporter writes case artifacts to disk.
type Reporter struct {
	OutputDir       string
	MaxDataDumpRows int
	Dialect         config.Dialect
	// Prefix distinguishes workers sharing one output directory.
	Prefix  string
	caseSeq int
}

// Case describes a report directory.
type Case struct {
	ID  string
	Dir string
}

// Summary captures the persisted metadata for a case.
type Summary struct {
	Oracle         string         `json:"oracle"`
	Dialect        string         `json:"dialect"`
	PartitionMode  string         `json:"partition_mode"`
	Discipline     string         `json:"discipline"`
	ReferenceSQL   string         `json:"reference_sql"`
	Statements     []string       `json:"statements"`
	Expected       string         `json:"expected"`
	Actual         string         `json:"actual"`
	Reason         string         `json:"reason"`
	Error          string         `json:"error"`
	Flaky          bool           `json:"flaky"`
	Seed           int64          `json:"seed"`
	Worker         int            `json:"worker"`
	EngineVersion  string         `json:"engine_version"`
	UploadLocation string         `json:"upload_location"`
	CaseID         string         `json:"case_id"`
	CaseDir        string         `json:"case_dir"`
	ArchiveName    string         `json:"archive_name,omitempty"`
	ArchiveCodec   string         `json:"archive_codec,omitempty"`
	PlanReplayer   string         `json:"plan_replayer,omitempty"`
	RunInfo        *runinfo.Info  `json:"run_info,omitempty"`
	Details        map[string]any `json:"details"`
	Timestamp      string         `json:"timestamp"`
}

// New creates a reporter that writes to outputDir.
func New(outputDir string, maxRows int, dialect config.Dialect) *Reporter {
	return &Reporter{OutputDir: outputDir, MaxDataDumpRows: maxRows, Dialect: dialect}
}

// NewCase allocates a new case directory named after a time-ordered UUID.
func (r *Reporter) NewCase() (Case, error) {
	r.caseSeq++
	caseID := uuid.New().String()
	if v7, err := uuid.NewV7(); err == nil {
		caseID = v7.String()
	}
	name := fmt.Sprintf("case_%04d_%s", r.caseSeq, caseID)
	if r.Prefix != "" {
		name = fmt.Sprintf("case_%s_%04d_%s", r.Prefix, r.caseSeq, caseID)
	}
	dir := filepath.Join(r.OutputDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Case{}, errors.Wrapf(err, "create case dir %s", dir)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(readme), 0o644); err != nil {
		return Case{}, errors.Wrap(err, "write case readme")
	}
	return Case{ID: caseID, Dir: dir}, nil
}

// WriteSummary writes summary.json into the case directory. Details keys are
// emitted in sorted order.
func (r *Reporter) WriteSummary(c Case, summary Summary) error {
	if summary.Timestamp == "" {
		summary.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	summary.CaseID = c.ID
	summary.CaseDir = c.Dir
	f, err := os.Create(filepath.Join(c.Dir, SummaryFile))
	if err != nil {
		return errors.Wrap(err, "create summary")
	}
	defer util.CloseWithErr(f, "summary output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return errors.Wrap(enc.Encode(summary), "encode summary")
}

// WriteSQL writes statements to name, each terminated by a semicolon.
func (r *Reporter) WriteSQL(c Case, name string, statements []string) error {
	if len(statements) == 0 {
		return r.WriteText(c, name, "")
	}
	return r.WriteText(c, name, strings.Join(statements, ";\n")+";\n")
}

// WriteRows writes one value per line.
func (r *Reporter) WriteRows(c Case, name string, rows []string) error {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.ReplaceAll(row, "\n", `\n`))
		b.WriteString("\n")
	}
	return r.WriteText(c, name, b.String())
}

// WriteText writes raw text content into the case directory.
func (r *Reporter) WriteText(c Case, name string, content string) error {
	path := filepath.Join(c.Dir, name)
	if dir := filepath.Dir(path); dir != c.Dir {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	return errors.Wrapf(os.WriteFile(path, []byte(content), 0o644), "write %s", name)
}

// DumpSchema writes schema.sql with DROP and CREATE statements for every
// tracked table, read back from the engine.
func (r *Reporter) DumpSchema(ctx context.Context, c Case, exec *db.DB, state *schema.State) error {
	var b strings.Builder
	tables := sortedTables(state.Tables)
	for i := len(tables) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s;\n", tables[i].Name)
	}
	for _, tbl := range tables {
		stmts, err := r.createStatements(ctx, exec, tbl.Name)
		if err != nil {
			util.Warnf("dump table failed table=%s err=%v", tbl.Name, err)
			fmt.Fprintf(&b, "-- failed to dump table %s: %v\n\n", tbl.Name, err)
			continue
		}
		for _, stmt := range stmts {
			b.WriteString(stmt)
			b.WriteString(";\n")
		}
		b.WriteString("\n")
	}
	return r.WriteText(c, SchemaFile, b.String())
}

func (r *Reporter) createStatements(ctx context.Context, exec *db.DB, table string) ([]string, error) {
	if r.Dialect == config.DialectSQLite {
		rows, err := exec.QueryRows(ctx, fmt.Sprintf(
			"SELECT sql FROM sqlite_master WHERE tbl_name = '%s' AND sql IS NOT NULL ORDER BY CASE type WHEN 'table' THEN 0 ELSE 1 END, name", table))
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(rows))
		for _, row := range rows {
			out = append(out, row[0])
		}
		if len(out) == 0 {
			return nil, errors.Errorf("table %s not found", table)
		}
		return out, nil
	}
	rows, err := exec.QueryRows(ctx, fmt.Sprintf("SHOW CREATE TABLE %s", table))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) < 2 {
		return nil, errors.Errorf("empty SHOW CREATE TABLE for %s", table)
	}
	return []string{rows[0][1]}, nil
}

// DumpData writes data.tsv with capped rows per table.
func (r *Reporter) DumpData(ctx context.Context, c Case, exec *db.DB, state *schema.State) error {
	var b strings.Builder
	for _, tbl := range sortedTables(state.Tables) {
		fmt.Fprintf(&b, "-- %s\n", tbl.Name)
		query := fmt.Sprintf("SELECT * FROM %s", tbl.Name)
		if orderBy := stableOrderBy(tbl); orderBy != "" {
			query += " ORDER BY " + db.QuoteIdent(r.Dialect, orderBy)
		}
		if r.MaxDataDumpRows > 0 {
			query += fmt.Sprintf(" LIMIT %d", r.MaxDataDumpRows)
		}
		rows, err := exec.QueryRows(ctx, query)
		if err != nil {
			fmt.Fprintf(&b, "-- failed: %v\n\n", err)
			continue
		}
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return r.WriteText(c, DataFile, b.String())
}

func sortedTables(tables []schema.Table) []schema.Table {
	out := append([]schema.Table(nil), tables...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

func stableOrderBy(tbl schema.Table) string {
	if _, ok := tbl.ColumnByName("id"); ok {
		return "id"
	}
	names := make([]string, 0, len(tbl.Columns))
	for _, col := range tbl.Columns {
		if col.Name != "" {
			names = append(names, col.Name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[0]
}

// EngineVersion returns the engine version string, or "" when unavailable.
func EngineVersion(ctx context.Context, exec *db.DB) string {
	query := "SELECT VERSION()"
	if exec.Dialect == config.DialectSQLite {
		query = "SELECT sqlite_version()"
	}
	v, err := exec.QueryString(ctx, query)
	if err != nil {
		return ""
	}
	return strings.ReplaceAll(strings.TrimSpace(v), "\n", " ")
}
