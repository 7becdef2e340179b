package runner

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"tlpwhere/internal/oracle"
	"tlpwhere/internal/replayer"
	"tlpwhere/internal/report"
	"tlpwhere/internal/util"
)

// handleResult writes a case directory for a discrepancy or crash, uploads
// it when storage is configured and then resets the database.
func (r *Runner) handleResult(ctx context.Context, result oracle.Result, rep *oracle.Reproducer) {
	flaky := false
	if rep != nil && r.cfg.Oracle.VerifyReproducer {
		qctx, cancel := r.withTimeout(ctx)
		flaky = !rep.StillTriggers(qctx, r.exec)
		cancel()
		if flaky {
			r.observeFlaky()
		}
	}
	caseData, err := r.writeCase(ctx, result, rep, flaky)
	if err != nil {
		util.Errorf("write case failed worker=%d err=%v", r.worker, err)
	} else if flaky {
		util.Warnf("case captured oracle=%s dir=%s expected=%s actual=%s flaky=true", result.Oracle, caseData.Dir, result.Expected, result.Actual)
	} else {
		util.Highlightf("case captured oracle=%s dir=%s expected=%s actual=%s", result.Oracle, caseData.Dir, result.Expected, result.Actual)
	}
	if err := r.resetDatabase(ctx); err != nil {
		util.Errorf("reset database after case failed worker=%d err=%v", r.worker, err)
	}
}

func (r *Runner) writeCase(ctx context.Context, result oracle.Result, rep *oracle.Reproducer, flaky bool) (report.Case, error) {
	caseData, err := r.reporter.NewCase()
	if err != nil {
		return report.Case{}, err
	}
	details := result.Details
	if details == nil {
		details = map[string]any{}
	}
	summary := report.Summary{
		Oracle:        result.Oracle,
		Dialect:       string(r.cfg.Dialect),
		PartitionMode: string(r.cfg.Oracle.PartitionMode),
		Statements:    result.SQL,
		Expected:      result.Expected,
		Actual:        result.Actual,
		Flaky:         flaky,
		Seed:          r.gen.Seed,
		Worker:        r.worker,
		EngineVersion: report.EngineVersion(ctx, r.exec),
		RunInfo:       r.runInfo,
		Details:       details,
	}
	if len(result.SQL) > 0 {
		summary.ReferenceSQL = result.SQL[0]
	}
	if reason, ok := details["reason"].(string); ok {
		summary.Reason = reason
	}
	if result.Err != nil {
		summary.Error = result.Err.Error()
	}

	var cmp *oracle.ComparisonError
	if errors.As(result.Err, &cmp) {
		summary.Discipline = string(cmp.Discipline)
		r.warnWrite(caseData, report.ExpectedFile, r.reporter.WriteRows(caseData, report.ExpectedFile, cmp.Expected))
		r.warnWrite(caseData, report.ActualFile, r.reporter.WriteRows(caseData, report.ActualFile, cmp.Actual))
	}
	if rep != nil {
		if err := rep.Save(filepath.Join(caseData.Dir, report.ReproducerFile)); err != nil {
			util.Warnf("save reproducer failed dir=%s err=%v", caseData.Dir, err)
		}
	}
	r.warnWrite(caseData, report.CaseSQLFile, r.reporter.WriteSQL(caseData, report.CaseSQLFile, result.SQL))
	r.warnWrite(caseData, report.InsertsFile, r.reporter.WriteSQL(caseData, report.InsertsFile, r.insertLog))
	if err := r.reporter.DumpSchema(ctx, caseData, r.exec, r.state); err != nil {
		util.Warnf("dump schema failed dir=%s err=%v", caseData.Dir, err)
	}
	if err := r.reporter.DumpData(ctx, caseData, r.exec, r.state); err != nil {
		util.Warnf("dump data failed dir=%s err=%v", caseData.Dir, err)
	}
	if r.replayer.Enabled() && summary.ReferenceSQL != "" {
		qctx, cancel := r.withTimeout(ctx)
		if _, err := r.replayer.Capture(qctx, r.exec, summary.ReferenceSQL, caseData.Dir); err != nil {
			util.Warnf("plan replayer capture failed dir=%s err=%v", caseData.Dir, err)
		} else {
			summary.PlanReplayer = replayer.BundleFile
		}
		cancel()
	}
	if err := r.reporter.WriteSummary(caseData, summary); err != nil {
		return caseData, err
	}

	if r.cfg.Report.Archive || r.uploader.Enabled() {
		name, codec, archiveErr := r.reporter.WriteCaseArchive(caseData)
		if archiveErr != nil {
			util.Warnf("case archive failed dir=%s err=%v", caseData.Dir, archiveErr)
		} else {
			summary.ArchiveName = name
			summary.ArchiveCodec = codec
		}
	}
	if r.uploader.Enabled() {
		location, err := r.uploader.UploadDir(ctx, caseData.Dir)
		if err != nil {
			util.Warnf("case upload failed dir=%s err=%v", caseData.Dir, err)
		} else {
			summary.UploadLocation = location
		}
	}
	if summary.ArchiveName != "" || summary.UploadLocation != "" {
		if err := r.reporter.WriteSummary(caseData, summary); err != nil {
			return caseData, err
		}
	}
	return caseData, nil
}

// warnWrite logs a failed artifact write. The case is still kept so the
// summary and the remaining files stay usable.
func (r *Runner) warnWrite(caseData report.Case, name string, err error) {
	if err == nil {
		return
	}
	util.Warnf("write %s failed worker=%d dir=%s err=%v", name, r.worker, caseData.Dir, err)
}
