package runner

import (
	"strings"
	"time"

	"tlpwhere/internal/util"
)

// Stats counts runner activity.
type Stats struct {
	SQLTotal      int64
	SQLValid      int64
	Cycles        int64
	Clean         int64
	Skipped       int64
	Discrepancies int64
	Crashes       int64
	Flaky         int64
	InvalidSQL    int64
	ExecErrors    int64
}

func (s Stats) sub(prev Stats) Stats {
	return Stats{
		SQLTotal:      s.SQLTotal - prev.SQLTotal,
		SQLValid:      s.SQLValid - prev.SQLValid,
		Cycles:        s.Cycles - prev.Cycles,
		Clean:         s.Clean - prev.Clean,
		Skipped:       s.Skipped - prev.Skipped,
		Discrepancies: s.Discrepancies - prev.Discrepancies,
		Crashes:       s.Crashes - prev.Crashes,
		Flaky:         s.Flaky - prev.Flaky,
		InvalidSQL:    s.InvalidSQL - prev.InvalidSQL,
		ExecErrors:    s.ExecErrors - prev.ExecErrors,
	}
}

// Stats returns a snapshot of the counters.
func (r *Runner) Stats() Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

func (r *Runner) observeSQL(sql string, err error) {
	if strings.TrimSpace(sql) == "" {
		return
	}
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats.SQLTotal++
	if err == nil {
		r.stats.SQLValid++
	}
}

func (r *Runner) observeOutcome(o outcome) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats.Cycles++
	switch o {
	case outcomeClean:
		r.stats.Clean++
	case outcomeSkipped:
		r.stats.Skipped++
	case outcomeDiscrepancy:
		r.stats.Discrepancies++
	case outcomeCrash:
		r.stats.Crashes++
	case outcomeInvalidSQL:
		r.stats.InvalidSQL++
	default:
		r.stats.ExecErrors++
	}
}

func (r *Runner) observeFlaky() {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats.Flaky++
}

func (r *Runner) startStatsLogger() func() {
	interval := time.Duration(r.cfg.Logging.ReportIntervalSeconds) * time.Second
	if interval <= 0 {
		return func() {}
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		var last Stats
		for {
			select {
			case <-ticker.C:
				current := r.Stats()
				if delta := current.sub(last); delta.SQLTotal > 0 {
					r.logStats("last interval", delta)
				}
				last = current
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}

func (r *Runner) logStats(label string, s Stats) {
	util.Infof("worker=%d %s: sql_valid/total=%d/%d cycles=%d clean=%d skipped=%d discrepancies=%d crashes=%d flaky=%d invalid_sql=%d exec_errors=%d",
		r.worker, label, s.SQLValid, s.SQLTotal, s.Cycles, s.Clean, s.Skipped, s.Discrepancies, s.Crashes, s.Flaky, s.InvalidSQL, s.ExecErrors)
	if s.Cycles > 0 && s.Skipped*2 > s.Cycles {
		util.Warnf("worker=%d %s: more than half of the cycles were skipped", r.worker, label)
	}
}
