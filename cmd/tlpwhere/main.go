package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"tlpwhere/internal/config"
	"tlpwhere/internal/db"
	"tlpwhere/internal/runner"
	"tlpwhere/internal/util"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	flush := util.InitLogging(util.LogOptions{
		Level:      cfg.Logging.Level,
		Verbose:    cfg.Logging.Verbose,
		File:       cfg.Logging.LogFile,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer flush()

	util.Infof("starting tlpwhere with %d worker(s)", cfg.Workers)
	if data, err := yaml.Marshal(&cfg); err == nil {
		util.Highlightf("config:\n%s", string(data))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			return runWorker(gctx, cfg, worker)
		})
	}
	if err := g.Wait(); err != nil {
		util.Errorf("run failed: %v", err)
		flush()
		os.Exit(1)
	}
}

func runWorker(ctx context.Context, cfg config.Config, worker int) error {
	workerCfg := cfg
	workerCfg.Seed = cfg.Seed + int64(worker)
	if cfg.Workers > 1 {
		workerCfg.Database = fmt.Sprintf("%s_w%d", cfg.Database, worker)
	}
	switch cfg.Dialect {
	case config.DialectSQLite:
		if cfg.Workers > 1 {
			workerCfg.DSN = sqliteWorkerDSN(cfg.DSN, worker)
		}
	default:
		if err := db.EnsureDatabase(ctx, cfg.Dialect, cfg.DSN, workerCfg.Database); err != nil {
			return err
		}
		if workerCfg.Database != "" {
			workerCfg.DSN = config.UpdateDatabaseInDSN(cfg.DSN, workerCfg.Database)
		}
	}

	exec, err := db.Open(workerCfg.Dialect, workerCfg.DSN)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(exec, "worker db")
	util.Infof("worker %d using database %s seed=%d", worker, workerCfg.Database, workerCfg.Seed)
	r, err := runner.New(workerCfg, exec, worker)
	if err != nil {
		return err
	}
	return r.Run(ctx)
}

// sqliteWorkerDSN gives each worker its own database file or shared-cache
// memory database.
func sqliteWorkerDSN(dsn string, worker int) string {
	path, query, hasQuery := strings.Cut(dsn, "?")
	path = fmt.Sprintf("%s_w%d", path, worker)
	if hasQuery {
		return path + "?" + query
	}
	return path
}
