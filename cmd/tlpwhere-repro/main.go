package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"tlpwhere/internal/config"
	"tlpwhere/internal/repro"
)

func main() {
	caseDir := flag.String("case_dir", "", "path to case directory")
	dsn := flag.String("dsn", "", "database DSN")
	database := flag.String("database", "tlpwhere_repro", "database name for reproduction (mysql only)")
	dialect := flag.String("dialect", string(config.DialectMySQL), "sql dialect: mysql or sqlite")
	configPath := flag.String("config", "", "optional config file providing expected errors")
	flag.Parse()

	if *caseDir == "" || *dsn == "" {
		fmt.Fprintln(os.Stderr, "case_dir and dsn are required")
		flag.Usage()
		os.Exit(1)
	}

	opts := repro.Options{
		CaseDir:  *caseDir,
		DSN:      *dsn,
		Database: *database,
		Dialect:  config.Dialect(*dialect),
	}
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		opts.ExpectedErrors = cfg.Oracle.ExpectedErrors
	}
	reproduces, err := repro.Run(context.Background(), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "repro failed: %v\n", err)
		os.Exit(1)
	}
	if !reproduces {
		os.Exit(2)
	}
}
