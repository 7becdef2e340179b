package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Dialect names the SQL engine family under test.
type Dialect string

const (
	// DialectMySQL targets MySQL-compatible engines such as TiDB.
	DialectMySQL Dialect = "mysql"
	// DialectSQLite targets SQLite.
	DialectSQLite Dialect = "sqlite"
)

// PartitionMode selects how many predicates the oracle partitions on.
type PartitionMode string

const (
	// PartitionSingle partitions on one predicate (three queries).
	PartitionSingle PartitionMode = "single"
	// PartitionDual partitions on two predicates (five queries).
	PartitionDual PartitionMode = "dual"
)

// Config captures all runtime options for the fuzz runner.
type Config struct {
	DSN                string        `yaml:"dsn"`
	Database           string        `yaml:"database"`
	Dialect            Dialect       `yaml:"dialect"`
	Seed               int64         `yaml:"seed"`
	Iterations         int           `yaml:"iterations"`
	Workers            int           `yaml:"workers"`
	MaxTables          int           `yaml:"max_tables"`
	MaxColumns         int           `yaml:"max_columns"`
	MaxJoinTables      int           `yaml:"max_join_tables"`
	MaxRowsPerTable    int           `yaml:"max_rows_per_table"`
	MaxDataDumpRows    int           `yaml:"max_data_dump_rows"`
	StatementTimeoutMs int           `yaml:"statement_timeout_ms"`
	Features           Features      `yaml:"features"`
	Weights            Weights       `yaml:"weights"`
	Oracle             OracleConfig  `yaml:"oracle"`
	Report             ReportConfig  `yaml:"report"`
	PlanReplayer       PlanReplayer  `yaml:"plan_replayer"`
	Storage            StorageConfig `yaml:"storage"`
	Logging            Logging       `yaml:"logging"`
}

// PlanReplayer controls capturing TiDB plan replayer bundles for cases.
type PlanReplayer struct {
	Enabled             bool   `yaml:"enabled"`
	DownloadURLTemplate string `yaml:"download_url_template"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	MaxDownloadBytes    int64  `yaml:"max_download_bytes"`
}

// Features toggles SQL capabilities in generation.
type Features struct {
	Joins        bool `yaml:"joins"`
	Indexes      bool `yaml:"indexes"`
	Hints        bool `yaml:"hints"`
	NullLiterals bool `yaml:"null_literals"`
}

// Weights controls weighted selections for actions and features.
type Weights struct {
	Actions  ActionWeights  `yaml:"actions"`
	DML      DMLWeights     `yaml:"dml"`
	Features FeatureWeights `yaml:"features"`
}

// ActionWeights sets probabilities for DDL/DML/Query.
type ActionWeights struct {
	DDL   int `yaml:"ddl"`
	DML   int `yaml:"dml"`
	Query int `yaml:"query"`
}

// DMLWeights sets probabilities for DML operations.
type DMLWeights struct {
	Insert int `yaml:"insert"`
	Update int `yaml:"update"`
	Delete int `yaml:"delete"`
}

// FeatureWeights sets feature generation weights, in percent unless noted.
type FeatureWeights struct {
	JoinCount int `yaml:"join_count"`
	HintProb  int `yaml:"hint_prob"`
	NullProb  int `yaml:"null_prob"`
	NotProb   int `yaml:"not_prob"`
	OrProb    int `yaml:"or_prob"`
}

// OracleConfig holds TLP WHERE oracle settings.
type OracleConfig struct {
	PartitionMode     PartitionMode        `yaml:"partition_mode"`
	OrderByProb       int                  `yaml:"order_by_prob"`
	UnionAll          bool                 `yaml:"union_all"`
	MaxPredicateDepth int                  `yaml:"max_predicate_depth"`
	VerifyReproducer  bool                 `yaml:"verify_reproducer"`
	ExpectedErrors    ExpectedErrorsConfig `yaml:"expected_errors"`
}

// ExpectedErrorsConfig lists engine errors that are benign for the oracle.
type ExpectedErrorsConfig struct {
	Codes    []uint16 `yaml:"codes"`
	Messages []string `yaml:"messages"`
	Patterns []string `yaml:"patterns"`
}

// ReportConfig controls case output.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`
	Archive   bool   `yaml:"archive"`
}

// Logging controls stdout and file logging behavior.
type Logging struct {
	Verbose               bool   `yaml:"verbose"`
	Level                 string `yaml:"level"`
	ReportIntervalSeconds int    `yaml:"report_interval_seconds"`
	LogFile               string `yaml:"log_file"`
	MaxSizeMB             int    `yaml:"max_size_mb"`
	MaxBackups            int    `yaml:"max_backups"`
	MaxAgeDays            int    `yaml:"max_age_days"`
}

// StorageConfig holds external storage settings.
type StorageConfig struct {
	S3  S3Config  `yaml:"s3"`
	GCS GCSConfig `yaml:"gcs"`
}

// CloudEnabled reports whether any cloud storage backend is enabled.
func (s StorageConfig) CloudEnabled() bool {
	return s.GCS.Enabled || s.S3.Enabled
}

// S3Config configures S3 uploads (legacy and S3-compatible endpoints).
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// GCSConfig configures GCS uploads.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	if err := normalizeConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

const (
	orderByProbDefault       = 1
	maxPredicateDepthDefault = 3
	sqliteDSNDefault         = "file:tlpwhere?mode=memory&cache=shared"
)

// Default returns the normalized default configuration.
func Default() Config {
	cfg := defaultConfig()
	_ = normalizeConfig(&cfg)
	return cfg
}

func normalizeConfig(cfg *Config) error {
	cfg.Dialect = Dialect(strings.ToLower(strings.TrimSpace(string(cfg.Dialect))))
	switch cfg.Dialect {
	case "":
		cfg.Dialect = DialectMySQL
	case DialectMySQL, DialectSQLite:
	default:
		return errors.Errorf("unsupported dialect %q", cfg.Dialect)
	}
	cfg.Oracle.PartitionMode = PartitionMode(strings.ToLower(strings.TrimSpace(string(cfg.Oracle.PartitionMode))))
	switch cfg.Oracle.PartitionMode {
	case "":
		cfg.Oracle.PartitionMode = PartitionDual
	case PartitionSingle, PartitionDual:
	default:
		return errors.Errorf("unsupported partition_mode %q", cfg.Oracle.PartitionMode)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxTables <= 0 {
		cfg.MaxTables = 1
	}
	if cfg.MaxColumns <= 0 {
		cfg.MaxColumns = 1
	}
	if cfg.MaxJoinTables > 0 && cfg.Weights.Features.JoinCount > cfg.MaxJoinTables {
		cfg.Weights.Features.JoinCount = cfg.MaxJoinTables
	}
	if cfg.Oracle.OrderByProb < 0 {
		cfg.Oracle.OrderByProb = 0
	}
	if cfg.Oracle.OrderByProb > 100 {
		cfg.Oracle.OrderByProb = 100
	}
	if cfg.Oracle.MaxPredicateDepth <= 0 {
		cfg.Oracle.MaxPredicateDepth = maxPredicateDepthDefault
	}
	if cfg.Dialect == DialectSQLite {
		// SQLite has no optimizer hints of the supported form.
		cfg.Features.Hints = false
		cfg.PlanReplayer.Enabled = false
		if cfg.DSN == "" || strings.Contains(cfg.DSN, "@tcp(") {
			cfg.DSN = sqliteDSNDefault
		}
	} else if cfg.Database != "" {
		cfg.DSN = ensureDatabaseInDSN(cfg.DSN, cfg.Database)
	}
	if len(cfg.Oracle.ExpectedErrors.Codes) == 0 && len(cfg.Oracle.ExpectedErrors.Messages) == 0 && len(cfg.Oracle.ExpectedErrors.Patterns) == 0 {
		cfg.Oracle.ExpectedErrors = DefaultExpectedErrors(cfg.Dialect)
	}
	return nil
}

// DefaultExpectedErrors returns the benign error set for a dialect.
func DefaultExpectedErrors(d Dialect) ExpectedErrorsConfig {
	switch d {
	case DialectSQLite:
		return ExpectedErrorsConfig{
			Messages: []string{
				"integer overflow",
				"ambiguous column name",
				"parser stack overflow",
				"misuse of aggregate",
			},
		}
	default:
		return ExpectedErrorsConfig{
			// Truncation, out-of-range, division and conversion errors depend
			// on evaluation order and may surface in one partition only.
			Codes: []uint16{1052, 1292, 1365, 1366, 1406, 1690, 3156, 8120},
			Messages: []string{
				"Data truncation",
				"BIGINT UNSIGNED value is out of range",
			},
			Patterns: []string{
				`(?i)value is out of range in`,
			},
		}
	}
}

func ensureDatabaseInDSN(dsn string, dbName string) string {
	if dsn == "" || dbName == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
	}
	afterSlash := dsn[slash+1:]
	if query >= 0 {
		afterSlash = dsn[slash+1 : query]
	}
	if strings.TrimSpace(afterSlash) != "" {
		return dsn
	}
	if query >= 0 {
		return dsn[:slash+1] + dbName + dsn[query:]
	}
	return dsn + dbName
}

// UpdateDatabaseInDSN replaces the database name in the DSN path with dbName.
// It preserves query parameters, if any.
func UpdateDatabaseInDSN(dsn string, dbName string) string {
	if dsn == "" || dbName == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
		return dsn[:slash+1] + dbName + dsn[query:]
	}
	return dsn[:slash+1] + dbName
}

// AdminDSN strips the database name from a DSN while preserving query parameters.
func AdminDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
		return dsn[:slash+1] + dsn[query:]
	}
	return dsn[:slash+1]
}

func defaultConfig() Config {
	return Config{
		DSN:                "root:@tcp(127.0.0.1:4000)/",
		Database:           "tlpwhere_fuzz",
		Dialect:            DialectMySQL,
		Iterations:         1000,
		Workers:            1,
		MaxTables:          4,
		MaxColumns:         6,
		MaxJoinTables:      3,
		MaxRowsPerTable:    30,
		MaxDataDumpRows:    50,
		StatementTimeoutMs: 15000,
		Features: Features{
			Joins:        true,
			Indexes:      true,
			Hints:        true,
			NullLiterals: true,
		},
		Weights: Weights{
			Actions:  ActionWeights{DDL: 1, DML: 3, Query: 6},
			DML:      DMLWeights{Insert: 3, Update: 1, Delete: 1},
			Features: FeatureWeights{JoinCount: 2, HintProb: 30, NullProb: 15, NotProb: 15, OrProb: 30},
		},
		Oracle: OracleConfig{
			PartitionMode:     PartitionDual,
			OrderByProb:       orderByProbDefault,
			MaxPredicateDepth: maxPredicateDepthDefault,
			VerifyReproducer:  true,
		},
		Report: ReportConfig{OutputDir: "reports"},
		PlanReplayer: PlanReplayer{
			DownloadURLTemplate: "http://127.0.0.1:10080/plan_replayer/dump/%s.zip",
			TimeoutSeconds:      30,
			MaxDownloadBytes:    50 << 20,
		},
		Logging: Logging{
			Level:                 "info",
			ReportIntervalSeconds: 30,
			LogFile:               "logs/tlpwhere.log",
			MaxSizeMB:             64,
			MaxBackups:            5,
			MaxAgeDays:            7,
		},
	}
}
