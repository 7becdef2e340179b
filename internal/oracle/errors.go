package oracle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"tlpwhere/internal/config"
)

var (
	// ErrSkipped marks a cycle that ended without a verdict because the
	// engine raised an expected error.
	ErrSkipped = errors.New("tlp where cycle skipped")
	// ErrNilDependency reports a missing collaborator at construction time.
	ErrNilDependency = errors.New("tlp where oracle: nil dependency")
)

// ExecError is an engine error that did not match the expected errors.
type ExecError struct {
	SQL string
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("execute %q: %v", e.SQL, e.Err)
}

// Unwrap returns the driver error.
func (e *ExecError) Unwrap() error { return e.Err }

// ComparisonError reports that the combined partitions differ from the reference.
type ComparisonError struct {
	ReferenceSQL string
	Statements   []string
	Expected     []string
	Actual       []string
	Discipline   Discipline
	Reason       string
}

func (e *ComparisonError) Error() string {
	return fmt.Sprintf("tlp where mismatch (%s): %s; reference %q", e.Discipline, e.Reason, e.ReferenceSQL)
}

// ExpectedErrors classifies engine errors that are benign for the oracle.
// It is immutable after construction and safe to share between workers.
type ExpectedErrors struct {
	codes    map[uint16]struct{}
	messages []string
	patterns []*regexp.Regexp
}

// NewExpectedErrors builds a classifier from MySQL error numbers, message
// substrings and regular expressions.
func NewExpectedErrors(codes []uint16, messages []string, patterns []string) (*ExpectedErrors, error) {
	e := &ExpectedErrors{codes: make(map[uint16]struct{}, len(codes))}
	for _, code := range codes {
		e.codes[code] = struct{}{}
	}
	for _, msg := range messages {
		if msg = strings.TrimSpace(msg); msg != "" {
			e.messages = append(e.messages, msg)
		}
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "compile expected error pattern %q", p)
		}
		e.patterns = append(e.patterns, re)
	}
	return e, nil
}

// ExpectedErrorsFromConfig builds a classifier from configuration.
func ExpectedErrorsFromConfig(cfg config.ExpectedErrorsConfig) (*ExpectedErrors, error) {
	return NewExpectedErrors(cfg.Codes, cfg.Messages, cfg.Patterns)
}

// Matches reports whether err is an expected engine error.
func (e *ExpectedErrors) Matches(err error) bool {
	if e == nil || err == nil {
		return false
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if _, ok := e.codes[mysqlErr.Number]; ok {
			return true
		}
	}
	msg := err.Error()
	for _, m := range e.messages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	for _, re := range e.patterns {
		if re.MatchString(msg) {
			return true
		}
	}
	return false
}

func skipped(stage string, cause error) error {
	return errors.Wrapf(ErrSkipped, "%s: %v", stage, cause)
}
