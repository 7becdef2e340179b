// Package validator checks generated statements with the TiDB parser before
// they reach a MySQL-compatible engine.
package validator

import (
	"github.com/pingcap/tidb/pkg/parser"
	_ "github.com/pingcap/tidb/pkg/types/parser_driver" // Register TiDB parser driver.
	"github.com/pkg/errors"
)

// Validator wraps the TiDB parser. It is not safe for concurrent use; each
// worker owns one.
type Validator struct {
	parser *parser.Parser
}

// New returns a Validator instance.
func New() *Validator {
	return &Validator{parser: parser.New()}
}

// Validate parses a single SQL statement and returns any syntax error.
func (v *Validator) Validate(sql string) error {
	stmts, _, err := v.parser.Parse(sql, "", "")
	if err != nil {
		return err
	}
	if len(stmts) != 1 {
		return errors.Errorf("expected one statement, got %d", len(stmts))
	}
	return nil
}
