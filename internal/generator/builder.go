package generator

import (
	"strings"

	"tlpwhere/internal/config"
)

// SQLBuilder accumulates SQL text for one dialect.
type SQLBuilder struct {
	sb      strings.Builder
	Dialect config.Dialect
}

// Write appends raw SQL text to the builder.
func (b *SQLBuilder) Write(s string) {
	b.sb.WriteString(s)
}

// String returns the assembled SQL statement.
func (b *SQLBuilder) String() string {
	return b.sb.String()
}

// BuildString renders a single node for a dialect.
func BuildString(dialect config.Dialect, node interface{ Build(*SQLBuilder) }) string {
	b := SQLBuilder{Dialect: dialect}
	node.Build(&b)
	return b.String()
}
