package generator

// Generator tuning constants are centralized here to avoid scattering magic numbers.
// All values are expressed as percentages or small caps unless otherwise noted.

const (
	// InsertRowCountMax is the maximum number of rows in a single INSERT.
	InsertRowCountMax = 3
	// ColumnNullableProb is the chance to mark a column nullable.
	ColumnNullableProb = 60
	// ColumnIndexProb is the chance to index a column when a table is created.
	ColumnIndexProb = 30
	// CompositeIndexProb is the chance to add a two-column index per table.
	CompositeIndexProb = 10
)

const (
	// SelectListMax is the maximum number of projected columns.
	SelectListMax = 4
	// ProjectionExprProb is the chance a projected item is an expression over a column.
	ProjectionExprProb = 15
	// CrossJoinProb is the chance a join is a CROSS JOIN.
	CrossJoinProb = 10
	// LeftJoinProb is the chance a non-cross join is a LEFT JOIN.
	LeftJoinProb = 40
	// OrderByDescProb is the chance an ORDER BY key is descending.
	OrderByDescProb = 30
	// OrderByExtraKeyProb is the chance to add each further projected alias as a key.
	OrderByExtraKeyProb = 40
)

const (
	// PredicateLeafProb is the chance to stop recursing before max depth.
	PredicateLeafProb = 35
	// PredicateInListMax is the maximum IN list size.
	PredicateInListMax = 4
	// ColumnColumnCompareProb is the chance to compare two columns instead of a column and a literal.
	ColumnColumnCompareProb = 25
	// ScalarExprColumnProb is the chance a scalar leaf is a column.
	ScalarExprColumnProb = 75
	// ScalarExprWrapProb is the chance to wrap a column in arithmetic or a function.
	ScalarExprWrapProb = 20
	// CaseExprProb is the chance a wrapped scalar becomes a CASE expression.
	CaseExprProb = 10
)

const (
	// NumericLiteralMax bounds generated integer literals (exclusive, symmetric).
	NumericLiteralMax = 100
	// FloatLiteralScale and FloatLiteralDiv produce two-decimal literals.
	FloatLiteralScale = 10000
	FloatLiteralDiv   = 100
	// StringLiteralMax bounds the numeric suffix of string literals.
	StringLiteralMax = 20
	// DateYearMin and DateYearSpan bound date literals.
	DateYearMin  = 2020
	DateYearSpan = 5
	// BoolLiteralTrueProb is the chance a boolean literal is true.
	BoolLiteralTrueProb = 50
)
