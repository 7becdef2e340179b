package oracle

// PredicateVariants holds a predicate and its two ternary complements. For
// any row exactly one of Predicate, Negated and IsNull evaluates to TRUE.
type PredicateVariants[E any] struct {
	Predicate E
	Negated   E
	IsNull    E
}

// BuildVariants derives NOT e and e IS NULL from e.
func BuildVariants[E any](caps ExprCapabilities[E], e E) PredicateVariants[E] {
	return PredicateVariants[E]{
		Predicate: e,
		Negated:   caps.Not(e),
		IsNull:    caps.IsNull(e),
	}
}
