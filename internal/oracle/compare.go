package oracle

import (
	"fmt"
	"sort"
	"strings"
)

const diffSampleMax = 5

// CheckEquivalence compares the reference rows with the combined rows under
// the given discipline. It returns a *ComparisonError on mismatch.
func CheckEquivalence(referenceSQL string, statements []string, expected, actual []string, d Discipline) error {
	reason, ok := compareRows(expected, actual, d)
	if ok {
		return nil
	}
	return &ComparisonError{
		ReferenceSQL: referenceSQL,
		Statements:   append([]string{}, statements...),
		Expected:     append([]string{}, expected...),
		Actual:       append([]string{}, actual...),
		Discipline:   d,
		Reason:       reason,
	}
}

func compareRows(expected, actual []string, d Discipline) (string, bool) {
	switch d {
	case DisciplineOrdered:
		if len(expected) != len(actual) {
			return fmt.Sprintf("row count %d != %d", len(expected), len(actual)), false
		}
		for i := range expected {
			if expected[i] != actual[i] {
				return fmt.Sprintf("row %d: %q != %q", i, expected[i], actual[i]), false
			}
		}
		return "", true
	case DisciplineSet:
		missing, extra := diffCounts(distinctCounts(expected), distinctCounts(actual))
		if len(missing) == 0 && len(extra) == 0 {
			return "", true
		}
		return diffReason(missing, extra), false
	default:
		if len(expected) != len(actual) {
			missing, extra := diffCounts(counts(expected), counts(actual))
			return fmt.Sprintf("row count %d != %d; %s", len(expected), len(actual), diffReason(missing, extra)), false
		}
		missing, extra := diffCounts(counts(expected), counts(actual))
		if len(missing) == 0 && len(extra) == 0 {
			return "", true
		}
		return diffReason(missing, extra), false
	}
}

func counts(rows []string) map[string]int {
	m := make(map[string]int, len(rows))
	for _, r := range rows {
		m[r]++
	}
	return m
}

func distinctCounts(rows []string) map[string]int {
	m := make(map[string]int, len(rows))
	for _, r := range rows {
		m[r] = 1
	}
	return m
}

// diffCounts returns values over-represented in want (missing) and in got (extra).
func diffCounts(want, got map[string]int) (missing, extra []string) {
	for v, n := range want {
		if got[v] < n {
			missing = append(missing, v)
		}
	}
	for v, n := range got {
		if want[v] < n {
			extra = append(extra, v)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

func diffReason(missing, extra []string) string {
	parts := make([]string, 0, 2)
	if len(missing) > 0 {
		parts = append(parts, "missing "+sample(missing))
	}
	if len(extra) > 0 {
		parts = append(parts, "unexpected "+sample(extra))
	}
	return strings.Join(parts, ", ")
}

func sample(values []string) string {
	if len(values) <= diffSampleMax {
		return "[" + strings.Join(values, ", ") + "]"
	}
	return fmt.Sprintf("[%s, ... %d more]", strings.Join(values[:diffSampleMax], ", "), len(values)-diffSampleMax)
}
