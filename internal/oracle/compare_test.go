package oracle

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestCheckEquivalence(t *testing.T) {
	cases := []struct {
		name       string
		expected   []string
		actual     []string
		discipline Discipline
		reason     string
	}{
		{"multiset reorder", []string{"1", "NULL", "3"}, []string{"3", "1", "NULL"}, DisciplineMultiset, ""},
		{"multiset duplicate", []string{"1", "1"}, []string{"1"}, DisciplineMultiset, "row count 2 != 1; missing [1]"},
		{"multiset swap", []string{"1", "2"}, []string{"1", "3"}, DisciplineMultiset, "missing [2], unexpected [3]"},
		{"ordered equal", []string{"NULL", "1"}, []string{"NULL", "1"}, DisciplineOrdered, ""},
		{"ordered reorder", []string{"NULL", "1"}, []string{"1", "NULL"}, DisciplineOrdered, `row 0: "NULL" != "1"`},
		{"set overcount", []string{"1", "2"}, []string{"2", "1", "2", "2"}, DisciplineSet, ""},
		{"set missing", []string{"1", "2"}, []string{"2"}, DisciplineSet, "missing [1]"},
		{"empty", nil, []string{}, DisciplineMultiset, ""},
	}
	for _, tc := range cases {
		err := CheckEquivalence("SELECT 1", []string{"q"}, tc.expected, tc.actual, tc.discipline)
		if tc.reason == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		var cmp *ComparisonError
		if !errors.As(err, &cmp) {
			t.Fatalf("%s: expected comparison error, got %v", tc.name, err)
		}
		if cmp.Reason != tc.reason || cmp.Discipline != tc.discipline {
			t.Fatalf("%s: unexpected reason %q (%s)", tc.name, cmp.Reason, cmp.Discipline)
		}
	}
}

func TestDiffReasonTruncates(t *testing.T) {
	expected := []string{"a", "b", "c", "d", "e", "f", "g"}
	err := CheckEquivalence("SELECT 1", nil, expected, nil, DisciplineSet)
	var cmp *ComparisonError
	if !errors.As(err, &cmp) || !strings.Contains(cmp.Reason, "... 2 more") {
		t.Fatalf("expected truncated reason, got %v", err)
	}
}

func TestPartitionSetStatements(t *testing.T) {
	set := PartitionSet{Queries: []string{"q1", "q2", "q3"}}
	if got := set.Statements(); len(got) != 3 || got[2] != "q3" {
		t.Fatalf("unexpected statements %v", got)
	}
	set.UnionAll = true
	if got := set.Statements(); len(got) != 1 || got[0] != "q1 UNION ALL q2 UNION ALL q3" {
		t.Fatalf("unexpected union statement %v", got)
	}
	set.OrderKeys = "f0 DESC, f1"
	want := "SELECT * FROM (q1 UNION ALL q2 UNION ALL q3) AS tlp_u ORDER BY f0 DESC, f1"
	if got := set.Statements(); len(got) != 1 || got[0] != want {
		t.Fatalf("unexpected ordered statement %v", got)
	}
}
