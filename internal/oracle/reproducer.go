package oracle

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Reproducer captures one cycle so it can be replayed against the engine.
type Reproducer struct {
	ReferenceSQL string       `json:"reference_sql"`
	Partitions   PartitionSet `json:"partitions"`
	Expected     []string     `json:"expected"`
	Discipline   Discipline   `json:"discipline"`

	errs *ExpectedErrors
}

func newReproducer(referenceSQL string, set PartitionSet, expected []string, d Discipline, errs *ExpectedErrors) *Reproducer {
	return &Reproducer{
		ReferenceSQL: referenceSQL,
		Partitions:   PartitionSet{Queries: append([]string{}, set.Queries...), OrderKeys: set.OrderKeys, UnionAll: set.UnionAll},
		Expected:     append([]string{}, expected...),
		Discipline:   d,
		errs:         errs,
	}
}

// Bind attaches the expected-error classifier used during replay.
func (r *Reproducer) Bind(errs *ExpectedErrors) *Reproducer {
	r.errs = errs
	return r
}

// StillTriggers re-runs the partitions and reports whether the stored
// reference rows still disagree with them. Any execution failure, including
// an expected error, yields false.
func (r *Reproducer) StillTriggers(ctx context.Context, exec Executor) bool {
	if r == nil || exec == nil {
		return false
	}
	combined, err := Combine(ctx, exec, r.Partitions, r.errs)
	if err != nil || len(combined.Dropped) > 0 {
		return false
	}
	err = CheckEquivalence(r.ReferenceSQL, combined.Statements, r.Expected, combined.Rows, r.Discipline)
	var cmp *ComparisonError
	return errors.As(err, &cmp)
}

// Save writes the reproducer as JSON.
func (r *Reproducer) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal reproducer")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// LoadReproducer reads a reproducer written by Save and binds errs to it.
func LoadReproducer(path string, errs *ExpectedErrors) (*Reproducer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var r Reproducer
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if len(r.Partitions.Queries) == 0 {
		return nil, errors.Errorf("reproducer %s has no partition queries", path)
	}
	if r.Discipline == "" {
		r.Discipline = DisciplineMultiset
	}
	return r.Bind(errs), nil
}
