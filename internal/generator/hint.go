package generator

import (
	"fmt"
	"strings"

	"tlpwhere/internal/schema"
	"tlpwhere/internal/util"
)

// Hint is a TiDB optimizer hint placed after SELECT.
type Hint struct {
	Name string
	Args []string
}

// Build emits NAME(arg, ...).
func (h Hint) Build(b *SQLBuilder) {
	b.Write(h.Name)
	b.Write("(")
	b.Write(strings.Join(h.Args, ", "))
	b.Write(")")
}

// Hint names understood by TiDB.
const (
	HintMergeJoin     = "MERGE_JOIN"
	HintInlJoin       = "INL_JOIN"
	HintInlHashJoin   = "INL_HASH_JOIN"
	HintInlMergeJoin  = "INL_MERGE_JOIN"
	HintHashJoin      = "HASH_JOIN"
	HintHashAgg       = "HASH_AGG"
	HintStreamAgg     = "STREAM_AGG"
	HintUseIndex      = "USE_INDEX"
	HintIgnoreIndex   = "IGNORE_INDEX"
	HintAggToCop      = "AGG_TO_COP"
	HintUseIndexMerge = "USE_INDEX_MERGE"
	HintNoIndexMerge  = "NO_INDEX_MERGE"
	HintUseToja       = "USE_TOJA"
)

// HintNames lists every hint kind the generator may draw.
var HintNames = []string{
	HintMergeJoin, HintInlJoin, HintInlHashJoin, HintInlMergeJoin, HintHashJoin,
	HintHashAgg, HintStreamAgg, HintUseIndex, HintIgnoreIndex, HintAggToCop,
	HintUseIndexMerge, HintNoIndexMerge, HintUseToja,
}

// GenerateHint picks one hint for the table group. ok is false when the drawn
// hint cannot be applied; the query is then issued without a hint.
func (g *Generator) GenerateHint(group schema.TableGroup) (Hint, bool) {
	name := util.Pick(g.Rand, HintNames)
	switch name {
	case HintMergeJoin, HintInlJoin, HintInlHashJoin, HintInlMergeJoin, HintHashJoin:
		return Hint{Name: name, Args: util.NonEmptySubset(g.Rand, group.Names())}, true
	case HintHashAgg, HintStreamAgg, HintAggToCop, HintNoIndexMerge:
		return Hint{Name: name}, true
	case HintUseIndex, HintIgnoreIndex:
		return g.indexHint(name, group)
	case HintUseIndexMerge:
		// Known to produce wrong results in TiDB (pingcap/tidb#15991, #15992, #15994).
		return Hint{}, false
	case HintUseToja:
		return Hint{Name: name, Args: []string{fmt.Sprintf("%t", g.Rand.Intn(2) == 0)}}, true
	default:
		return Hint{}, false
	}
}

func (g *Generator) indexHint(name string, group schema.TableGroup) (Hint, bool) {
	var withIndexes []schema.Table
	for _, tbl := range group.Tables {
		if len(tbl.Indexes) > 0 {
			withIndexes = append(withIndexes, tbl)
		}
	}
	if len(withIndexes) == 0 {
		return Hint{}, false
	}
	tbl := util.Pick(g.Rand, withIndexes)
	args := []string{tbl.Name}
	for _, idx := range util.NonEmptySubset(g.Rand, tbl.Indexes) {
		args = append(args, idx.Name)
	}
	return Hint{Name: name, Args: args}, true
}
