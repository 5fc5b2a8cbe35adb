// Package render presents the shape of a red-black tree: node tables,
// colored drawings, YAML reports and interactive HTML charts.
package render

import (
	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

// Lookup is the outcome of one Search.
type Lookup struct {
	Key   int  `json:"key"             yaml:"key"`
	Value int  `json:"value,omitempty" yaml:"value,omitempty"`
	Found bool `json:"found"           yaml:"found"`
}

// StatsView mirrors [rbtree.Stats] with stable field names.
type StatsView struct {
	Inserts         int64 `json:"inserts"          yaml:"inserts"`
	FixupIterations int64 `json:"fixup_iterations" yaml:"fixup_iterations"`
	Recolors        int64 `json:"recolors"         yaml:"recolors"`
	Rotations       int64 `json:"rotations"        yaml:"rotations"`
	CaseA           int64 `json:"case_a"           yaml:"case_a"`
	CaseB           int64 `json:"case_b"           yaml:"case_b"`
	CaseC           int64 `json:"case_c"           yaml:"case_c"`
}

// Report is everything the demo and insert commands print about a tree.
type Report struct {
	Tree        *rbtree.Shape `json:"tree,omitempty"       yaml:"tree,omitempty"`
	Name        string        `json:"name"                 yaml:"name"`
	RootColor   string        `json:"root_color"           yaml:"root_color"`
	Violation   string        `json:"violation,omitempty"  yaml:"violation,omitempty"`
	Lookups     []Lookup      `json:"lookups,omitempty"    yaml:"lookups,omitempty"`
	Stats       StatsView     `json:"stats"                yaml:"stats"`
	Size        int           `json:"size"                 yaml:"size"`
	Height      int           `json:"height"               yaml:"height"`
	BlackHeight int           `json:"black_height"         yaml:"black_height"`
	Valid       bool          `json:"valid"                yaml:"valid"`
}

// NewReport inspects tree and runs a Search for every key of lookups.
func NewReport(name string, tree *rbtree.Tree, lookups ...int) Report {
	stats := tree.Stats()

	report := Report{
		Tree:        tree.Shape(),
		Name:        name,
		RootColor:   tree.RootColor().String(),
		Size:        tree.Len(),
		Height:      tree.Height(),
		BlackHeight: tree.BlackHeight(),
		Valid:       true,
		Stats: StatsView{
			Inserts:         stats.Inserts,
			FixupIterations: stats.FixupIterations,
			Recolors:        stats.Recolors,
			Rotations:       stats.Rotations,
			CaseA:           stats.CaseA,
			CaseB:           stats.CaseB,
			CaseC:           stats.CaseC,
		},
	}

	if err := tree.Validate(); err != nil {
		report.Valid = false
		report.Violation = err.Error()
	}

	for _, key := range lookups {
		value, found := tree.Search(key)
		report.Lookups = append(report.Lookups, Lookup{Key: key, Value: value, Found: found})
	}

	return report
}
