package schema

import (
	"sort"

	"github.com/spektr-org/crashlens/engine"
)

// ============================================================================
// PROFILE — Per-column statistics of a loaded table
// ============================================================================
// Used by the CLI to describe a data directory before running questions:
// null counts, cardinality, detected kind and a few sample values.
// ============================================================================

const (
	maxSamples    = 5
	kindThreshold = 0.8
)

// ColumnProfile summarizes one column.
type ColumnProfile struct {
	Column      string      `json:"column" yaml:"column"`
	Kind        engine.Kind `json:"kind" yaml:"kind"`
	Rows        int         `json:"rows" yaml:"rows"`
	Nulls       int         `json:"nulls" yaml:"nulls"`
	Unique      int         `json:"unique" yaml:"unique"`
	Cardinality string      `json:"cardinality" yaml:"cardinality"` // "low", "medium", "high"
	Samples     []string    `json:"samples" yaml:"samples"`
}

// Profile inspects every column of view.
func Profile(view engine.View) []ColumnProfile {
	cols := view.Columns()
	out := make([]ColumnProfile, len(cols))
	for i, def := range cols {
		out[i] = profileColumn(view, i, def.Name)
	}
	return out
}

func profileColumn(view engine.View, col int, name string) ColumnProfile {
	p := ColumnProfile{Column: name, Rows: view.Len()}

	unique := make(map[string]bool)
	ints := 0
	for row := 0; row < view.Len(); row++ {
		c := view.Cell(row, col)
		if !c.Valid {
			p.Nulls++
			continue
		}
		unique[c.Value] = true
		if _, _, err := c.Int64(); err == nil {
			ints++
		}
	}
	p.Unique = len(unique)

	// Kind: integers win when most non-null values parse.
	nonNull := p.Rows - p.Nulls
	if nonNull > 0 && float64(ints) >= float64(nonNull)*kindThreshold {
		p.Kind = engine.KindInt
	}

	switch {
	case p.Unique <= 10:
		p.Cardinality = "low"
	case p.Unique <= 100:
		p.Cardinality = "medium"
	default:
		p.Cardinality = "high"
	}

	p.Samples = collectSamples(unique, maxSamples)
	return p
}

func collectSamples(unique map[string]bool, n int) []string {
	samples := make([]string, 0, len(unique))
	for v := range unique {
		samples = append(samples, v)
	}
	sort.Strings(samples)
	if len(samples) > n {
		samples = samples[:n]
	}
	return samples
}
