package engine

import (
	"fmt"

	"github.com/spektr-org/crashlens/apperrors"
)

// ============================================================================
// VIEW — Zero-Copy Row Access Interface
// ============================================================================
// Operators never copy source rows. They read through this interface.
//
// Implementations:
//   Table     — materialized rows (CSV, Postgres, aggregation output)
//   SubView   — filtered/reordered subset (indices into parent)
//   JoinView  — pairs of row indices into a left and right view
//
// Column lookups resolve once per operator; Cell is called in tight loops.
// ============================================================================

// View provides indexed access to a relation.
type View interface {
	Name() string
	Len() int
	Columns() []ColumnDef
	Column(name string) (int, error)
	Cell(row, col int) Cell
}

// Materialize copies a view into a standalone Table.
func Materialize(v View, name string) *Table {
	if t, ok := v.(*Table); ok && name == t.name {
		return t
	}
	cols := v.Columns()
	defs := make([]ColumnDef, len(cols))
	copy(defs, cols)
	index := make(map[string]int, len(defs))
	for i, c := range defs {
		if _, dup := index[c.Name]; !dup {
			index[c.Name] = i
		}
	}
	rows := make([][]Cell, v.Len())
	for i := range rows {
		row := make([]Cell, len(defs))
		for j := range defs {
			row[j] = v.Cell(i, j)
		}
		rows[i] = row
	}
	return &Table{name: name, columns: defs, index: index, rows: rows}
}

// resolve looks up several columns at once.
func resolve(v View, names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		c, err := v.Column(n)
		if err != nil {
			return nil, err
		}
		idx[i] = c
	}
	return idx, nil
}

// ============================================================================
// SUB VIEW — filtered subset (zero-copy)
// ============================================================================

// SubView is a subset of a parent View, in the order of indices.
type SubView struct {
	parent  View
	indices []int
}

func newSubView(parent View, indices []int) View {
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Name() string                    { return v.parent.Name() }
func (v *SubView) Len() int                        { return len(v.indices) }
func (v *SubView) Columns() []ColumnDef            { return v.parent.Columns() }
func (v *SubView) Column(name string) (int, error) { return v.parent.Column(name) }

func (v *SubView) Cell(row, col int) Cell {
	if row < 0 || row >= len(v.indices) {
		return Null
	}
	return v.parent.Cell(v.indices[row], col)
}

// ============================================================================
// JOIN VIEW — paired row indices (zero-copy)
// ============================================================================

type side int

const (
	leftSide side = iota
	rightSide
)

type columnSource struct {
	side side
	col  int
}

type rowPair struct {
	left, right int // right is -1 for an unmatched left-join row
}

// JoinView exposes the rows of an equi-join without copying either input.
// Join keys appear once and come from the left input. Any other column name
// present on both sides is listed twice and fails lookup as ambiguous.
type JoinView struct {
	name      string
	left      View
	right     View
	columns   []ColumnDef
	sources   []columnSource
	index     map[string]int
	ambiguous map[string]bool
	pairs     []rowPair
}

func newJoinView(left, right View, keys []string, pairs []rowPair) (*JoinView, error) {
	v := &JoinView{
		name:      fmt.Sprintf("%s⋈%s", left.Name(), right.Name()),
		left:      left,
		right:     right,
		index:     make(map[string]int),
		ambiguous: make(map[string]bool),
		pairs:     pairs,
	}

	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		lc, err := left.Column(k)
		if err != nil {
			return nil, err
		}
		if _, err := right.Column(k); err != nil {
			return nil, err
		}
		keySet[k] = true
		v.add(left.Columns()[lc], columnSource{side: leftSide, col: lc})
	}

	for i, c := range left.Columns() {
		if !keySet[c.Name] {
			v.add(c, columnSource{side: leftSide, col: i})
		}
	}
	for i, c := range right.Columns() {
		if !keySet[c.Name] {
			v.add(c, columnSource{side: rightSide, col: i})
		}
	}
	return v, nil
}

func (v *JoinView) add(def ColumnDef, src columnSource) {
	if _, seen := v.index[def.Name]; seen {
		v.ambiguous[def.Name] = true
	} else {
		v.index[def.Name] = len(v.columns)
	}
	v.columns = append(v.columns, def)
	v.sources = append(v.sources, src)
}

func (v *JoinView) Name() string         { return v.name }
func (v *JoinView) Len() int             { return len(v.pairs) }
func (v *JoinView) Columns() []ColumnDef { return v.columns }

func (v *JoinView) Column(name string) (int, error) {
	if v.ambiguous[name] {
		return -1, &apperrors.MalformedDataError{
			Table: v.name, Column: name, Row: -1,
			Reason: "column name is ambiguous after join",
		}
	}
	if i, ok := v.index[name]; ok {
		return i, nil
	}
	return -1, missingColumn(v.name, name)
}

func (v *JoinView) Cell(row, col int) Cell {
	if row < 0 || row >= len(v.pairs) || col < 0 || col >= len(v.sources) {
		return Null
	}
	src := v.sources[col]
	p := v.pairs[row]
	if src.side == leftSide {
		return v.left.Cell(p.left, src.col)
	}
	if p.right < 0 {
		return Null
	}
	return v.right.Cell(p.right, src.col)
}
