package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spektr-org/crashlens/apperrors"
)

// ============================================================================
// AGGREGATORS — Grouping, Aggregation, Ordering via View
// ============================================================================
// Grouping keeps first-seen group order, so every later stable sort breaks
// ties by the input order of the rows that opened each group.
// ============================================================================

type aggKind int

const (
	aggCount aggKind = iota
	aggCountNonNull
	aggSum
)

// Aggregate describes one output column of GroupBy.
type Aggregate struct {
	Alias  string
	column string
	kind   aggKind
}

// Count counts rows per group.
func Count(alias string) Aggregate {
	return Aggregate{Alias: alias, kind: aggCount}
}

// CountNonNull counts rows per group where column is not null.
func CountNonNull(column, alias string) Aggregate {
	return Aggregate{Alias: alias, column: column, kind: aggCountNonNull}
}

// Sum adds an integer column per group. A group with only nulls sums to null.
func Sum(column, alias string) Aggregate {
	return Aggregate{Alias: alias, column: column, kind: aggSum}
}

type accumulator struct {
	n     int64
	valid bool
}

// GroupBy groups rows on keys and computes aggs per group.
// Null key values form their own group. Output columns are keys then aggs.
func GroupBy(view View, keys []string, aggs ...Aggregate) (*Table, error) {
	keyCols, err := resolve(view, keys...)
	if err != nil {
		return nil, err
	}

	aggCols := make([]int, len(aggs))
	for i, a := range aggs {
		aggCols[i] = -1
		if a.kind == aggCount {
			continue
		}
		c, err := view.Column(a.column)
		if err != nil {
			return nil, err
		}
		aggCols[i] = c
	}

	groups := make(map[string]int)
	var order [][]Cell
	var accs [][]accumulator

	for i := 0; i < view.Len(); i++ {
		key := groupKey(view, i, keyCols)
		g, exists := groups[key]
		if !exists {
			g = len(order)
			groups[key] = g
			kc := make([]Cell, len(keyCols))
			for j, c := range keyCols {
				kc[j] = view.Cell(i, c)
			}
			order = append(order, kc)
			accs = append(accs, make([]accumulator, len(aggs)))
		}

		for j, a := range aggs {
			acc := &accs[g][j]
			switch a.kind {
			case aggCount:
				acc.n++
				acc.valid = true
			case aggCountNonNull:
				acc.valid = true
				if view.Cell(i, aggCols[j]).Valid {
					acc.n++
				}
			case aggSum:
				val, ok, err := view.Cell(i, aggCols[j]).Int64()
				if err != nil {
					return nil, &apperrors.MalformedDataError{
						Table: view.Name(), Column: a.column, Row: i, Reason: err.Error(),
					}
				}
				if ok {
					sum := acc.n + val
					if (val > 0 && sum < acc.n) || (val < 0 && sum > acc.n) {
						return nil, &apperrors.MalformedDataError{
							Table: view.Name(), Column: a.column, Row: i, Reason: "integer sum overflows int64",
						}
					}
					acc.n = sum
					acc.valid = true
				}
			}
		}
	}

	defs := make([]ColumnDef, 0, len(keys)+len(aggs))
	src := view.Columns()
	for _, c := range keyCols {
		defs = append(defs, src[c])
	}
	for _, a := range aggs {
		defs = append(defs, ColumnDef{Name: a.Alias, Kind: KindInt})
	}

	rows := make([][]Cell, len(order))
	for g, kc := range order {
		row := make([]Cell, 0, len(defs))
		row = append(row, kc...)
		for _, acc := range accs[g] {
			if acc.valid {
				row = append(row, Int(acc.n))
			} else {
				row = append(row, Null)
			}
		}
		rows[g] = row
	}

	return NewTable(view.Name(), defs, rows)
}

// groupKey encodes key cells so that null and "" stay distinct.
func groupKey(view View, row int, cols []int) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		cell := view.Cell(row, c)
		if !cell.Valid {
			b.WriteByte(0)
			continue
		}
		b.WriteByte(1)
		b.WriteString(cell.Value)
	}
	return b.String()
}

// ============================================================================
// ORDERING
// ============================================================================

// SortKey orders by one column.
type SortKey struct {
	Column string
	Desc   bool
}

func Asc(column string) SortKey  { return SortKey{Column: column} }
func Desc(column string) SortKey { return SortKey{Column: column, Desc: true} }

type sortValue struct {
	null bool
	n    int64
	s    string
}

// OrderBy returns the view stably sorted on keys.
// Nulls sort first ascending and last descending.
func OrderBy(view View, keys ...SortKey) (View, error) {
	n := view.Len()
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	if len(keys) == 0 || n < 2 {
		return newSubView(view, perm), nil
	}

	kinds := make([]Kind, len(keys))
	values := make([][]sortValue, len(keys))
	defs := view.Columns()
	for k, key := range keys {
		col, err := view.Column(key.Column)
		if err != nil {
			return nil, err
		}
		kinds[k] = defs[col].Kind
		vals := make([]sortValue, n)
		for i := 0; i < n; i++ {
			cell := view.Cell(i, col)
			if !cell.Valid {
				vals[i] = sortValue{null: true}
				continue
			}
			if kinds[k] == KindInt {
				num, _, err := cell.Int64()
				if err != nil {
					return nil, &apperrors.MalformedDataError{
						Table: view.Name(), Column: key.Column, Row: i, Reason: err.Error(),
					}
				}
				vals[i] = sortValue{n: num}
				continue
			}
			vals[i] = sortValue{s: cell.Value}
		}
		values[k] = vals
	}

	sort.SliceStable(perm, func(a, b int) bool {
		ra, rb := perm[a], perm[b]
		for k, key := range keys {
			c := compareValues(values[k][ra], values[k][rb], kinds[k])
			if c == 0 {
				continue
			}
			if key.Desc {
				// nulls last when descending
				if values[k][ra].null || values[k][rb].null {
					return !values[k][ra].null
				}
				return c > 0
			}
			return c < 0
		}
		return false
	})

	return newSubView(view, perm), nil
}

// compareValues orders nulls before everything.
func compareValues(a, b sortValue, kind Kind) int {
	switch {
	case a.null && b.null:
		return 0
	case a.null:
		return -1
	case b.null:
		return 1
	}
	if kind == KindInt {
		switch {
		case a.n < b.n:
			return -1
		case a.n > b.n:
			return 1
		}
		return 0
	}
	return strings.Compare(a.s, b.s)
}

// Limit keeps the first n rows. n <= 0 keeps everything.
func Limit(view View, n int) View {
	if n <= 0 || view.Len() <= n {
		return view
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return newSubView(view, indices)
}

// ============================================================================
// DISTINCT + WINDOW
// ============================================================================

// Distinct returns the distinct combinations of columns in first-seen order.
func Distinct(view View, columns ...string) (View, error) {
	projected, err := Select(view, columns...)
	if err != nil {
		return nil, err
	}
	all := make([]int, len(columns))
	for i := range all {
		all[i] = i
	}
	seen := make(map[string]bool)
	indices := make([]int, 0)
	for i := 0; i < projected.Len(); i++ {
		k := groupKey(projected, i, all)
		if seen[k] {
			continue
		}
		seen[k] = true
		indices = append(indices, i)
	}
	return newSubView(projected, indices), nil
}

// CountDistinct counts the distinct combinations of columns.
func CountDistinct(view View, columns ...string) (int64, error) {
	d, err := Distinct(view, columns...)
	if err != nil {
		return 0, err
	}
	return int64(d.Len()), nil
}

// FirstPerPartition keeps, for each distinct partition key, the first row
// after ordering by keys (row_number() = 1). Ties keep input order.
// Output follows the sorted order of the surviving rows.
func FirstPerPartition(view View, partition []string, keys ...SortKey) (View, error) {
	partCols, err := resolve(view, partition...)
	if err != nil {
		return nil, err
	}
	sorted, err := OrderBy(view, keys...)
	if err != nil {
		return nil, err
	}
	sub := sorted.(*SubView)

	seen := make(map[string]bool)
	indices := make([]int, 0)
	for i := 0; i < sub.Len(); i++ {
		k := groupKey(sub, i, partCols)
		if seen[k] {
			continue
		}
		seen[k] = true
		indices = append(indices, sub.indices[i])
	}
	return newSubView(view, indices), nil
}

// TopValues returns the n values of column with the highest agg, computed
// over view. The result is materialized so later filters can use it with In.
func TopValues(view View, column string, n int, agg Aggregate, tieBreak ...SortKey) ([]Cell, error) {
	grouped, err := GroupBy(view, []string{column}, agg)
	if err != nil {
		return nil, err
	}
	keys := append([]SortKey{Desc(agg.Alias)}, tieBreak...)
	ordered, err := OrderBy(grouped, keys...)
	if err != nil {
		return nil, err
	}
	top := Limit(ordered, n)

	out := make([]Cell, top.Len())
	for i := range out {
		out[i] = top.Cell(i, 0)
	}
	return out, nil
}

// ============================================================================
// PROJECTION
// ============================================================================

// ProjectView exposes a subset of a parent's columns, in the given order.
type ProjectView struct {
	parent View
	cols   []int
	defs   []ColumnDef
	index  map[string]int
}

// Select projects columns out of view without copying rows.
func Select(view View, columns ...string) (View, error) {
	cols, err := resolve(view, columns...)
	if err != nil {
		return nil, err
	}
	src := view.Columns()
	defs := make([]ColumnDef, len(cols))
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		defs[i] = src[c]
		if _, dup := index[defs[i].Name]; dup {
			return nil, fmt.Errorf("select: duplicate column %q", defs[i].Name)
		}
		index[defs[i].Name] = i
	}
	return &ProjectView{parent: view, cols: cols, defs: defs, index: index}, nil
}

func (v *ProjectView) Name() string         { return v.parent.Name() }
func (v *ProjectView) Len() int             { return v.parent.Len() }
func (v *ProjectView) Columns() []ColumnDef { return v.defs }

func (v *ProjectView) Column(name string) (int, error) {
	if i, ok := v.index[name]; ok {
		return i, nil
	}
	return -1, missingColumn(v.parent.Name(), name)
}

func (v *ProjectView) Cell(row, col int) Cell {
	if col < 0 || col >= len(v.cols) {
		return Null
	}
	return v.parent.Cell(row, v.cols[col])
}
