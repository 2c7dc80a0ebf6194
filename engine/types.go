package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spektr-org/crashlens/apperrors"
)

// ============================================================================
// CRASHLENS ENGINE TYPES — Tables, Columns, Cells
// ============================================================================
// Every value is held as text plus a validity flag. Numeric columns produced
// by aggregation are tagged KindInt so ordering compares them as integers.
// Source columns stay KindString; predicates parse them on demand.
// ============================================================================

// Kind is the comparison type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	default:
		return "string"
	}
}

// MarshalText renders the kind by name in json and yaml output.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Cell is a single nullable value.
type Cell struct {
	Value string
	Valid bool
}

// Null is the null cell.
var Null = Cell{}

// Str makes a non-null text cell.
func Str(s string) Cell { return Cell{Value: s, Valid: true} }

// Int makes a non-null integer cell.
func Int(n int64) Cell { return Cell{Value: strconv.FormatInt(n, 10), Valid: true} }

// Int64 parses the cell as an integer. ok is false for nulls.
// Integral decimals with only zeros after the point, such as "2.0", are
// accepted; exponents and fractions are not.
func (c Cell) Int64() (n int64, ok bool, err error) {
	if !c.Valid {
		return 0, false, nil
	}
	v := c.Value
	if dot := strings.IndexByte(v, '.'); dot > 0 && dot < len(v)-1 && strings.Trim(v[dot+1:], "0") == "" {
		v = v[:dot]
	}
	n, err = strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%q is not an integer", c.Value)
	}
	return n, true, nil
}

func (c Cell) String() string {
	if !c.Valid {
		return "null"
	}
	return c.Value
}

// ColumnDef names a column and its comparison kind.
type ColumnDef struct {
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// ============================================================================
// TABLE — materialized rows
// ============================================================================

// Table is an immutable, materialized relation.
type Table struct {
	name    string
	columns []ColumnDef
	index   map[string]int
	rows    [][]Cell
}

// NewTable builds a table. Every row must have one cell per column.
func NewTable(name string, columns []ColumnDef, rows [][]Cell) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c.Name]; dup {
			return nil, fmt.Errorf("table %q: duplicate column %q", name, c.Name)
		}
		index[c.Name] = i
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("table %q: row %d has %d cells, want %d", name, i, len(r), len(columns))
		}
	}
	return &Table{name: name, columns: columns, index: index, rows: rows}, nil
}

// StringColumns returns text column definitions for the given names.
func StringColumns(names ...string) []ColumnDef {
	defs := make([]ColumnDef, len(names))
	for i, n := range names {
		defs[i] = ColumnDef{Name: n, Kind: KindString}
	}
	return defs
}

func (t *Table) Name() string { return t.name }
func (t *Table) Len() int     { return len(t.rows) }

func (t *Table) Columns() []ColumnDef { return t.columns }

func (t *Table) Column(name string) (int, error) {
	if i, ok := t.index[name]; ok {
		return i, nil
	}
	return -1, missingColumn(t.name, name)
}

func (t *Table) Cell(row, col int) Cell {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.columns) {
		return Null
	}
	return t.rows[row][col]
}

func missingColumn(table, column string) error {
	return &apperrors.MalformedDataError{Table: table, Column: column, Row: -1, Reason: "column not found"}
}
