package engine

import (
	"fmt"
	"strings"
)

// ============================================================================
// TABLE BUILDER — Produces render-ready TableData from a View
// ============================================================================
// Reports never touch Cells directly. A result view is flattened once into
// labeled columns and string rows; nulls render as empty strings.
// ============================================================================

// TableData is a result table ready for display or export.
type TableData struct {
	Title   string     `json:"title" yaml:"title"`
	Columns []Column   `json:"columns" yaml:"columns"`
	Rows    [][]string `json:"rows" yaml:"rows"`
	Summary *Summary   `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Column describes one displayed column.
type Column struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
	Type  string `json:"type" yaml:"type"`   // "text" or "number"
	Align string `json:"align" yaml:"align"` // "left" or "right"
}

// Summary is the footer line of a table.
type Summary struct {
	Label  string            `json:"label" yaml:"label"`
	Values map[string]string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Headers returns the column keys in display order.
func (t *TableData) Headers() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Key
	}
	return out
}

// BuildTable flattens view into a TableData titled title.
func BuildTable(title string, view View) *TableData {
	defs := view.Columns()
	columns := make([]Column, len(defs))
	for i, d := range defs {
		col := Column{Key: d.Name, Label: LabelForColumn(d.Name), Type: "text", Align: "left"}
		if d.Kind == KindInt {
			col.Type = "number"
			col.Align = "right"
		}
		columns[i] = col
	}

	rows := make([][]string, view.Len())
	for r := range rows {
		row := make([]string, len(defs))
		for c := range defs {
			if cell := view.Cell(r, c); cell.Valid {
				row[c] = cell.Value
			}
		}
		rows[r] = row
	}

	return &TableData{
		Title:   title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{Label: fmt.Sprintf("%d rows", len(rows))},
	}
}

// ============================================================================
// LABELS
// ============================================================================

var columnLabels = map[string]string{
	"CRASH_ID":          "Crash",
	"UNIT_NBR":          "Unit",
	"VEH_MAKE_ID":       "Vehicle Make",
	"VEH_BODY_STYL_ID":  "Body Style",
	"VEH_COLOR_ID":      "Color",
	"VEH_LIC_STATE_ID":  "Vehicle License State",
	"DRVR_LIC_STATE_ID": "Driver License State",
	"PRSN_ETHNICITY_ID": "Ethnicity",
	"DRVR_ZIP":          "Driver Zip",
	"InjuryCount":       "Injuries",
	"count":             "Count",
}

// LabelForColumn returns a display label for a column name. Unknown names
// are title-cased from their underscore-separated parts, minus an _ID suffix.
func LabelForColumn(name string) string {
	if l, ok := columnLabels[name]; ok {
		return l
	}
	parts := strings.Split(strings.TrimSuffix(name, "_ID"), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, " ")
}
