package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/spektr-org/crashlens/catalog"
	"github.com/spektr-org/crashlens/engine"
	"github.com/spektr-org/crashlens/runner"
)

// ============================================================================
// REPORT — Renders runner outcomes
// ============================================================================
// Formats:
//   json      Compact JSON document (default)
//   pretty    Indented JSON
//   yaml      YAML document
//   csv       One block per question, blank line between blocks
//   text      Human-readable summary
// Failed questions are rendered with question number, operation and cause.
// ============================================================================

// Formats lists the supported output formats.
var Formats = []string{"json", "pretty", "yaml", "csv", "text"}

// Document is the serialized form of a run.
type Document struct {
	RunID     string  `json:"runId" yaml:"run_id"`
	Questions []Entry `json:"questions" yaml:"questions"`
}

// Entry is one answered or failed question.
type Entry struct {
	Question  string             `json:"question" yaml:"question"`
	Operation string             `json:"operation" yaml:"operation"`
	Summary   string             `json:"summary" yaml:"summary"`
	Kind      catalog.ResultKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Count     *int64             `json:"count,omitempty" yaml:"count,omitempty"`
	Table     *engine.TableData  `json:"table,omitempty" yaml:"table,omitempty"`
	Error     string             `json:"error,omitempty" yaml:"error,omitempty"`
	ElapsedMS int64              `json:"elapsedMs" yaml:"elapsed_ms"`
}

// Build converts a runner report into a Document.
func Build(r *runner.Report) Document {
	doc := Document{RunID: r.RunID.String(), Questions: make([]Entry, 0, len(r.Outcomes))}
	for _, o := range r.Outcomes {
		e := Entry{
			Question:  o.Question,
			Operation: o.Operation,
			ElapsedMS: o.Elapsed.Milliseconds(),
		}
		if q, ok := catalog.Lookup(o.Question); ok {
			e.Summary = q.Summary
		}
		switch {
		case o.Err != nil:
			e.Error = o.Err.Error()
		case o.Result != nil:
			e.Kind = o.Result.Kind
			if o.Result.Kind == catalog.KindCount {
				n := o.Result.Count
				e.Count = &n
			} else if o.Result.Table != nil {
				e.Table = engine.BuildTable(e.Summary, o.Result.Table)
			}
		}
		doc.Questions = append(doc.Questions, e)
	}
	return doc
}

// Write renders r to w in format.
func Write(w io.Writer, format string, r *runner.Report) error {
	doc := Build(r)
	switch format {
	case "", "json":
		return writeJSON(w, doc, false)
	case "pretty":
		return writeJSON(w, doc, true)
	case "yaml":
		return writeYAML(w, doc)
	case "csv":
		return writeCSV(w, doc)
	case "text":
		return writeText(w, doc)
	default:
		return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// ============================================================================
// JSON / YAML
// ============================================================================

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return enc.Close()
}

// ============================================================================
// CSV OUTPUT — Sheets-ready blocks
// ============================================================================

func writeCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	for i, e := range doc.Questions {
		if i > 0 {
			cw.Write([]string{})
		}
		cw.Write([]string{"Question", e.Question, e.Operation})

		switch {
		case e.Error != "":
			cw.Write([]string{"Error", e.Error})
		case e.Count != nil:
			cw.Write([]string{"Count", strconv.FormatInt(*e.Count, 10)})
		case e.Table != nil:
			cw.Write(e.Table.Headers())
			for _, row := range e.Table.Rows {
				cw.Write(row)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ============================================================================
// TEXT OUTPUT
// ============================================================================

func writeText(w io.Writer, doc Document) error {
	for i, e := range doc.Questions {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Q%s %s\n", e.Question, e.Operation)
		if e.Summary != "" {
			fmt.Fprintf(w, "  %s\n", e.Summary)
		}

		switch {
		case e.Error != "":
			fmt.Fprintf(w, "  error: %s\n", e.Error)
		case e.Count != nil:
			fmt.Fprintf(w, "  count: %d\n", *e.Count)
		case e.Table != nil:
			if len(e.Table.Rows) == 0 {
				fmt.Fprintln(w, "  no rows")
				continue
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			labels := make([]string, len(e.Table.Columns))
			for j, c := range e.Table.Columns {
				labels[j] = c.Label
			}
			fmt.Fprintf(tw, "  %s\n", strings.Join(labels, "\t"))
			for _, row := range e.Table.Rows {
				fmt.Fprintf(tw, "  %s\n", strings.Join(row, "\t"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}
