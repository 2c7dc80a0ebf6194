package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spektr-org/crashlens/catalog"
	"github.com/spektr-org/crashlens/config"
	"github.com/spektr-org/crashlens/logging"
	"github.com/spektr-org/crashlens/provider"
	"github.com/spektr-org/crashlens/report"
	"github.com/spektr-org/crashlens/runner"
	"github.com/spektr-org/crashlens/schema"
)

// ============================================================================
// CRASHLENS CLI — Ten questions over a vehicle-crash dataset
// ============================================================================

// Version is set at build time via -ldflags.
var Version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code: 0 on success, 1 on
// usage, config or load errors, 2 when some questions failed. Deferred
// cleanup always runs before the code is returned.
func run(args []string, stdout, stderr io.Writer) int {
	// ── Flags ─────────────────────────────────────────────────────────────
	fs := flag.NewFlagSet("crashlens", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "Path to YAML config file (optional)")
	question := fs.String("question", "", "Question to answer: 1-10, a comma list, or all (required)")
	dataDir := fs.String("data-dir", "", "Directory holding the source CSV files (overrides config)")
	source := fs.String("source", "", "Table source: csv or postgres (overrides config)")
	format := fs.String("format", "text", "Output format: "+strings.Join(report.Formats, ", "))
	outFile := fs.String("out", "", "Write output to file instead of stdout")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	profile := fs.Bool("profile", false, "Print a column profile of the tables the questions need and exit ("+strings.Join(profileFormats, ", ")+")")
	list := fs.Bool("list", false, "List the questions and exit")
	showVersion := fs.Bool("version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `crashlens — analytical questions over crash data

Usage:
  crashlens --question all --data-dir ./data
  crashlens --question 1,3,10 --format csv --out answers.csv
  crashlens --question 7 --source postgres --format pretty
  crashlens --question all --profile --format yaml

Flags:
`)
		fs.PrintDefaults()
		fmt.Fprintf(stderr, `
Environment:
  CRASHLENS_*       Overrides for every config field (see config.yaml)
  PGPASSWORD        Database password for --source postgres

Formats:
  text      Human-readable summary (default)
  json      Full JSON output
  pretty    Pretty-printed JSON
  yaml      YAML document
  csv       One block per question (ready for Sheets/Excel)

Profile mode accepts json, pretty and yaml only.
`)
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if *showVersion {
		fmt.Fprintf(stdout, "crashlens %s\n", Version)
		return 0
	}

	if *list {
		for _, q := range catalog.Questions() {
			fmt.Fprintf(stdout, "%3s  %-48s %s\n", q.ID, q.Name, q.Summary)
		}
		return 0
	}

	if *question == "" {
		fmt.Fprintln(stderr, "Error: --question is required")
		fs.Usage()
		return 1
	}

	ids, err := runner.ParseQuestions(*question)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	if *profile && !isProfileFormat(*format) {
		return fail(stderr, "--profile does not support format %q (want one of %s)", *format, strings.Join(profileFormats, ", "))
	}

	// ── Config ────────────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath, Version)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *source != "" {
		cfg.Source = *source
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fail(stderr, "%v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Dir: cfg.Log.Dir})
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer logger.Sync()
	logger.Debug("starting",
		zap.String("version", cfg.Version),
		zap.String("source", cfg.Source),
		zap.Strings("questions", ids))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Output writer ─────────────────────────────────────────────────────
	writer := stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			return fail(stderr, "Failed to create output file: %v", err)
		}
		defer f.Close()
		writer = f
	}

	// ── Tables ────────────────────────────────────────────────────────────
	src, closeSource, err := openSource(ctx, cfg, logger)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer closeSource()

	prov := provider.New(src,
		provider.WithValidation(cfg.Catalog.Validate),
		provider.WithLogger(logger),
	)

	// ── Profile mode ──────────────────────────────────────────────────────
	if *profile {
		// profiling reports missing columns instead of failing on them
		raw := provider.New(src, provider.WithLogger(logger))
		if err := writeProfile(ctx, writer, raw, ids, *format); err != nil {
			return fail(stderr, "%v", err)
		}
		return 0
	}

	// ── Question mode ─────────────────────────────────────────────────────
	cat := catalog.New(
		catalog.WithTieBreak(tieBreak(cfg.Catalog.TieBreak)),
		catalog.WithMaxJoinRows(cfg.Catalog.MaxJoinRows),
		catalog.WithLogger(logger),
	)
	runr := runner.New(runner.Config{MaxConcurrent: cfg.Runner.MaxConcurrent}, prov, cat, logger)

	rep, err := runr.Run(ctx, ids)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	if err := report.Write(writer, *format, rep); err != nil {
		return fail(stderr, "%v", err)
	}
	if *outFile != "" {
		logger.Info("output written", zap.String("path", *outFile), zap.String("format", *format))
	}

	if err := rep.Err(); err != nil {
		logger.Error("some questions failed", zap.Error(err))
		return 2
	}
	return 0
}

// ============================================================================
// WIRING
// ============================================================================

func openSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (provider.Source, func(), error) {
	switch cfg.Source {
	case "postgres":
		db := cfg.Database
		src, err := provider.NewPostgresSource(ctx, provider.PostgresConfig{
			Host:     db.Host,
			Port:     db.Port,
			User:     db.User,
			Password: db.Password,
			Database: db.Database,
			SSLMode:  db.SSLMode,
			MaxConns: db.MaxConnections,
		}, map[catalog.TableName]string{
			catalog.PersonTable: db.Tables.Person,
			catalog.UnitTable:   db.Tables.Unit,
			catalog.DamageTable: db.Tables.Damage,
			catalog.ChargeTable: db.Tables.Charge,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	default:
		src := provider.NewCSVSource(cfg.DataDir, map[catalog.TableName]string{
			catalog.PersonTable: cfg.Files.Person,
			catalog.UnitTable:   cfg.Files.Unit,
			catalog.DamageTable: cfg.Files.Damage,
			catalog.ChargeTable: cfg.Files.Charge,
		})
		return src, func() {}, nil
	}
}

func tieBreak(s string) catalog.TieBreak {
	if s == "key" {
		return catalog.TieBreakKey
	}
	return catalog.TieBreakStable
}

// ============================================================================
// PROFILE OUTPUT
// ============================================================================

type tableProfile struct {
	Table   catalog.TableName      `json:"table" yaml:"table"`
	Rows    int                    `json:"rows" yaml:"rows"`
	Missing []string               `json:"missingColumns,omitempty" yaml:"missing_columns,omitempty"`
	Columns []schema.ColumnProfile `json:"columns" yaml:"columns"`
}

// profileFormats are the formats --profile can render.
var profileFormats = []string{"json", "pretty", "yaml"}

func isProfileFormat(format string) bool {
	for _, f := range profileFormats {
		if f == format {
			return true
		}
	}
	return false
}

func writeProfile(ctx context.Context, w io.Writer, prov *provider.Provider, ids []string, format string) error {
	if !isProfileFormat(format) {
		return fmt.Errorf("--profile does not support format %q (want one of %s)", format, strings.Join(profileFormats, ", "))
	}

	tables, err := prov.ForQuestions(ctx, ids)
	if err != nil {
		return err
	}

	var out []tableProfile
	for _, name := range catalog.AllTables() {
		view := tables.Get(name)
		if view == nil {
			continue
		}
		p := tableProfile{Table: name, Rows: view.Len(), Columns: schema.Profile(view)}
		if cfg, ok := schema.ForTable(name); ok {
			p.Missing = schema.Missing(view, cfg)
		}
		out = append(out, p)
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(out)
	case "json":
		return json.NewEncoder(w).Encode(out)
	default:
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func fail(stderr io.Writer, format string, args ...interface{}) int {
	fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
	return 1
}
