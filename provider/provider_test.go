package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spektr-org/crashlens/apperrors"
	"github.com/spektr-org/crashlens/catalog"
	"github.com/spektr-org/crashlens/engine"
	"github.com/spektr-org/crashlens/schema"
)

var testFiles = map[catalog.TableName]string{
	catalog.PersonTable: "Primary_Person_use.csv",
	catalog.UnitTable:   "Units_use.csv",
	catalog.DamageTable: "Damages_use.csv",
	catalog.ChargeTable: "Charges_use.csv",
}

// writeSchemaCSV writes a CSV whose header is the declared schema of name and
// whose rows fill every column with fill(column).
func writeSchemaCSV(t *testing.T, dir string, name catalog.TableName, rows int, fill func(col string, row int) string) {
	t.Helper()
	cfg, ok := schema.ForTable(name)
	require.True(t, ok)

	var b strings.Builder
	b.WriteString(strings.Join(cfg.Keys(), ","))
	b.WriteByte('\n')
	for r := 0; r < rows; r++ {
		vals := make([]string, len(cfg.Columns))
		for i, c := range cfg.Columns {
			vals[i] = fill(c.Key, r)
		}
		b.WriteString(strings.Join(vals, ","))
		b.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, testFiles[name]), []byte(b.String()), 0o644))
}

func validFill(col string, row int) string {
	switch col {
	case catalog.ColDeathCount, catalog.ColInjuryCount:
		return "0"
	case catalog.ColCrashID:
		return "100"
	default:
		return "X"
	}
}

func TestRequiredTables(t *testing.T) {
	names, err := RequiredTables([]string{"10", "1", "9"})
	require.NoError(t, err)
	assert.Equal(t, []catalog.TableName{
		catalog.PersonTable, catalog.UnitTable, catalog.DamageTable, catalog.ChargeTable,
	}, names)

	names, err = RequiredTables([]string{"2", "6"})
	require.NoError(t, err)
	assert.Equal(t, []catalog.TableName{catalog.UnitTable}, names)

	_, err = RequiredTables([]string{"11"})
	assert.True(t, errors.Is(err, apperrors.ErrUnknownQuestion))
}

func TestCSVSourceLoad(t *testing.T) {
	dir := t.TempDir()
	writeSchemaCSV(t, dir, catalog.UnitTable, 3, validFill)

	src := NewCSVSource(dir, testFiles)
	tbl, err := src.Load(context.Background(), catalog.UnitTable)
	require.NoError(t, err)
	assert.Equal(t, string(catalog.UnitTable), tbl.Name())
	assert.Equal(t, 3, tbl.Len())

	_, err = src.Load(context.Background(), catalog.PersonTable)
	assert.Error(t, err, "file does not exist")

	empty := NewCSVSource(dir, nil)
	_, err = empty.Path(catalog.UnitTable)
	assert.Error(t, err)
}

func TestCSVSourceHonorsCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeSchemaCSV(t, dir, catalog.UnitTable, 1, validFill)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCSVSource(dir, testFiles).Load(ctx, catalog.UnitTable)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestForQuestionsLoadsOnlyRequiredTables(t *testing.T) {
	dir := t.TempDir()
	writeSchemaCSV(t, dir, catalog.UnitTable, 2, validFill)
	writeSchemaCSV(t, dir, catalog.ChargeTable, 4, validFill)

	p := New(NewCSVSource(dir, testFiles), WithValidation(true), WithLogger(zaptest.NewLogger(t)))
	tables, err := p.ForQuestions(context.Background(), []string{"10"})
	require.NoError(t, err)

	require.NotNil(t, tables.Get(catalog.UnitTable))
	require.NotNil(t, tables.Get(catalog.ChargeTable))
	assert.Nil(t, tables.Get(catalog.PersonTable))
	assert.Nil(t, tables.Get(catalog.DamageTable))
	assert.Equal(t, 2, tables.Unit.Len())
	assert.Equal(t, 4, tables.Charge.Len())
}

func TestTablesValidationFailure(t *testing.T) {
	dir := t.TempDir()
	writeSchemaCSV(t, dir, catalog.PersonTable, 2, func(col string, row int) string {
		if col == catalog.ColDeathCount && row == 1 {
			return "many"
		}
		return validFill(col, row)
	})

	src := NewCSVSource(dir, testFiles)

	_, err := New(src, WithValidation(true)).Tables(context.Background(), []catalog.TableName{catalog.PersonTable})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedData))
	assert.Contains(t, err.Error(), catalog.ColDeathCount)

	tables, err := New(src).Tables(context.Background(), []catalog.TableName{catalog.PersonTable})
	require.NoError(t, err, "validation is off by default")
	assert.Equal(t, 2, tables.Person.Len())
}

func TestTablesMissingFileFails(t *testing.T) {
	p := New(NewCSVSource(t.TempDir(), testFiles))
	_, err := p.Tables(context.Background(), []catalog.TableName{catalog.UnitTable, catalog.ChargeTable})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load ")
}

// memSource serves tables that are already in memory.
type memSource map[catalog.TableName]*engine.Table

func (s memSource) Load(_ context.Context, name catalog.TableName) (*engine.Table, error) {
	t, ok := s[name]
	if !ok {
		return nil, errors.New("not in memory")
	}
	return t, nil
}

func TestTablesFromInMemorySource(t *testing.T) {
	tbl, err := engine.NewTable("units", engine.StringColumns("CRASH_ID"), [][]engine.Cell{{engine.Str("1")}})
	require.NoError(t, err)

	p := New(memSource{catalog.UnitTable: tbl}, WithLogger(zaptest.NewLogger(t)))
	tables, err := p.Tables(context.Background(), []catalog.TableName{catalog.UnitTable})
	require.NoError(t, err)
	assert.Same(t, tbl, tables.Unit)

	_, err = p.Tables(context.Background(), []catalog.TableName{catalog.ChargeTable})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load chargesDataframe")
}

// ============================================================================
// POSTGRES HELPERS
// ============================================================================

func TestConnectionStringEscapes(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "crash lens", Password: "p@ss/word", Database: "crashes"}
	assert.Equal(t,
		"postgresql://crash+lens:p%40ss%2Fword@db:5432/crashes?sslmode=disable",
		cfg.ConnectionString())
}

func TestToCell(t *testing.T) {
	assert.Equal(t, engine.Null, toCell(nil))
	assert.Equal(t, engine.Null, toCell(""))
	assert.Equal(t, engine.Null, toCell([]byte{}))
	assert.Equal(t, engine.Str("FORD"), toCell("FORD"))
	assert.Equal(t, engine.Str("3"), toCell(int64(3)))
	assert.Equal(t, engine.Str("2024-01-02T00:00:00Z"), toCell(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
}

func TestSplitIdent(t *testing.T) {
	assert.Equal(t, []string{"units"}, splitIdent("units"))
	assert.Equal(t, []string{"crash", "units"}, splitIdent("crash.units"))
}

func TestNewPostgresSourceRejectsBadTableName(t *testing.T) {
	_, err := NewPostgresSourceFromPool(nil, map[catalog.TableName]string{
		catalog.UnitTable: "units; DROP TABLE units",
	}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(errors.New("dial tcp: connection refused")))
	assert.True(t, IsRetryable(errors.New("FATAL: the database system is starting up")))
	assert.False(t, IsRetryable(errors.New("password authentication failed")))
}

func TestRetryConnect(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	calls := 0
	got, err := retryConnect(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection refused")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)

	calls = 0
	_, err = retryConnect(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, errors.New("password authentication failed")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent errors are not retried")
}
