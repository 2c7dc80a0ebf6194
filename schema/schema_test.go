package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/crashlens/apperrors"
	"github.com/spektr-org/crashlens/catalog"
	"github.com/spektr-org/crashlens/engine"
)

func table(t *testing.T, cols []string, rows ...[]string) *engine.Table {
	t.Helper()
	cells := make([][]engine.Cell, len(rows))
	for i, r := range rows {
		row := make([]engine.Cell, len(r))
		for j, v := range r {
			if v != "" {
				row[j] = engine.Str(v)
			}
		}
		cells[i] = row
	}
	tbl, err := engine.NewTable("t", engine.StringColumns(cols...), cells)
	require.NoError(t, err)
	return tbl
}

// ── Declared schemas ─────────────────────────────────────────────────────────

func TestForTableCoversAllTables(t *testing.T) {
	for _, name := range catalog.AllTables() {
		cfg, ok := ForTable(name)
		require.True(t, ok, name)
		assert.Equal(t, name, cfg.Table)
		assert.Contains(t, cfg.Keys(), catalog.ColCrashID)
		assert.NotEmpty(t, cfg.File)
	}
	_, ok := ForTable("nope")
	assert.False(t, ok)
}

func TestIntKeys(t *testing.T) {
	assert.Equal(t, []string{"DEATH_CNT"}, Person.IntKeys())
	assert.Equal(t, []string{"TOT_INJRY_CNT"}, Unit.IntKeys())
	assert.Empty(t, Charge.IntKeys())
}

// ── Validate ─────────────────────────────────────────────────────────────────

func TestValidateAcceptsWellFormedTable(t *testing.T) {
	tbl := table(t, []string{"CRASH_ID", "CHARGE", "EXTRA"},
		[]string{"1", "SPEEDING", "x"},
		[]string{"2", "", ""},
	)
	assert.NoError(t, Validate(tbl, Charge))
}

func TestValidateMissingColumn(t *testing.T) {
	tbl := table(t, []string{"CRASH_ID"}, []string{"1"})
	err := Validate(tbl, Damage)
	require.True(t, errors.Is(err, apperrors.ErrMalformedData))

	var malformed *apperrors.MalformedDataError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "DAMAGED_PROPERTY", malformed.Column)
	assert.Equal(t, "damageDataframe", malformed.Table)
	assert.Equal(t, -1, malformed.Row)

	assert.Equal(t, []string{"DAMAGED_PROPERTY"}, Missing(tbl, Damage))
}

func TestValidateNonIntegerValue(t *testing.T) {
	cols := Unit.Keys()
	good := make([]string, len(cols))
	bad := make([]string, len(cols))
	for i, c := range cols {
		good[i], bad[i] = "v", "v"
		if c == "TOT_INJRY_CNT" {
			good[i], bad[i] = "2", "two"
		}
	}
	tbl := table(t, cols, good, bad)

	err := Validate(tbl, Unit)
	var malformed *apperrors.MalformedDataError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "TOT_INJRY_CNT", malformed.Column)
	assert.Equal(t, 1, malformed.Row)
}

// ── Profile ──────────────────────────────────────────────────────────────────

func TestProfile(t *testing.T) {
	tbl := table(t, []string{"DEATH_CNT", "VEH_COLOR_ID"},
		[]string{"0", "RED"},
		[]string{"1", "BLUE"},
		[]string{"", "RED"},
		[]string{"2", ""},
	)
	got := Profile(tbl)
	require.Len(t, got, 2)

	deaths := got[0]
	assert.Equal(t, "DEATH_CNT", deaths.Column)
	assert.Equal(t, engine.KindInt, deaths.Kind)
	assert.Equal(t, 4, deaths.Rows)
	assert.Equal(t, 1, deaths.Nulls)
	assert.Equal(t, 3, deaths.Unique)
	assert.Equal(t, "low", deaths.Cardinality)

	colors := got[1]
	assert.Equal(t, engine.KindString, colors.Kind)
	assert.Equal(t, []string{"BLUE", "RED"}, colors.Samples)
}
