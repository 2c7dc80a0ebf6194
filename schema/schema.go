package schema

import (
	"github.com/spektr-org/crashlens/catalog"
	"github.com/spektr-org/crashlens/engine"
)

// ============================================================================
// SCHEMA — Declared shape of the four crash source tables
// ============================================================================
// Each source file carries many more columns than the catalog reads. A Config
// lists only the columns the questions touch, so a loaded table can be checked
// up front instead of failing halfway through a run.
// ============================================================================

// Config describes the columns a source table must provide.
type Config struct {
	Table   catalog.TableName `json:"table" yaml:"table"`
	File    string            `json:"file" yaml:"file"`
	Columns []ColumnMeta      `json:"columns" yaml:"columns"`
}

// ColumnMeta describes one required column.
type ColumnMeta struct {
	Key         string      `json:"key" yaml:"key"`
	Kind        engine.Kind `json:"kind" yaml:"kind"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

func text(key, desc string) ColumnMeta    { return ColumnMeta{Key: key, Kind: engine.KindString, Description: desc} }
func integer(key, desc string) ColumnMeta { return ColumnMeta{Key: key, Kind: engine.KindInt, Description: desc} }

// Person is the primary person table, one row per person involved.
var Person = Config{
	Table: catalog.PersonTable,
	File:  "Primary_Person_use.csv",
	Columns: []ColumnMeta{
		text(catalog.ColCrashID, "crash identifier"),
		text(catalog.ColUnitNbr, "unit number within the crash"),
		text(catalog.ColPersonType, "DRIVER, PASSENGER/OCCUPANT, ..."),
		text(catalog.ColGender, "MALE, FEMALE, UNKNOWN"),
		integer(catalog.ColDeathCount, "deaths attributed to this person"),
		text(catalog.ColAirbag, "airbag deployment"),
		text(catalog.ColLicenseType, "driver license type"),
		text(catalog.ColLicenseState, "driver license state"),
		text(catalog.ColAlcoholResult, "alcohol test result"),
		text(catalog.ColDriverZip, "driver zip code"),
		text(catalog.ColEthnicity, "ethnicity"),
	},
}

// Unit is the vehicle unit table, one row per unit in a crash.
var Unit = Config{
	Table: catalog.UnitTable,
	File:  "Units_use.csv",
	Columns: []ColumnMeta{
		text(catalog.ColCrashID, "crash identifier"),
		text(catalog.ColUnitNbr, "unit number within the crash"),
		text(catalog.ColBodyStyle, "vehicle body style"),
		text(catalog.ColMake, "vehicle make"),
		text(catalog.ColColor, "vehicle color"),
		text(catalog.ColVehicleState, "vehicle license state"),
		text(catalog.ColDamageScale1, "damage scale, e.g. DAMAGED 4"),
		text(catalog.ColDamageScale2, "damage scale, e.g. DAMAGED 4"),
		integer(catalog.ColInjuryCount, "total injuries"),
	},
}

// Damage lists damaged property per crash.
var Damage = Config{
	Table: catalog.DamageTable,
	File:  "Damages_use.csv",
	Columns: []ColumnMeta{
		text(catalog.ColCrashID, "crash identifier"),
		text(catalog.ColDamagedProperty, "damaged property description"),
	},
}

// Charge lists charges filed per crash.
var Charge = Config{
	Table: catalog.ChargeTable,
	File:  "Charges_use.csv",
	Columns: []ColumnMeta{
		text(catalog.ColCrashID, "crash identifier"),
		text(catalog.ColCharge, "charge description"),
	},
}

var byTable = map[catalog.TableName]Config{
	catalog.PersonTable: Person,
	catalog.UnitTable:   Unit,
	catalog.DamageTable: Damage,
	catalog.ChargeTable: Charge,
}

// ForTable returns the declared schema of a logical table.
func ForTable(name catalog.TableName) (Config, bool) {
	c, ok := byTable[name]
	return c, ok
}

// Keys returns all column keys.
func (c Config) Keys() []string {
	keys := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		keys[i] = col.Key
	}
	return keys
}

// IntKeys returns the keys of integer columns.
func (c Config) IntKeys() []string {
	var keys []string
	for _, col := range c.Columns {
		if col.Kind == engine.KindInt {
			keys = append(keys, col.Key)
		}
	}
	return keys
}
