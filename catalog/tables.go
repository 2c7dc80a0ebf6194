package catalog

import (
	"github.com/spektr-org/crashlens/apperrors"
	"github.com/spektr-org/crashlens/engine"
)

// TableName is the logical name a caller uses to supply a source table.
type TableName string

const (
	PersonTable TableName = "personDataframe"
	UnitTable   TableName = "unitsDataframe"
	DamageTable TableName = "damageDataframe"
	ChargeTable TableName = "chargesDataframe"
)

// AllTables lists every logical table in a fixed order.
func AllTables() []TableName {
	return []TableName{PersonTable, UnitTable, DamageTable, ChargeTable}
}

// Tables is the typed input of every operation. Unused fields may be nil.
type Tables struct {
	Person engine.View
	Unit   engine.View
	Damage engine.View
	Charge engine.View
}

// TablesFromMap picks the known logical names out of m. Extra keys are ignored.
func TablesFromMap(m map[string]engine.View) Tables {
	return Tables{
		Person: m[string(PersonTable)],
		Unit:   m[string(UnitTable)],
		Damage: m[string(DamageTable)],
		Charge: m[string(ChargeTable)],
	}
}

// Get returns the table registered under name, or nil.
func (t Tables) Get(name TableName) engine.View {
	var v engine.View
	switch name {
	case PersonTable:
		v = t.Person
	case UnitTable:
		v = t.Unit
	case DamageTable:
		v = t.Damage
	case ChargeTable:
		v = t.Charge
	}
	if tbl, ok := v.(*engine.Table); ok && tbl == nil {
		return nil
	}
	return v
}

// Set stores v under name and returns the updated Tables.
func (t Tables) Set(name TableName, v engine.View) Tables {
	switch name {
	case PersonTable:
		t.Person = v
	case UnitTable:
		t.Unit = v
	case DamageTable:
		t.Damage = v
	case ChargeTable:
		t.Charge = v
	}
	return t
}

// require checks that every named table is present, in declaration order.
func (t Tables) require(operation string, names ...TableName) error {
	for _, n := range names {
		if t.Get(n) == nil {
			return &apperrors.MissingInputError{Operation: operation, Table: string(n)}
		}
	}
	return nil
}
