package catalog

import (
	"github.com/spektr-org/crashlens/apperrors"
	"github.com/spektr-org/crashlens/engine"
)

// ============================================================================
// QUERIES — the ten analytical operations
// ============================================================================
// Each operation checks its inputs, builds a pipeline of engine operators and
// returns a count or a ranked table. Any failure is returned with the
// operation name attached.
// ============================================================================

const (
	opCrashesWithMoreThan2MaleDeaths                 = "CrashesWithMoreThan2MaleDeaths"
	opCrashesInvolvingTwoWheelers                    = "CrashesInvolvingTwoWheelers"
	opTopVehiclesWithDriverDeathsAndNoAirbags        = "TopVehiclesWithDriverDeathsAndNoAirbags"
	opValidLicenseDriversInHitAndRun                 = "ValidLicenseDriversInHitAndRun"
	opStatesWithoutFemalesInAccidents                = "StatesWithoutFemalesInAccidents"
	opTopVehiclesContributingToInjuries              = "TopVehiclesContributingToInjuries"
	opTopEthnicGroupsForBodyStyles                   = "TopEthnicGroupsForBodyStyles"
	opTopZipCodesWithAlcoholCrashes                  = "TopZipCodesWithAlcoholCrashes"
	opCrashesWithNoDamagedPropertyAndHighDamageLevel = "CrashesWithNoDamagedPropertyAndHighDamageLevel"
	opTopSpeedingVehiclesByColorAndState             = "TopSpeedingVehiclesByColorAndState"
)

// Column names used by the queries.
const (
	ColCrashID          = "CRASH_ID"
	ColUnitNbr          = "UNIT_NBR"
	ColGender           = "PRSN_GNDR_ID"
	ColPersonType       = "PRSN_TYPE_ID"
	ColAirbag           = "PRSN_AIRBAG_ID"
	ColLicenseType      = "DRVR_LIC_TYPE_ID"
	ColLicenseState     = "DRVR_LIC_STATE_ID"
	ColAlcoholResult    = "PRSN_ALC_RSLT_ID"
	ColDriverZip        = "DRVR_ZIP"
	ColEthnicity        = "PRSN_ETHNICITY_ID"
	ColDeathCount       = "DEATH_CNT"
	ColBodyStyle        = "VEH_BODY_STYL_ID"
	ColMake             = "VEH_MAKE_ID"
	ColColor            = "VEH_COLOR_ID"
	ColVehicleState     = "VEH_LIC_STATE_ID"
	ColDamageScale1     = "VEH_DMAG_SCL_1_ID"
	ColDamageScale2     = "VEH_DMAG_SCL_2_ID"
	ColInjuryCount      = "TOT_INJRY_CNT"
	ColDamagedProperty  = "DAMAGED_PROPERTY"
	ColCharge           = "CHARGE"
	ColCount            = "count"
	ColInjuryCountTotal = "InjuryCount"
	colMaleDeaths       = "MALE_DEATH_CNT"
	colCrashCount       = "crash_count"
)

const (
	topN         = 5
	topColors    = 10
	topStates    = 25
	highDamage   = 4
	maleDeathMin = 2
)

var (
	unitPersonKey = []string{ColCrashID, ColUnitNbr}
	crashKey      = []string{ColCrashID}
)

// CrashesWithMoreThan2MaleDeaths counts crashes whose male deaths sum above two.
func (c *Catalog) CrashesWithMoreThan2MaleDeaths(t Tables) (int64, error) {
	const op = opCrashesWithMoreThan2MaleDeaths
	if err := t.require(op, PersonTable); err != nil {
		return 0, err
	}

	males, err := engine.Filter(t.Person,
		engine.Equals(ColGender, "MALE"),
		engine.IntGreater(ColDeathCount, 0),
	)
	if err != nil {
		return 0, fail(op, err)
	}
	perCrash, err := engine.GroupBy(males, crashKey, engine.Sum(ColDeathCount, colMaleDeaths))
	if err != nil {
		return 0, fail(op, err)
	}
	qualifying, err := engine.Filter(perCrash, engine.IntGreater(colMaleDeaths, maleDeathMin))
	if err != nil {
		return 0, fail(op, err)
	}
	return int64(qualifying.Len()), nil
}

// CrashesInvolvingTwoWheelers counts distinct crashes with a motorcycle or scooter.
func (c *Catalog) CrashesInvolvingTwoWheelers(t Tables) (int64, error) {
	const op = opCrashesInvolvingTwoWheelers
	if err := t.require(op, UnitTable); err != nil {
		return 0, err
	}

	twoWheelers, err := engine.Filter(t.Unit, engine.ContainsAnyFold(ColBodyStyle, "MOTORCYCLE", "SCOOTER"))
	if err != nil {
		return 0, fail(op, err)
	}
	n, err := engine.CountDistinct(twoWheelers, ColCrashID)
	if err != nil {
		return 0, fail(op, err)
	}
	return n, nil
}

// TopVehiclesWithDriverDeathsAndNoAirbags ranks makes where a driver died
// and the airbag did not deploy.
func (c *Catalog) TopVehiclesWithDriverDeathsAndNoAirbags(t Tables) (*engine.Table, error) {
	const op = opTopVehiclesWithDriverDeathsAndNoAirbags
	if err := t.require(op, UnitTable, PersonTable); err != nil {
		return nil, err
	}

	deadDrivers, err := engine.Filter(t.Person,
		engine.IntGreater(ColDeathCount, 0),
		engine.Equals(ColPersonType, "DRIVER"),
	)
	if err != nil {
		return nil, fail(op, err)
	}
	joined, err := engine.Join(t.Unit, deadDrivers, unitPersonKey, engine.InnerJoin, c.cfg.joinOptions())
	if err != nil {
		return nil, fail(op, err)
	}
	noAirbag, err := engine.Filter(joined, engine.ContainsFold(ColAirbag, "NOT DEPLOYED"))
	if err != nil {
		return nil, fail(op, err)
	}
	return c.rankGroups(op, noAirbag, []string{ColMake}, engine.Count(ColCount), topN)
}

// ValidLicenseDriversInHitAndRun counts distinct hit-and-run crashes that
// involve a person holding a driver license.
func (c *Catalog) ValidLicenseDriversInHitAndRun(t Tables) (int64, error) {
	const op = opValidLicenseDriversInHitAndRun
	if err := t.require(op, PersonTable, ChargeTable); err != nil {
		return 0, err
	}

	hitAndRun, err := engine.Filter(t.Charge, engine.ContainsFold(ColCharge, "HIT AND RUN"))
	if err != nil {
		return 0, fail(op, err)
	}
	joined, err := engine.Join(t.Person, hitAndRun, crashKey, engine.InnerJoin, c.cfg.joinOptions())
	if err != nil {
		return 0, fail(op, err)
	}
	licensed, err := engine.Filter(joined, engine.Equals(ColLicenseType, "DRIVER LICENSE"))
	if err != nil {
		return 0, fail(op, err)
	}
	n, err := engine.CountDistinct(licensed, ColCrashID)
	if err != nil {
		return 0, fail(op, err)
	}
	return n, nil
}

// StatesWithoutFemalesInAccidents ranks (crash, license state) pairs by the
// number of non-female persons. The grouping includes CRASH_ID on purpose.
func (c *Catalog) StatesWithoutFemalesInAccidents(t Tables) (*engine.Table, error) {
	const op = opStatesWithoutFemalesInAccidents
	if err := t.require(op, PersonTable); err != nil {
		return nil, err
	}

	nonFemale, err := engine.Filter(t.Person, engine.NotEquals(ColGender, "FEMALE"))
	if err != nil {
		return nil, fail(op, err)
	}
	return c.rankGroups(op, nonFemale, []string{ColCrashID, ColLicenseState}, engine.Count(ColCount), topN)
}

// TopVehiclesContributingToInjuries ranks makes by summed injury count.
func (c *Catalog) TopVehiclesContributingToInjuries(t Tables) (*engine.Table, error) {
	const op = opTopVehiclesContributingToInjuries
	if err := t.require(op, UnitTable); err != nil {
		return nil, err
	}
	return c.rankGroups(op, t.Unit, []string{ColMake}, engine.Sum(ColInjuryCount, ColInjuryCountTotal), topN)
}

// TopEthnicGroupsForBodyStyles returns the most frequent ethnicity for each
// body style, ordered by body style descending.
func (c *Catalog) TopEthnicGroupsForBodyStyles(t Tables) (*engine.Table, error) {
	const op = opTopEthnicGroupsForBodyStyles
	if err := t.require(op, UnitTable, PersonTable); err != nil {
		return nil, err
	}

	joined, err := engine.Join(t.Unit, t.Person, unitPersonKey, engine.InnerJoin, c.cfg.joinOptions())
	if err != nil {
		return nil, fail(op, err)
	}
	counts, err := engine.GroupBy(joined, []string{ColBodyStyle, ColEthnicity}, engine.Count(ColCount))
	if err != nil {
		return nil, fail(op, err)
	}
	top, err := engine.FirstPerPartition(counts, []string{ColBodyStyle}, c.cfg.rank(ColCount, ColEthnicity)...)
	if err != nil {
		return nil, fail(op, err)
	}
	ordered, err := engine.OrderBy(top, engine.Desc(ColBodyStyle))
	if err != nil {
		return nil, fail(op, err)
	}
	return engine.Materialize(ordered, op), nil
}

// TopZipCodesWithAlcoholCrashes ranks driver zip codes by alcohol-positive persons.
func (c *Catalog) TopZipCodesWithAlcoholCrashes(t Tables) (*engine.Table, error) {
	const op = opTopZipCodesWithAlcoholCrashes
	if err := t.require(op, PersonTable); err != nil {
		return nil, err
	}

	positive, err := engine.Filter(t.Person,
		engine.ContainsFold(ColAlcoholResult, "positive"),
		engine.NotNull(ColAlcoholResult),
		engine.NotNull(ColDriverZip),
	)
	if err != nil {
		return nil, fail(op, err)
	}
	return c.rankGroups(op, positive, []string{ColDriverZip}, engine.Count(ColCount), topN)
}

// CrashesWithNoDamagedPropertyAndHighDamageLevel counts distinct crashes with
// no damaged property recorded and a vehicle damage scale above four.
func (c *Catalog) CrashesWithNoDamagedPropertyAndHighDamageLevel(t Tables) (int64, error) {
	const op = opCrashesWithNoDamagedPropertyAndHighDamageLevel
	if err := t.require(op, UnitTable, DamageTable); err != nil {
		return 0, err
	}

	damages, err := engine.Select(t.Damage, ColCrashID, ColDamagedProperty)
	if err != nil {
		return 0, fail(op, err)
	}
	joined, err := engine.Join(t.Unit, damages, crashKey, engine.LeftJoin, c.cfg.joinOptions())
	if err != nil {
		return 0, fail(op, err)
	}
	heavy, err := engine.Filter(joined,
		engine.IsNull(ColDamagedProperty),
		engine.Any(
			engine.ExtractIntGreater(ColDamageScale1, highDamage),
			engine.ExtractIntGreater(ColDamageScale2, highDamage),
		),
	)
	if err != nil {
		return 0, fail(op, err)
	}
	n, err := engine.CountDistinct(heavy, ColCrashID)
	if err != nil {
		return 0, fail(op, err)
	}
	return n, nil
}

// TopSpeedingVehiclesByColorAndState ranks makes charged with speeding,
// restricted to the ten most common colors and the 25 most common license
// states. Both sets come from the whole Unit table and are materialized
// before the charge filter runs.
func (c *Catalog) TopSpeedingVehiclesByColorAndState(t Tables) (*engine.Table, error) {
	const op = opTopSpeedingVehiclesByColorAndState
	if err := t.require(op, UnitTable, ChargeTable); err != nil {
		return nil, err
	}

	colors, err := engine.TopValues(t.Unit, ColColor, topColors, engine.Count(ColCount), c.tieBreak(ColColor)...)
	if err != nil {
		return nil, fail(op, err)
	}
	states, err := engine.TopValues(t.Unit, ColVehicleState, topStates,
		engine.CountNonNull(ColCrashID, colCrashCount), c.tieBreak(ColVehicleState)...)
	if err != nil {
		return nil, fail(op, err)
	}

	joined, err := engine.Join(t.Unit, t.Charge, crashKey, engine.LeftJoin, c.cfg.joinOptions())
	if err != nil {
		return nil, fail(op, err)
	}
	speeding, err := engine.Filter(joined,
		engine.Contains(ColCharge, "SPEED"),
		engine.In(ColColor, colors),
		engine.In(ColVehicleState, states),
	)
	if err != nil {
		return nil, fail(op, err)
	}
	return c.rankGroups(op, speeding, []string{ColMake}, engine.Count(ColCount), topN)
}

// ============================================================================
// HELPERS
// ============================================================================

// rankGroups is the shared group → order desc → limit tail of most queries.
func (c *Catalog) rankGroups(op string, view engine.View, keys []string, agg engine.Aggregate, n int) (*engine.Table, error) {
	grouped, err := engine.GroupBy(view, keys, agg)
	if err != nil {
		return nil, fail(op, err)
	}
	ordered, err := engine.OrderBy(grouped, c.cfg.rank(agg.Alias, keys...)...)
	if err != nil {
		return nil, fail(op, err)
	}
	return engine.Materialize(engine.Limit(ordered, n), op), nil
}

// tieBreak returns only the secondary keys of the configured rank.
func (c *Catalog) tieBreak(keys ...string) []engine.SortKey {
	return c.cfg.rank("", keys...)[1:]
}

func fail(op string, err error) error {
	return apperrors.WithOperation(err, op)
}
