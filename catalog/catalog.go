// Package catalog holds the ten crash-analysis questions.
//
// Every operation is a pure function of its input tables. It returns either
// a full result or an error from the apperrors taxonomy, never both and
// never neither.
package catalog

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spektr-org/crashlens/apperrors"
	"github.com/spektr-org/crashlens/engine"
)

// ResultKind tells which field of a Result carries the answer.
type ResultKind string

const (
	KindCount ResultKind = "count"
	KindTable ResultKind = "table"
)

// Result is the answer to one question.
// Exactly one of Count or Table is populated based on Kind.
type Result struct {
	Question  string        `json:"question" yaml:"question"`
	Operation string        `json:"operation" yaml:"operation"`
	Kind      ResultKind    `json:"kind" yaml:"kind"`
	Count     int64         `json:"count" yaml:"count"`
	Table     *engine.Table `json:"-" yaml:"-"`
}

// Question describes one catalog entry.
type Question struct {
	ID       string
	Name     string
	Summary  string
	Kind     ResultKind
	Requires []TableName

	count func(*Catalog, Tables) (int64, error)
	table func(*Catalog, Tables) (*engine.Table, error)
}

// Catalog runs questions under a fixed set of options. It holds no data.
type Catalog struct {
	cfg *config
}

// New creates a catalog.
func New(opts ...Option) *Catalog {
	return &Catalog{cfg: applyOptions(opts)}
}

var questions = []Question{
	{ID: "1", Name: opCrashesWithMoreThan2MaleDeaths, Kind: KindCount,
		Summary:  "Crashes in which more than two males were killed",
		Requires: []TableName{PersonTable},
		count:    (*Catalog).CrashesWithMoreThan2MaleDeaths},
	{ID: "2", Name: opCrashesInvolvingTwoWheelers, Kind: KindCount,
		Summary:  "Crashes involving two-wheelers",
		Requires: []TableName{UnitTable},
		count:    (*Catalog).CrashesInvolvingTwoWheelers},
	{ID: "3", Name: opTopVehiclesWithDriverDeathsAndNoAirbags, Kind: KindTable,
		Summary:  "Top 5 vehicle makes where the driver died and airbags did not deploy",
		Requires: []TableName{UnitTable, PersonTable},
		table:    (*Catalog).TopVehiclesWithDriverDeathsAndNoAirbags},
	{ID: "4", Name: opValidLicenseDriversInHitAndRun, Kind: KindCount,
		Summary:  "Crashes with licensed drivers involved in hit and run",
		Requires: []TableName{PersonTable, ChargeTable},
		count:    (*Catalog).ValidLicenseDriversInHitAndRun},
	{ID: "5", Name: opStatesWithoutFemalesInAccidents, Kind: KindTable,
		Summary:  "Top 5 crash/state pairs by persons involved, females excluded",
		Requires: []TableName{PersonTable},
		table:    (*Catalog).StatesWithoutFemalesInAccidents},
	{ID: "6", Name: opTopVehiclesContributingToInjuries, Kind: KindTable,
		Summary:  "Top 5 vehicle makes by total injuries",
		Requires: []TableName{UnitTable},
		table:    (*Catalog).TopVehiclesContributingToInjuries},
	{ID: "7", Name: opTopEthnicGroupsForBodyStyles, Kind: KindTable,
		Summary:  "Top ethnic group for each vehicle body style",
		Requires: []TableName{UnitTable, PersonTable},
		table:    (*Catalog).TopEthnicGroupsForBodyStyles},
	{ID: "8", Name: opTopZipCodesWithAlcoholCrashes, Kind: KindTable,
		Summary:  "Top 5 driver zip codes with alcohol-positive crashes",
		Requires: []TableName{PersonTable},
		table:    (*Catalog).TopZipCodesWithAlcoholCrashes},
	{ID: "9", Name: opCrashesWithNoDamagedPropertyAndHighDamageLevel, Kind: KindCount,
		Summary:  "Crashes with no damaged property and vehicle damage level above 4",
		Requires: []TableName{UnitTable, DamageTable},
		count:    (*Catalog).CrashesWithNoDamagedPropertyAndHighDamageLevel},
	{ID: "10", Name: opTopSpeedingVehiclesByColorAndState, Kind: KindTable,
		Summary:  "Top 5 makes charged with speeding among top colors and states",
		Requires: []TableName{UnitTable, ChargeTable},
		table:    (*Catalog).TopSpeedingVehiclesByColorAndState},
}

var questionIndex = func() map[string]int {
	m := make(map[string]int, len(questions))
	for i, q := range questions {
		m[q.ID] = i
	}
	return m
}()

// Questions returns the catalog entries in question order.
func Questions() []Question {
	out := make([]Question, len(questions))
	for i, q := range questions {
		out[i] = q
		out[i].Requires = append([]TableName(nil), q.Requires...)
	}
	return out
}

// Lookup finds a question by id.
func Lookup(id string) (Question, bool) {
	i, ok := questionIndex[id]
	if !ok {
		return Question{}, false
	}
	q := questions[i]
	q.Requires = append([]TableName(nil), q.Requires...)
	return q, true
}

// QuestionTables returns the tables a question needs, in load order.
func QuestionTables(id string) ([]TableName, error) {
	q, ok := Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownQuestion, id)
	}
	return q.Requires, nil
}

// Run answers question id against tables.
// A panic inside the engine is reported as an EngineExecutionError.
func (c *Catalog) Run(id string, tables Tables) (res *Result, err error) {
	i, ok := questionIndex[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownQuestion, id)
	}
	q := questions[i]

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &apperrors.EngineExecutionError{Operation: q.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	start := time.Now()
	res = &Result{Question: q.ID, Operation: q.Name, Kind: q.Kind}
	switch q.Kind {
	case KindCount:
		res.Count, err = q.count(c, tables)
	default:
		res.Table, err = q.table(c, tables)
	}
	if err != nil {
		c.cfg.logger.Debug("question failed",
			zap.String("question", q.ID),
			zap.String("operation", q.Name),
			zap.Error(err))
		return nil, err
	}

	fields := []zap.Field{
		zap.String("question", q.ID),
		zap.String("operation", q.Name),
		zap.Duration("elapsed", time.Since(start)),
	}
	if res.Table != nil {
		fields = append(fields, zap.Int("rows", res.Table.Len()))
	} else {
		fields = append(fields, zap.Int64("count", res.Count))
	}
	c.cfg.logger.Debug("question answered", fields...)
	return res, nil
}
