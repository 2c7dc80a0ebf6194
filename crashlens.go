// Package crashlens answers a fixed catalog of analytical questions over a
// vehicle-crash dataset.
//
// Usage:
//
//	import "github.com/spektr-org/crashlens/catalog"
//
//	res, err := catalog.New(catalog.WithTieBreak(catalog.TieBreakKey)).
//	    Run("3", catalog.Tables{Person: persons, Unit: units})
//
// Tables are engine.View values, loaded by the provider package from CSV
// files or PostgreSQL. The catalog never reads files itself; every
// operation is a pure function of the tables it is given.
package crashlens
