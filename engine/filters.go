package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/spektr-org/crashlens/apperrors"
)

// ============================================================================
// FILTERS — Predicate-Based Row Selection via View
// ============================================================================
// A Predicate binds to a view once (resolving its columns) and returns a
// per-row test. Filter runs every bound test per row in a single pass and
// returns a SubView (index list into parent) — zero data copy.
//
// Null semantics: null never equals, contains, or exceeds anything.
// NotEquals is the exception: it lets nulls through.
// ============================================================================

// RowTest reports whether a row passes.
type RowTest func(row int) (bool, error)

// Predicate binds a row test to a view.
type Predicate func(v View) (RowTest, error)

// Filter returns a view of rows passing all predicates (AND-combined).
func Filter(view View, preds ...Predicate) (View, error) {
	if len(preds) == 0 {
		return view, nil
	}

	tests := make([]RowTest, len(preds))
	for i, p := range preds {
		t, err := p(view)
		if err != nil {
			return nil, err
		}
		tests[i] = t
	}

	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pass := true
		for _, t := range tests {
			ok, err := t(i)
			if err != nil {
				return nil, err
			}
			if !ok {
				pass = false
				break
			}
		}
		if pass {
			indices = append(indices, i)
		}
	}

	return newSubView(view, indices), nil
}

// cellTest adapts a per-cell check into a Predicate on one column.
func cellTest(column string, fn func(c Cell) bool) Predicate {
	return func(v View) (RowTest, error) {
		col, err := v.Column(column)
		if err != nil {
			return nil, err
		}
		return func(row int) (bool, error) {
			return fn(v.Cell(row, col)), nil
		}, nil
	}
}

// Equals passes rows whose column equals value exactly.
func Equals(column, value string) Predicate {
	return cellTest(column, func(c Cell) bool { return c.Valid && c.Value == value })
}

// NotEquals passes rows whose column differs from value, including nulls.
func NotEquals(column, value string) Predicate {
	return cellTest(column, func(c Cell) bool { return !c.Valid || c.Value != value })
}

// Contains passes rows whose column contains substr (case-sensitive).
func Contains(column, substr string) Predicate {
	return cellTest(column, func(c Cell) bool { return c.Valid && strings.Contains(c.Value, substr) })
}

// ContainsFold passes rows whose column contains substr, ignoring case.
func ContainsFold(column, substr string) Predicate {
	needle := strings.ToLower(substr)
	return cellTest(column, func(c Cell) bool {
		return c.Valid && strings.Contains(strings.ToLower(c.Value), needle)
	})
}

// ContainsAnyFold passes rows whose column contains any of substrs, ignoring case.
func ContainsAnyFold(column string, substrs ...string) Predicate {
	needles := make([]string, len(substrs))
	for i, s := range substrs {
		needles[i] = strings.ToLower(s)
	}
	return cellTest(column, func(c Cell) bool {
		if !c.Valid {
			return false
		}
		val := strings.ToLower(c.Value)
		for _, n := range needles {
			if strings.Contains(val, n) {
				return true
			}
		}
		return false
	})
}

func NotNull(column string) Predicate {
	return cellTest(column, func(c Cell) bool { return c.Valid })
}

func IsNull(column string) Predicate {
	return cellTest(column, func(c Cell) bool { return !c.Valid })
}

// In passes rows whose column is a member of set. Null is never a member.
func In(column string, set []Cell) Predicate {
	members := make(map[string]bool, len(set))
	for _, c := range set {
		if c.Valid {
			members[c.Value] = true
		}
	}
	return cellTest(column, func(c Cell) bool { return c.Valid && members[c.Value] })
}

// IntGreater passes rows whose integer column exceeds n.
// A non-null value that is not an integer is malformed data.
func IntGreater(column string, n int64) Predicate {
	return func(v View) (RowTest, error) {
		col, err := v.Column(column)
		if err != nil {
			return nil, err
		}
		return func(row int) (bool, error) {
			val, ok, err := v.Cell(row, col).Int64()
			if err != nil {
				return false, &apperrors.MalformedDataError{
					Table: v.Name(), Column: column, Row: row, Reason: err.Error(),
				}
			}
			return ok && val > n, nil
		}, nil
	}
}

var digitRun = regexp.MustCompile(`\d+`)

// ExtractInt returns the first run of digits in s.
// ok is false when s holds no digits.
func ExtractInt(s string) (int64, bool) {
	m := digitRun.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractIntGreater passes rows where the first digit run of column exceeds n.
// Nulls and values without digits never pass.
func ExtractIntGreater(column string, n int64) Predicate {
	return cellTest(column, func(c Cell) bool {
		if !c.Valid {
			return false
		}
		val, ok := ExtractInt(c.Value)
		return ok && val > n
	})
}

// Any passes rows accepted by at least one of preds (OR-combined).
func Any(preds ...Predicate) Predicate {
	return func(v View) (RowTest, error) {
		tests := make([]RowTest, len(preds))
		for i, p := range preds {
			t, err := p(v)
			if err != nil {
				return nil, err
			}
			tests[i] = t
		}
		return func(row int) (bool, error) {
			for _, t := range tests {
				ok, err := t(row)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
			return false, nil
		}, nil
	}
}
