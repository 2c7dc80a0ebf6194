package engine

import (
	"fmt"

	"github.com/spektr-org/crashlens/apperrors"
)

// ============================================================================
// JOIN — Hash Equi-Join via View
// ============================================================================
// Build phase hashes the right input on the join keys; probe phase walks the
// left input in order. Output order is left row order, then right match
// order. Null keys never match.
// ============================================================================

// JoinKind selects inner or left-outer semantics.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
)

func (k JoinKind) String() string {
	if k == LeftJoin {
		return "left"
	}
	return "inner"
}

// JoinOptions bounds join execution.
type JoinOptions struct {
	// MaxRows aborts the join once its output would exceed this many rows.
	// Zero means unbounded.
	MaxRows int
}

// Join equi-joins left and right on keys.
func Join(left, right View, keys []string, kind JoinKind, opts ...JoinOptions) (*JoinView, error) {
	var opt JoinOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	leftCols, err := resolve(left, keys...)
	if err != nil {
		return nil, err
	}
	rightCols, err := resolve(right, keys...)
	if err != nil {
		return nil, err
	}

	// Build
	hash := make(map[string][]int, right.Len())
	for i := 0; i < right.Len(); i++ {
		if hasNullKey(right, i, rightCols) {
			continue
		}
		k := groupKey(right, i, rightCols)
		hash[k] = append(hash[k], i)
	}

	// Probe
	pairs := make([]rowPair, 0, left.Len())
	for i := 0; i < left.Len(); i++ {
		var matches []int
		if !hasNullKey(left, i, leftCols) {
			matches = hash[groupKey(left, i, leftCols)]
		}
		switch {
		case len(matches) > 0:
			for _, r := range matches {
				pairs = append(pairs, rowPair{left: i, right: r})
			}
		case kind == LeftJoin:
			pairs = append(pairs, rowPair{left: i, right: -1})
		}
		if opt.MaxRows > 0 && len(pairs) > opt.MaxRows {
			return nil, &apperrors.EngineExecutionError{
				Err: fmt.Errorf("%s join of %s and %s exceeded %d rows",
					kind, left.Name(), right.Name(), opt.MaxRows),
			}
		}
	}

	return newJoinView(left, right, keys, pairs)
}

func hasNullKey(v View, row int, cols []int) bool {
	for _, c := range cols {
		if !v.Cell(row, c).Valid {
			return true
		}
	}
	return false
}
