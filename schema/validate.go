package schema

import (
	"github.com/spektr-org/crashlens/apperrors"
	"github.com/spektr-org/crashlens/engine"
)

// Validate checks that view carries every column in cfg and that integer
// columns hold integers or nulls. It returns the first problem found as a
// *apperrors.MalformedDataError.
func Validate(view engine.View, cfg Config) error {
	if missing := Missing(view, cfg); len(missing) > 0 {
		return &apperrors.MalformedDataError{
			Table: string(cfg.Table), Column: missing[0], Row: -1,
			Reason: "required column missing",
		}
	}
	for _, key := range cfg.IntKeys() {
		idx, err := view.Column(key)
		if err != nil {
			return err
		}
		for row := 0; row < view.Len(); row++ {
			if _, _, err := view.Cell(row, idx).Int64(); err != nil {
				return &apperrors.MalformedDataError{
					Table: string(cfg.Table), Column: key, Row: row,
					Reason: err.Error(),
				}
			}
		}
	}
	return nil
}

// Missing lists the declared columns view does not have, in declaration order.
func Missing(view engine.View, cfg Config) []string {
	var out []string
	for _, key := range cfg.Keys() {
		if _, err := view.Column(key); err != nil {
			out = append(out, key)
		}
	}
	return out
}
