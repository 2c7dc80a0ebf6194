package catalog

import (
	"go.uber.org/zap"

	"github.com/spektr-org/crashlens/engine"
)

// ============================================================================
// CATALOG OPTIONS — Functional options for New()
// ============================================================================

// TieBreak selects how equal metrics are ordered in ranked results.
type TieBreak int

const (
	// TieBreakStable keeps the order in which groups first appear in the input.
	TieBreakStable TieBreak = iota
	// TieBreakKey orders equal metrics by grouping key, ascending.
	TieBreakKey
)

// Option configures catalog behavior via functional options pattern.
type Option func(*config)

type config struct {
	tieBreak    TieBreak
	maxJoinRows int
	logger      *zap.Logger
}

// WithTieBreak sets the ranking tie-break rule.
func WithTieBreak(tb TieBreak) Option {
	return func(c *config) {
		c.tieBreak = tb
	}
}

// WithMaxJoinRows caps the rows any single join may produce.
// Zero disables the cap.
func WithMaxJoinRows(n int) Option {
	return func(c *config) {
		c.maxJoinRows = n
	}
}

// WithLogger sets the logger used for per-question run logs.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func applyOptions(opts []Option) *config {
	cfg := &config{
		tieBreak: TieBreakStable,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// rank returns desc(metric) followed by the configured tie-break on keys.
func (c *config) rank(metric string, keys ...string) []engine.SortKey {
	order := []engine.SortKey{engine.Desc(metric)}
	if c.tieBreak == TieBreakKey {
		for _, k := range keys {
			order = append(order, engine.Asc(k))
		}
	}
	return order
}

func (c *config) joinOptions() engine.JoinOptions {
	return engine.JoinOptions{MaxRows: c.maxJoinRows}
}
