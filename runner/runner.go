// Package runner answers several questions in one invocation.
//
// The tables every requested question needs are loaded once, then the
// questions run with bounded parallelism over those shared, read-only tables.
package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spektr-org/crashlens/apperrors"
	"github.com/spektr-org/crashlens/catalog"
)

// Loader supplies the tables for a set of questions.
type Loader interface {
	ForQuestions(ctx context.Context, ids []string) (catalog.Tables, error)
}

// Config configures the runner.
type Config struct {
	MaxConcurrent int // Maximum questions computed at once (default: 4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 4}
}

// Outcome is the answer, or the failure, of one question.
type Outcome struct {
	Question  string          `json:"question" yaml:"question"`
	Operation string          `json:"operation" yaml:"operation"`
	Result    *catalog.Result `json:"-" yaml:"-"`
	Err       error           `json:"-" yaml:"-"`
	Elapsed   time.Duration   `json:"elapsed" yaml:"elapsed"`
}

// Report is everything one invocation produced.
type Report struct {
	RunID    uuid.UUID
	Outcomes []Outcome // in request order
}

// Err combines the errors of every failed outcome, or returns nil.
func (r *Report) Err() error {
	var errs error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("question %s (%s): %w", o.Question, o.Operation, o.Err))
		}
	}
	return errs
}

// Runner runs catalog questions against tables from a Loader.
type Runner struct {
	config  Config
	loader  Loader
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// New creates a runner.
func New(config Config, loader Loader, cat *catalog.Catalog, logger *zap.Logger) *Runner {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		config:  config,
		loader:  loader,
		catalog: cat,
		logger:  logger.Named("runner"),
	}
}

// Run loads the tables ids need and answers each question. A load failure
// aborts the whole run; a question failure is recorded on its Outcome.
func (r *Runner) Run(ctx context.Context, ids []string) (*Report, error) {
	runID := uuid.New()
	logger := r.logger.With(zap.String("run_id", runID.String()))

	for _, id := range ids {
		if _, ok := catalog.Lookup(id); !ok {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownQuestion, id)
		}
	}

	start := time.Now()
	tables, err := r.loader.ForQuestions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}
	logger.Info("tables loaded",
		zap.Strings("questions", ids),
		zap.Duration("elapsed", time.Since(start)))

	outcomes := make([]Outcome, len(ids))
	sem := make(chan struct{}, r.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()

			q, _ := catalog.Lookup(id)
			outcomes[i] = Outcome{Question: q.ID, Operation: q.Name}

			// Acquire semaphore slot (blocks if at max concurrency)
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[i].Err = ctx.Err()
				return
			}

			qStart := time.Now()
			res, err := r.catalog.Run(id, tables)
			outcomes[i].Result = res
			outcomes[i].Err = err
			outcomes[i].Elapsed = time.Since(qStart)

			if err != nil {
				logger.Error("question failed",
					zap.String("question", q.ID),
					zap.String("operation", q.Name),
					zap.Error(err))
				return
			}
			logger.Info("question answered",
				zap.String("question", q.ID),
				zap.String("operation", q.Name),
				zap.Duration("elapsed", outcomes[i].Elapsed))
		}(i, id)
	}
	wg.Wait()

	return &Report{RunID: runID, Outcomes: outcomes}, nil
}

// ParseQuestions turns "all", "3" or "1,4,10" into question ids in the
// order given, without duplicates.
func ParseQuestions(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("no question selected")
	}
	if strings.EqualFold(spec, "all") {
		qs := catalog.Questions()
		ids := make([]string, len(qs))
		for i, q := range qs {
			ids[i] = q.ID
		}
		return ids, nil
	}

	seen := make(map[string]bool)
	var ids []string
	for _, part := range strings.Split(spec, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, ok := catalog.Lookup(id); !ok {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownQuestion, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no question selected")
	}
	return ids, nil
}
