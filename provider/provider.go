// Package provider resolves question ids to source tables and loads them.
package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spektr-org/crashlens/catalog"
	"github.com/spektr-org/crashlens/engine"
	"github.com/spektr-org/crashlens/schema"
)

// Provider loads the tables questions need from a Source.
type Provider struct {
	source   Source
	validate bool
	logger   *zap.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithValidation checks each loaded table against its declared schema.
func WithValidation(on bool) Option {
	return func(p *Provider) { p.validate = on }
}

// WithLogger sets the provider logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a provider over source.
func New(source Source, opts ...Option) *Provider {
	p := &Provider{source: source, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("provider")
	return p
}

// RequiredTables returns the union of tables the questions need, in the
// fixed order of catalog.AllTables.
func RequiredTables(ids []string) ([]catalog.TableName, error) {
	need := make(map[catalog.TableName]bool)
	for _, id := range ids {
		names, err := catalog.QuestionTables(id)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			need[n] = true
		}
	}
	var out []catalog.TableName
	for _, n := range catalog.AllTables() {
		if need[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// ForQuestions loads every table the questions need, each exactly once.
func (p *Provider) ForQuestions(ctx context.Context, ids []string) (catalog.Tables, error) {
	names, err := RequiredTables(ids)
	if err != nil {
		return catalog.Tables{}, err
	}
	return p.Tables(ctx, names)
}

// Tables loads the named tables concurrently. The first failure cancels the
// remaining loads and is returned.
func (p *Provider) Tables(ctx context.Context, names []catalog.TableName) (catalog.Tables, error) {
	var (
		mu     sync.Mutex
		tables catalog.Tables
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			t, err := p.load(gctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			tables = tables.Set(name, t)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return catalog.Tables{}, err
	}
	return tables, nil
}

func (p *Provider) load(ctx context.Context, name catalog.TableName) (engine.View, error) {
	start := time.Now()
	t, err := p.source.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	if p.validate {
		cfg, ok := schema.ForTable(name)
		if ok {
			if err := schema.Validate(t, cfg); err != nil {
				return nil, fmt.Errorf("load %s: %w", name, err)
			}
		}
	}

	p.logger.Info("table loaded",
		zap.String("table", string(name)),
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.Columns())),
		zap.Duration("elapsed", time.Since(start)))
	return t, nil
}
