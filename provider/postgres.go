package provider

import (
	"context"
	"database/sql/driver"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spektr-org/crashlens/catalog"
	"github.com/spektr-org/crashlens/engine"
	"github.com/spektr-org/crashlens/logging"
)

// PostgresConfig contains PostgreSQL connection options.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
	MaxConns int32
}

// ConnectionString builds a PostgreSQL URL with every user field escaped.
func (c PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.QueryEscape(c.Database),
		sslMode,
	)
}

// PostgresSource reads each logical table with SELECT * from a configured
// database table. Every column is read as text; SQL NULL stays null. Column
// names are upper-cased to match the CSV headers.
type PostgresSource struct {
	pool   *pgxpool.Pool
	tables map[catalog.TableName]string
	logger *zap.Logger
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// NewPostgresSource connects to PostgreSQL, retrying transient failures.
func NewPostgresSource(ctx context.Context, cfg PostgresConfig, tables map[catalog.TableName]string, logger *zap.Logger) (*PostgresSource, error) {
	if err := checkTableNames(tables); err != nil {
		return nil, err
	}

	connStr := cfg.ConnectionString()
	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := retryConnect(ctx, DefaultRetryConfig(), func() (*pgxpool.Pool, error) {
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres %s: %w", logging.SanitizeConnectionString(connStr), err)
	}

	src, err := NewPostgresSourceFromPool(pool, tables, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	src.logger.Info("connected", zap.String("dsn", logging.SanitizeConnectionString(connStr)))
	return src, nil
}

// NewPostgresSourceFromPool wraps an existing pool. Close closes the pool.
func NewPostgresSourceFromPool(pool *pgxpool.Pool, tables map[catalog.TableName]string, logger *zap.Logger) (*PostgresSource, error) {
	if err := checkTableNames(tables); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cp := make(map[catalog.TableName]string, len(tables))
	for k, v := range tables {
		cp[k] = v
	}
	return &PostgresSource{pool: pool, tables: cp, logger: logger.Named("postgres")}, nil
}

func checkTableNames(tables map[catalog.TableName]string) error {
	for name, table := range tables {
		if !identPattern.MatchString(table) {
			return fmt.Errorf("invalid table name %q for %s", table, name)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSource) Close() {
	s.pool.Close()
}

// Load selects every row of the table mapped to name.
func (s *PostgresSource) Load(ctx context.Context, name catalog.TableName) (*engine.Table, error) {
	table, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("no database table configured for %s", name)
	}

	start := time.Now()
	query := fmt.Sprintf("SELECT * FROM %s", pgx.Identifier(splitIdent(table)).Sanitize())
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	names := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		// unquoted identifiers fold to lower case in PostgreSQL
		names[i] = strings.ToUpper(fd.Name)
	}

	var cells [][]engine.Cell
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		row := make([]engine.Cell, len(values))
		for i, v := range values {
			row[i] = toCell(v)
		}
		cells = append(cells, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows of %s: %w", table, err)
	}

	s.logger.Debug("table loaded",
		zap.String("table", string(name)),
		zap.String("source", table),
		zap.Int("rows", len(cells)),
		zap.Duration("elapsed", time.Since(start)))

	return engine.NewTable(string(name), engine.StringColumns(names...), cells)
}

func splitIdent(s string) []string {
	if schema, table, ok := strings.Cut(s, "."); ok {
		return []string{schema, table}
	}
	return []string{s}
}

// toCell renders a driver value as text. Empty strings count as null, the
// same as an empty CSV field.
func toCell(v any) engine.Cell {
	switch x := v.(type) {
	case nil:
		return engine.Null
	case string:
		if x == "" {
			return engine.Null
		}
		return engine.Str(x)
	case []byte:
		if len(x) == 0 {
			return engine.Null
		}
		return engine.Str(string(x))
	case time.Time:
		return engine.Str(x.Format(time.RFC3339))
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return engine.Str(fmt.Sprint(x))
		}
		return toCell(dv)
	default:
		return engine.Str(fmt.Sprint(x))
	}
}
