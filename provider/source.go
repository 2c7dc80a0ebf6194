package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spektr-org/crashlens/catalog"
	"github.com/spektr-org/crashlens/engine"
	"github.com/spektr-org/crashlens/helpers"
)

// Source loads one logical table.
type Source interface {
	Load(ctx context.Context, name catalog.TableName) (*engine.Table, error)
}

// CSVSource reads tables from CSV files in a directory.
type CSVSource struct {
	dir   string
	files map[catalog.TableName]string
}

// NewCSVSource creates a source reading files[name] under dir.
func NewCSVSource(dir string, files map[catalog.TableName]string) *CSVSource {
	cp := make(map[catalog.TableName]string, len(files))
	for k, v := range files {
		cp[k] = v
	}
	return &CSVSource{dir: dir, files: cp}
}

// Path returns the file a table is read from.
func (s *CSVSource) Path(name catalog.TableName) (string, error) {
	file, ok := s.files[name]
	if !ok || file == "" {
		return "", fmt.Errorf("no file configured for table %s", name)
	}
	return filepath.Join(s.dir, file), nil
}

// Load reads and parses the table's CSV file.
func (s *CSVSource) Load(ctx context.Context, name catalog.TableName) (*engine.Table, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return helpers.ReadTable(f, string(name))
}
