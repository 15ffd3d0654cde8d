package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Catalog manages a collection of named datasets.
type Catalog struct {
	tables map[string]Table
	mu     sync.RWMutex
}

// NewCatalog creates a new empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		tables: make(map[string]Table),
	}
}

// RegisterTable adds a table to the catalog, closing any table previously
// registered under the same name.
func (c *Catalog) RegisterTable(name string, t Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.tables[name]; ok && old != t {
		old.Close()
	}
	c.tables[name] = t
}

// GetTable retrieves a table by name
func (c *Catalog) GetTable(name string) (Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, fmt.Errorf("dataset '%s' not found", name)
	}
	return t, nil
}

// Names returns the registered names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for n := range c.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close closes every registered table.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errList []error
	for name, t := range c.tables {
		if err := t.Close(); err != nil {
			errList = append(errList, fmt.Errorf("%s: %w", name, err))
		}
	}
	c.tables = make(map[string]Table)
	return errors.Join(errList...)
}

// IsSQLitePath reports whether a dataset path names a SQLite file.
func IsSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// OpenDataset opens a dataset by file extension: SQLite files through
// OpenSQLiteTable with cfg, anything else as JSON or JSONL.
func OpenDataset(path string, cfg SQLiteConfig) (Table, error) {
	if IsSQLitePath(path) {
		cfg.Path = path
		return OpenSQLiteTable(cfg)
	}
	return LoadJSON(path)
}
