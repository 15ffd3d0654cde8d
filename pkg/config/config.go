// Package config loads the YAML configuration of the visdata tools.
package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bisegni/visdata/pkg/access"
	"github.com/bisegni/visdata/pkg/bufstore"
	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/logging"
	"github.com/bisegni/visdata/pkg/simulate"
)

// Config is the top level configuration file.
type Config struct {
	// Dataset is the default dataset path (JSON, JSONL or SQLite).
	Dataset   string          `yaml:"dataset,omitempty"`
	Iteration IterationConfig `yaml:"iteration"`
	Buffers   bufstore.Config `yaml:"buffers"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Logging   logging.Config  `yaml:"logging"`
	Simulate  simulate.Config `yaml:"simulate"`
}

// IterationConfig holds the settings applied to every data source.
type IterationConfig struct {
	// MaxChunkSize of 0 leaves chunks unbounded.
	MaxChunkSize      int      `yaml:"max_chunk_size,omitempty"`
	DataColumn        string   `yaml:"data_column"`
	ExtraColumns      []string `yaml:"extra_columns,omitempty"`
	UVWCacheSize      int      `yaml:"uvw_cache_size"`
	UVWCacheTolerance float64  `yaml:"uvw_cache_tolerance"`
}

// SQLiteConfig tunes SQLite datasets.
type SQLiteConfig struct {
	CacheSize   int    `yaml:"cache_size"`
	JournalMode string `yaml:"journal_mode"`
	Synchronous string `yaml:"synchronous"`
	BusyTimeout int    `yaml:"busy_timeout"`
	ReadOnly    bool   `yaml:"read_only"`
}

func DefaultConfig() Config {
	opts := access.DefaultOptions()
	sq := database.DefaultSQLiteConfig()
	return Config{
		Iteration: IterationConfig{
			DataColumn:        opts.DataColumn,
			UVWCacheSize:      opts.UVWCacheSize,
			UVWCacheTolerance: opts.UVWCacheTolerance,
		},
		Buffers: bufstore.DefaultConfig(),
		SQLite: SQLiteConfig{
			CacheSize:   sq.CacheSize,
			JournalMode: sq.JournalMode,
			Synchronous: sq.Synchronous,
			BusyTimeout: sq.BusyTimeout,
		},
		Logging:  logging.Config{Level: logging.LevelInfo, Format: "text"},
		Simulate: simulate.DefaultConfig(),
	}
}

// Parse reads a configuration from YAML. Missing keys keep their default.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: invalid YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the configuration file at path. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %s: %w", path, err)
	}
	return Parse(data)
}

func (c *Config) Validate() error {
	if c.Iteration.MaxChunkSize < 0 {
		return fmt.Errorf("config: iteration.max_chunk_size must not be negative")
	}
	if c.Iteration.DataColumn == "" {
		return fmt.Errorf("config: iteration.data_column is required")
	}
	if c.Iteration.UVWCacheSize <= 0 {
		return fmt.Errorf("config: iteration.uvw_cache_size must be positive")
	}
	if c.Iteration.UVWCacheTolerance < 0 {
		return fmt.Errorf("config: iteration.uvw_cache_tolerance must not be negative")
	}
	if err := c.Buffers.Validate(); err != nil {
		return fmt.Errorf("config: buffers: %w", err)
	}
	if _, err := logging.ParseLevel(string(c.Logging.Level)); err != nil {
		return fmt.Errorf("config: logging: %w", err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// Marshal returns the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// SQLiteTableConfig returns the settings used to open a SQLite dataset.
func (c *Config) SQLiteTableConfig(path string) database.SQLiteConfig {
	return database.SQLiteConfig{
		Path:        path,
		CacheSize:   c.SQLite.CacheSize,
		JournalMode: c.SQLite.JournalMode,
		Synchronous: c.SQLite.Synchronous,
		BusyTimeout: c.SQLite.BusyTimeout,
		ReadOnly:    c.SQLite.ReadOnly,
	}
}

// Apply configures a data source with the iteration settings.
func (c *Config) Apply(ds *access.DataSource) error {
	if c.Iteration.MaxChunkSize > 0 {
		if err := ds.ConfigureMaxChunkSize(c.Iteration.MaxChunkSize); err != nil {
			return err
		}
	}
	if err := ds.ConfigureUVWCache(c.Iteration.UVWCacheSize, c.Iteration.UVWCacheTolerance); err != nil {
		return err
	}
	if err := ds.ConfigureDefaultDataColumn(c.Iteration.DataColumn); err != nil {
		return err
	}
	return ds.ConfigureExtraColumns(c.Iteration.ExtraColumns...)
}

// OpenDataSource opens the dataset at path (the configured dataset when
// path is empty), applies the iteration settings and attaches the buffer
// store.
func (c *Config) OpenDataSource(ctx context.Context, path string) (*access.DataSource, error) {
	if path == "" {
		path = c.Dataset
	}
	if path == "" {
		return nil, fmt.Errorf("no dataset given")
	}
	table, err := database.OpenDataset(path, c.SQLiteTableConfig(path))
	if err != nil {
		return nil, err
	}
	ds, err := access.NewDataSource(table)
	if err != nil {
		table.Close()
		return nil, err
	}
	if err := c.Apply(ds); err != nil {
		ds.Close()
		return nil, err
	}
	store, err := bufstore.Open(ctx, c.Buffers)
	if err != nil {
		ds.Close()
		return nil, err
	}
	ds.SetBufferStore(store)
	return ds, nil
}
