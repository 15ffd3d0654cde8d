package bufstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bisegni/visdata/pkg/database"
	"github.com/bisegni/visdata/pkg/errs"
	"github.com/bisegni/visdata/pkg/logging"
)

// Backend names accepted by Config.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// Config selects and configures the backend of a Store.
type Config struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"` // directory (file) or database file (sqlite)
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Compress  bool   `yaml:"compress"`
}

// DefaultConfig keeps buffers in memory, compressed.
func DefaultConfig() Config {
	return Config{Backend: BackendMemory, Compress: true}
}

// Validate checks that the backend has what it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, "":
	case BackendFile, BackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("%s buffer backend requires a path", c.Backend)
		}
	case BackendS3:
		if c.Bucket == "" {
			return fmt.Errorf("s3 buffer backend requires a bucket")
		}
	default:
		return fmt.Errorf("unknown buffer backend %q", c.Backend)
	}
	return nil
}

// Open builds the configured backend and wraps it in a Store.
func Open(ctx context.Context, c Config) (*Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var (
		b   Backend
		err error
	)
	switch c.Backend {
	case BackendFile:
		b, err = NewFileBackend(c.Path)
	case BackendSQLite:
		cfg := DefaultSQLiteBackendConfig()
		cfg.Path = c.Path
		b, err = NewSQLiteBackend(cfg)
	case BackendS3:
		b, err = NewS3Backend(ctx, S3BackendConfig{
			Bucket:          c.Bucket,
			Region:          c.Region,
			Endpoint:        c.Endpoint,
			AccessKeyID:     c.AccessKey,
			SecretAccessKey: c.SecretKey,
			Prefix:          c.Prefix,
			UsePathStyle:    c.Endpoint != "",
		})
	default:
		b = NewMemoryBackend()
	}
	if err != nil {
		return nil, errs.IO(err, "cannot open %s buffer store", c.Backend)
	}
	return NewStore(b, c.Compress), nil
}

// Store keeps one cube per buffer name and iteration.
type Store struct {
	backend  Backend
	compress bool
}

func NewStore(b Backend, compress bool) *Store {
	return &Store{backend: b, compress: compress}
}

// NewMemoryStore returns an uncompressed in-memory store.
func NewMemoryStore() *Store {
	return NewStore(NewMemoryBackend(), false)
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid buffer name %q", name)
	}
	return nil
}

func key(name string, iteration int) string {
	return fmt.Sprintf("%s/%010d", name, iteration)
}

// Exists reports whether a buffer was written for the iteration.
func (s *Store) Exists(ctx context.Context, name string, iteration int) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	return s.backend.Exists(ctx, key(name, iteration))
}

// Read returns the buffer of an iteration. A missing buffer is reported
// with an error satisfying errors.Is(err, os.ErrNotExist).
func (s *Store) Read(ctx context.Context, name string, iteration int) (*database.Cube[complex64], error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := s.backend.Read(ctx, key(name, iteration))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, errs.IO(err, "cannot read buffer %s at iteration %d", name, iteration)
	}
	c, err := DecodeCube(data)
	if err != nil {
		return nil, errs.IO(err, "corrupt buffer %s at iteration %d", name, iteration)
	}
	return c, nil
}

func (s *Store) Write(ctx context.Context, name string, iteration int, c *database.Cube[complex64]) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := s.backend.Write(ctx, key(name, iteration), EncodeCube(c, s.compress)); err != nil {
		return errs.IO(err, "cannot write buffer %s at iteration %d", name, iteration)
	}
	logging.Component("bufstore").Debug("buffer written", "name", name, "iteration", iteration, "shape", c.String())
	return nil
}

// Iterations lists the iterations stored for a buffer in ascending order.
func (s *Store) Iterations(ctx context.Context, name string) ([]int, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	keys, err := s.backend.List(ctx, name+"/")
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(keys))
	for _, k := range keys {
		n, err := strconv.Atoi(strings.TrimPrefix(k, name+"/"))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Delete removes every iteration of a buffer.
func (s *Store) Delete(ctx context.Context, name string) error {
	iters, err := s.Iterations(ctx, name)
	if err != nil {
		return err
	}
	for _, it := range iters {
		if err := s.backend.Delete(ctx, key(name, it)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}
