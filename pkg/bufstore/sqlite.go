package bufstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// SQLiteBackendConfig configures a buffer store kept in a SQLite file.
type SQLiteBackendConfig struct {
	// Path to the SQLite database file
	Path string

	// CacheSize is the page cache size in KB
	CacheSize int

	// JournalMode sets the journal mode (WAL, DELETE, TRUNCATE, ...)
	JournalMode string

	// Synchronous sets the synchronous flag (OFF, NORMAL, FULL, EXTRA)
	Synchronous string

	// BusyTimeout is the lock timeout in milliseconds
	BusyTimeout int
}

// DefaultSQLiteBackendConfig returns default configuration.
func DefaultSQLiteBackendConfig() SQLiteBackendConfig {
	return SQLiteBackendConfig{
		Path:        "buffers.db",
		CacheSize:   2000,
		JournalMode: "WAL",
		Synchronous: "NORMAL",
		BusyTimeout: 5000,
	}
}

// SQLiteBackend keeps blobs in a single key/value table.
type SQLiteBackend struct {
	db     *sql.DB
	config SQLiteBackendConfig
	mu     sync.RWMutex
	closed bool

	insertStmt *sql.Stmt
	selectStmt *sql.Stmt
	deleteStmt *sql.Stmt
	existsStmt *sql.Stmt
	listStmt   *sql.Stmt
}

// NewSQLiteBackend opens (creating if needed) a buffer database.
func NewSQLiteBackend(config SQLiteBackendConfig) (*SQLiteBackend, error) {
	def := DefaultSQLiteBackendConfig()
	if config.Path == "" {
		config.Path = def.Path
	}
	if config.CacheSize <= 0 {
		config.CacheSize = def.CacheSize
	}
	if config.JournalMode == "" {
		config.JournalMode = def.JournalMode
	}
	if config.Synchronous == "" {
		config.Synchronous = def.Synchronous
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = def.BusyTimeout
	}

	dsn := fmt.Sprintf("%s?_pragma=cache_size(-%d)&_pragma=journal_mode(%s)&_pragma=synchronous(%s)&_pragma=busy_timeout(%d)",
		config.Path, config.CacheSize, config.JournalMode, config.Synchronous, config.BusyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db, config: config}
	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := b.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return b, nil
}

func (s *SQLiteBackend) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS buffers (
			key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			size INTEGER NOT NULL
		);
	`)
	return err
}

func (s *SQLiteBackend) prepareStatements() error {
	var err error
	s.insertStmt, err = s.db.Prepare(`INSERT OR REPLACE INTO buffers (key, data, updated_at, size) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	s.selectStmt, err = s.db.Prepare(`SELECT data FROM buffers WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare select statement: %w", err)
	}
	s.deleteStmt, err = s.db.Prepare(`DELETE FROM buffers WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	s.existsStmt, err = s.db.Prepare(`SELECT 1 FROM buffers WHERE key = ? LIMIT 1`)
	if err != nil {
		return fmt.Errorf("failed to prepare exists statement: %w", err)
	}
	s.listStmt, err = s.db.Prepare(`SELECT key FROM buffers WHERE substr(key, 1, ?) = ? ORDER BY key`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("backend is closed")
	}
	return nil
}

func (s *SQLiteBackend) Read(ctx context.Context, key string) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.selectStmt.QueryRowContext(ctx, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("buffer %s: %w", key, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read buffer: %w", err)
	}
	return data, nil
}

func (s *SQLiteBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.insertStmt.ExecContext(ctx, key, data, time.Now().UnixNano(), len(data)); err != nil {
		return fmt.Errorf("failed to write buffer: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.deleteStmt.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("failed to delete buffer: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.listStmt.QueryContext(ctx, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list buffers: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteBackend) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	var one int
	err := s.existsStmt.QueryRowContext(ctx, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check buffer: %w", err)
	}
	return true, nil
}

func (s *SQLiteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, stmt := range []*sql.Stmt{s.insertStmt, s.selectStmt, s.deleteStmt, s.existsStmt, s.listStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}
