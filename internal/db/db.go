package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	dbFileName = "fuel.db"

	// DriverModernc is the pure-Go SQLite driver (default).
	DriverModernc = "sqlite"
	// DriverCgo is the mattn cgo SQLite driver.
	DriverCgo = "sqlite3"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrNotInitialized is returned by Open when the store was never created
	ErrNotInitialized = errors.New("store not found: run 'fuel init' first")
)

// DB wraps the database connection
type DB struct {
	conn    *sql.DB
	dataDir string
	driver  string

	// writeMu serializes writers inside this process; the file lock
	// covers other processes sharing the same data dir.
	writeMu sync.Mutex

	hookMu    sync.RWMutex
	onEnqueue func()

	now func() time.Time
}

// Option configures a DB at open time
type Option func(*DB)

// WithDriver selects the database/sql driver name ("sqlite" or "sqlite3").
func WithDriver(name string) Option {
	return func(db *DB) {
		if name != "" {
			db.driver = name
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		if now != nil {
			db.now = now
		}
	}
}

// Open opens an existing store and runs any pending migrations
func Open(dataDir string, opts ...Option) (*DB, error) {
	dbPath := filepath.Join(dataDir, dbFileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, ErrNotInitialized
	}

	db, err := open(dataDir, opts)
	if err != nil {
		return nil, err
	}

	if _, err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Initialize creates the store if needed and runs migrations
func Initialize(dataDir string, opts ...Option) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := open(dataDir, opts)
	if err != nil {
		return nil, err
	}

	if _, err := db.conn.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	if _, err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func open(dataDir string, opts []Option) (*DB, error) {
	db := &DB{dataDir: dataDir, driver: DriverModernc, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}

	conn, err := sql.Open(db.driver, filepath.Join(dataDir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL keeps readers unblocked while a drain pass writes
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Matches the write lock timeout
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	conn.Exec("PRAGMA synchronous=NORMAL")

	db.conn = conn
	return db, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.conn.Close()
}

// DataDir returns the directory holding the store
func (db *DB) DataDir() string {
	return db.dataDir
}

// Conn returns the underlying connection for read-only queries
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// SetEnqueueHook registers fn to run after every committed outbox append.
// The hook must not block; it is used to wake the sync engine.
func (db *DB) SetEnqueueHook(fn func()) {
	db.hookMu.Lock()
	db.onEnqueue = fn
	db.hookMu.Unlock()
}

func (db *DB) notifyEnqueue() {
	db.hookMu.RLock()
	fn := db.onEnqueue
	db.hookMu.RUnlock()
	if fn != nil {
		fn()
	}
}

// withWriteLock executes fn while holding the in-process mutex and the
// cross-process file lock.
func (db *DB) withWriteLock(fn func() error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	locker := newWriteLocker(db.dataDir)
	if err := locker.acquire(defaultTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}

// writeTx runs fn inside a transaction under the write lock. The
// transaction is committed only if fn returns nil.
func (db *DB) writeTx(fn func(tx *sql.Tx) error) error {
	return db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}
