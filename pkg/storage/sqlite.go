package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	sqliteFile = "records.db"
	// SQLite's default page size; max_page_count is derived from it
	sqlitePageSize = 4096
)

// SQLiteEngine stores records in a single WITHOUT ROWID table, which keeps
// them clustered in key order like the other engines.
type SQLiteEngine struct {
	db     *sql.DB
	mutex  sync.RWMutex
	isOpen bool
}

// OpenSQLite opens or creates opts.Path/records.db. The map size becomes the
// database's max_page_count, so writes past it fail with ErrMapFull.
func OpenSQLite(opts Options) (*SQLiteEngine, error) {
	synchronous := "NORMAL"
	if opts.Sync {
		synchronous = "FULL"
	}

	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", fmt.Sprintf("synchronous(%s)", synchronous))
	params.Add("_pragma", fmt.Sprintf("max_page_count(%d)", opts.MaxSize/sqlitePageSize))

	dsn := "file:" + filepath.Join(opts.Path, sqliteFile) + "?" + params.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; pragmas are per connection and must survive.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (k BLOB PRIMARY KEY, v BLOB) WITHOUT ROWID`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &SQLiteEngine{db: db, isOpen: true}, nil
}

// Get retrieves a value for a key
func (e *SQLiteEngine) Get(key []byte) ([]byte, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if !e.isOpen {
		return nil, ErrClosed
	}

	var value []byte
	err := e.db.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Put stores a key-value pair
func (e *SQLiteEngine) Put(key, value []byte) error {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if !e.isOpen {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrInvalidKey
	}

	_, err := e.db.Exec(`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, key, value)
	return translateSQLiteError(err)
}

// Delete removes a key
func (e *SQLiteEngine) Delete(key []byte) error {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if !e.isOpen {
		return ErrClosed
	}

	_, err := e.db.Exec(`DELETE FROM kv WHERE k = ?`, key)
	return translateSQLiteError(err)
}

// Close closes the database
func (e *SQLiteEngine) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.isOpen {
		return nil
	}
	e.isOpen = false

	return e.db.Close()
}

func translateSQLiteError(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_FULL {
		return fmt.Errorf("%w: %v", ErrMapFull, err)
	}
	return err
}
