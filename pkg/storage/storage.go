// Package storage provides the embedded key-value engines records are kept in.
//
// Every engine exposes the same small contract: get, put and delete of whole
// values under byte-string keys in a single ordered key space. Engines are
// opened once, shared by every worker, and closed once on shutdown. Each call
// is a single atomic unit of work; engines do their own synchronization.
package storage

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
)

const (
	DriverPebble  = "pebble"
	DriverLevelDB = "leveldb"
	DriverSQLite  = "sqlite"
	DriverLog     = "log"
	DriverMemory  = "memory"

	// DefaultMaxSize is the 512 MiB map size used when none is configured
	DefaultMaxSize int64 = 512 * 1024 * 1024
)

// Errors
var (
	ErrNotFound      = errors.New("key not found")
	ErrMapFull       = errors.New("store map size exceeded")
	ErrClosed        = errors.New("store is closed")
	ErrInvalidKey    = errors.New("invalid key")
	ErrCorruption    = errors.New("data corruption detected")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Engine is the store boundary records are written through
type Engine interface {
	// Get returns a copy of the value stored under key, or ErrNotFound
	Get(key []byte) ([]byte, error)
	// Put stores value under key, replacing any existing value
	Put(key, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error
	// Close releases the engine. Calls after Close fail with ErrClosed.
	Close() error
}

// Stats holds engine statistics
type Stats struct {
	Keys     int
	DataSize int64
}

// StatsProvider is implemented by engines that can report their size cheaply
type StatsProvider interface {
	Stats() Stats
}

// KeyLister is implemented by engines that can enumerate live keys by prefix.
// It exists for diagnostics; the binding never scans.
type KeyLister interface {
	ListKeys(prefix []byte) ([]string, error)
}

// Options configures an engine
type Options struct {
	Path    string             // Directory holding the engine's files
	MaxSize int64              // Map size; meaning depends on the driver
	Sync    bool               // Fsync every write
	Logger  *zap.SugaredLogger // Optional; defaults to a no-op logger
}

// Drivers returns the names of all available drivers
func Drivers() []string {
	drivers := []string{DriverPebble, DriverLevelDB, DriverSQLite, DriverLog, DriverMemory}
	sort.Strings(drivers)
	return drivers
}

// Open opens the named driver
func Open(driver string, opts Options) (Engine, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}

	if driver != DriverMemory {
		if opts.Path == "" {
			return nil, fmt.Errorf("storage path is required for driver %q", driver)
		}
		if err := os.MkdirAll(opts.Path, 0750); err != nil {
			return nil, fmt.Errorf("failed to create storage dir: %w", err)
		}
	}

	var (
		engine Engine
		err    error
	)
	switch driver {
	case DriverPebble:
		engine, err = OpenPebble(opts)
	case DriverLevelDB:
		engine, err = OpenLevelDB(opts)
	case DriverSQLite:
		engine, err = OpenSQLite(opts)
	case DriverLog:
		var recovery *RecoveryResult
		var store *LogStore
		store, recovery, err = OpenLogStore(opts)
		if err == nil {
			engine = store
			if recovery.RecordsTruncated > 0 {
				opts.Logger.Warnw("recovered log store from corruption",
					"path", opts.Path,
					"truncated", recovery.RecordsTruncated,
					"size_before", recovery.FileSizeBefore,
					"size_after", recovery.FileSizeAfter)
			}
		}
	case DriverMemory:
		engine = NewMemoryEngine(opts)
	default:
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDriver, driver, Drivers())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store at %s: %w", driver, opts.Path, err)
	}

	opts.Logger.Debugw("storage opened", "driver", driver, "path", opts.Path, "max_size", opts.MaxSize)
	return engine, nil
}

// cacheSize derives a block cache size from the configured map size
func cacheSize(maxSize int64) int64 {
	const minCache = 8 << 20
	size := maxSize / 4
	if size < minCache {
		size = minCache
	}
	return size
}
