package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDBEngine stores records in a goleveldb database
type LevelDBEngine struct {
	db        *leveldb.DB
	writeOpts *opt.WriteOptions
	mutex     sync.RWMutex
	isOpen    bool
}

// OpenLevelDB opens or creates a leveldb database in opts.Path
func OpenLevelDB(opts Options) (*LevelDBEngine, error) {
	db, err := leveldb.OpenFile(opts.Path, &opt.Options{
		BlockCacheCapacity: int(cacheSize(opts.MaxSize)),
	})
	if err != nil {
		return nil, err
	}

	return &LevelDBEngine{
		db:        db,
		writeOpts: &opt.WriteOptions{Sync: opts.Sync},
		isOpen:    true,
	}, nil
}

// Get retrieves a value for a key
func (e *LevelDBEngine) Get(key []byte) ([]byte, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if !e.isOpen {
		return nil, ErrClosed
	}

	// goleveldb already returns a copy
	value, err := e.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Put stores a key-value pair
func (e *LevelDBEngine) Put(key, value []byte) error {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if !e.isOpen {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrInvalidKey
	}

	return e.db.Put(key, value, e.writeOpts)
}

// Delete removes a key
func (e *LevelDBEngine) Delete(key []byte) error {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if !e.isOpen {
		return ErrClosed
	}

	return e.db.Delete(key, e.writeOpts)
}

// Close closes the database
func (e *LevelDBEngine) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.isOpen {
		return nil
	}
	e.isOpen = false

	return e.db.Close()
}
