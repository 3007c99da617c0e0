package storage

import (
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleEngine stores records in a pebble LSM
type PebbleEngine struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	mutex     sync.RWMutex
	isOpen    bool
}

// OpenPebble opens or creates a pebble database in opts.Path. A quarter of
// the map size is given to the block cache.
func OpenPebble(opts Options) (*PebbleEngine, error) {
	cache := pebble.NewCache(cacheSize(opts.MaxSize))
	defer cache.Unref()

	pebbleOpts := &pebble.Options{Cache: cache}
	if opts.Logger != nil {
		pebbleOpts.Logger = opts.Logger
	}

	db, err := pebble.Open(opts.Path, pebbleOpts)
	if err != nil {
		return nil, err
	}

	writeOpts := pebble.NoSync
	if opts.Sync {
		writeOpts = pebble.Sync
	}

	return &PebbleEngine{db: db, writeOpts: writeOpts, isOpen: true}, nil
}

// Get retrieves a value for a key
func (e *PebbleEngine) Get(key []byte) ([]byte, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if !e.isOpen {
		return nil, ErrClosed
	}

	data, closer, err := e.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// data is only valid until closer is closed
	value := make([]byte, len(data))
	copy(value, data)
	return value, nil
}

// Put stores a key-value pair
func (e *PebbleEngine) Put(key, value []byte) error {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if !e.isOpen {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrInvalidKey
	}

	return e.db.Set(key, value, e.writeOpts)
}

// Delete removes a key
func (e *PebbleEngine) Delete(key []byte) error {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if !e.isOpen {
		return ErrClosed
	}

	return e.db.Delete(key, e.writeOpts)
}

// Close flushes and closes the database
func (e *PebbleEngine) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.isOpen {
		return nil
	}
	e.isOpen = false

	if err := e.db.Flush(); err != nil {
		e.db.Close()
		return err
	}
	return e.db.Close()
}
