package storage

import (
	"strings"
	"sync"

	"github.com/google/btree"
)

const memoryDegree = 32

type memItem struct {
	key   string
	value []byte
}

func (i memItem) Less(than btree.Item) bool {
	return i.key < than.(memItem).key
}

func (i memItem) size() int64 {
	return int64(len(i.key) + len(i.value))
}

// MemoryEngine keeps records in an in-process B-tree. Nothing is persisted;
// it backs tests and dry runs of a workload.
type MemoryEngine struct {
	tree    *btree.BTree
	mutex   sync.RWMutex
	size    int64
	maxSize int64
	isOpen  bool
}

// NewMemoryEngine creates an empty engine holding at most opts.MaxSize bytes
// of keys and values
func NewMemoryEngine(opts Options) *MemoryEngine {
	return &MemoryEngine{
		tree:    btree.New(memoryDegree),
		maxSize: opts.MaxSize,
		isOpen:  true,
	}
}

// Get retrieves a value for a key
func (e *MemoryEngine) Get(key []byte) ([]byte, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if !e.isOpen {
		return nil, ErrClosed
	}

	found := e.tree.Get(memItem{key: string(key)})
	if found == nil {
		return nil, ErrNotFound
	}

	stored := found.(memItem).value
	value := make([]byte, len(stored))
	copy(value, stored)
	return value, nil
}

// Put stores a key-value pair
func (e *MemoryEngine) Put(key, value []byte) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.isOpen {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrInvalidKey
	}

	item := memItem{key: string(key), value: make([]byte, len(value))}
	copy(item.value, value)

	delta := item.size()
	if prev := e.tree.Get(item); prev != nil {
		delta -= prev.(memItem).size()
	}
	if e.maxSize > 0 && e.size+delta > e.maxSize {
		return ErrMapFull
	}

	e.tree.ReplaceOrInsert(item)
	e.size += delta
	return nil
}

// Delete removes a key
func (e *MemoryEngine) Delete(key []byte) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.isOpen {
		return ErrClosed
	}

	if prev := e.tree.Delete(memItem{key: string(key)}); prev != nil {
		e.size -= prev.(memItem).size()
	}
	return nil
}

// Close drops all records
func (e *MemoryEngine) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.isOpen = false
	e.tree.Clear(false)
	e.size = 0
	return nil
}

// Stats returns the number of keys and live bytes
func (e *MemoryEngine) Stats() Stats {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return Stats{Keys: e.tree.Len(), DataSize: e.size}
}

// ListKeys returns all keys that start with prefix, in key order
func (e *MemoryEngine) ListKeys(prefix []byte) ([]string, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if !e.isOpen {
		return nil, ErrClosed
	}

	p := string(prefix)
	var keys []string
	e.tree.AscendGreaterOrEqual(memItem{key: p}, func(i btree.Item) bool {
		key := i.(memItem).key
		if !strings.HasPrefix(key, p) {
			return false
		}
		keys = append(keys, key)
		return true
	})
	return keys, nil
}
