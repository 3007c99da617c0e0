package storage

import (
	"strings"

	"github.com/tidwall/btree"
)

// indexEntry represents the location of a live frame in the log
type indexEntry struct {
	key    string
	offset int64 // Byte offset of the frame within the file
	size   int   // Encoded frame size
}

func byKey(a, b interface{}) bool {
	return a.(*indexEntry).key < b.(*indexEntry).key
}

// logIndex keeps live keys in order. It is not synchronized; LogStore
// guards it.
type logIndex struct {
	tree  *btree.BTree
	bytes int64
}

func newLogIndex() *logIndex {
	return &logIndex{tree: btree.NewNonConcurrent(byKey)}
}

func (idx *logIndex) get(key []byte) (*indexEntry, bool) {
	found := idx.tree.Get(&indexEntry{key: string(key)})
	if found == nil {
		return nil, false
	}
	return found.(*indexEntry), true
}

func (idx *logIndex) put(entry *indexEntry) {
	if prev := idx.tree.Set(entry); prev != nil {
		idx.bytes -= int64(prev.(*indexEntry).size)
	}
	idx.bytes += int64(entry.size)
}

func (idx *logIndex) delete(key []byte) bool {
	prev := idx.tree.Delete(&indexEntry{key: string(key)})
	if prev == nil {
		return false
	}
	idx.bytes -= int64(prev.(*indexEntry).size)
	return true
}

func (idx *logIndex) len() int {
	return idx.tree.Len()
}

// keysWithPrefix returns live keys starting with prefix, in order
func (idx *logIndex) keysWithPrefix(prefix string) []string {
	var keys []string
	idx.tree.Ascend(&indexEntry{key: prefix}, func(item interface{}) bool {
		key := item.(*indexEntry).key
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		keys = append(keys, key)
		return true
	})
	return keys
}
