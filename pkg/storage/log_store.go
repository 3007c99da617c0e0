package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const logFileName = "active.log"

// RecoveryResult describes what OpenLogStore found in an existing log
type RecoveryResult struct {
	RecordsValidated int64
	RecordsTruncated int64
	FileSizeBefore   int64
	FileSizeAfter    int64
	RecoveryTime     time.Duration
}

// LogStore is a Bitcask-style engine: every write appends a CRC-framed entry
// to a single log file and an ordered in-memory index points at the latest
// frame for each key. The map size caps the log file.
type LogStore struct {
	path    string
	writer  *LogWriter
	reader  *LogReader
	index   *logIndex
	maxSize int64
	log     *zap.SugaredLogger
	mutex   sync.RWMutex
	isOpen  bool
}

// OpenLogStore opens the log in opts.Path, truncating any torn or damaged
// tail and rebuilding the index from the frames that remain.
func OpenLogStore(opts Options) (*LogStore, *RecoveryResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	path := filepath.Join(opts.Path, logFileName)
	index := newLogIndex()

	recovery, err := recoverLog(path, index)
	if err != nil {
		return nil, nil, err
	}

	writer, err := NewLogWriter(path, opts.Sync)
	if err != nil {
		return nil, nil, err
	}

	reader, err := NewLogReader(path)
	if err != nil {
		writer.Close()
		return nil, nil, err
	}

	return &LogStore{
		path:    path,
		writer:  writer,
		reader:  reader,
		index:   index,
		maxSize: opts.MaxSize,
		log:     logger,
		isOpen:  true,
	}, recovery, nil
}

// recoverLog replays the log into index and truncates everything after the
// last intact frame
func recoverLog(path string, index *logIndex) (*RecoveryResult, error) {
	startTime := time.Now()
	result := &RecoveryResult{}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.RecoveryTime = time.Since(startTime)
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.FileSizeBefore = info.Size()

	reader, err := NewLogReader(path)
	if err != nil {
		return nil, err
	}

	lastValid, scanErr := reader.Scan(func(offset int64, f frame) {
		result.RecordsValidated++
		if f.kind == kindTombstone {
			index.delete(f.key)
			return
		}
		index.put(&indexEntry{key: string(f.key), offset: offset, size: f.size()})
	})
	reader.Close()

	if scanErr != nil && !errors.Is(scanErr, ErrCorruption) {
		return nil, scanErr
	}

	result.FileSizeAfter = lastValid
	if lastValid < result.FileSizeBefore {
		if err := os.Truncate(path, lastValid); err != nil {
			return nil, fmt.Errorf("failed to truncate damaged log tail: %w", err)
		}
		result.RecordsTruncated = 1 // Everything after the first bad frame counts as one torn write
	}

	result.RecoveryTime = time.Since(startTime)
	return result, nil
}

// Get retrieves a value for a key
func (s *LogStore) Get(key []byte) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isOpen {
		return nil, ErrClosed
	}

	entry, exists := s.index.get(key)
	if !exists {
		return nil, ErrNotFound
	}

	f, err := s.reader.ReadAt(entry.offset, entry.size)
	if err != nil {
		s.log.Errorw("failed to read frame", "offset", entry.offset, "error", err)
		return nil, err
	}

	// ReadAt allocates a fresh buffer per call, so the value is already ours
	return f.value, nil
}

// Put appends a key-value pair to the log
func (s *LogStore) Put(key, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrInvalidKey
	}

	f := newPutFrame(key, value)
	if !s.fits(f) {
		return ErrMapFull
	}

	offset, err := s.writer.Append(f)
	if err != nil {
		return err
	}

	s.index.put(&indexEntry{key: string(key), offset: offset, size: f.size()})
	return nil
}

// Delete writes a tombstone for key if it is live
func (s *LogStore) Delete(key []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return ErrClosed
	}

	if _, exists := s.index.get(key); !exists {
		return nil
	}

	tombstone := newTombstoneFrame(key)
	if !s.fits(tombstone) {
		return ErrMapFull
	}

	if _, err := s.writer.Append(tombstone); err != nil {
		return err
	}
	s.index.delete(key)
	return nil
}

// fits reports whether appending f keeps the log within the map size
func (s *LogStore) fits(f frame) bool {
	return s.maxSize <= 0 || s.writer.Size()+int64(f.size()) <= s.maxSize
}

// Close shuts down the store
func (s *LogStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil
	}
	s.isOpen = false

	// Close writer first (ensures all data is synced)
	if err := s.writer.Close(); err != nil {
		s.reader.Close()
		return err
	}
	return s.reader.Close()
}

// Stats returns the number of live keys and the log file size
func (s *LogStore) Stats() Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isOpen {
		return Stats{}
	}
	return Stats{Keys: s.index.len(), DataSize: s.writer.Size()}
}

// LiveBytes returns the encoded size of the frames the index points at.
// The difference to Stats().DataSize is space held by stale frames.
func (s *LogStore) LiveBytes() int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.index.bytes
}

// ListKeys returns all live keys that start with prefix, in key order
func (s *LogStore) ListKeys(prefix []byte) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isOpen {
		return nil, ErrClosed
	}
	return s.index.keysWithPrefix(string(prefix)), nil
}
