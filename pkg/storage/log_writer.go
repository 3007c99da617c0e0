package storage

import (
	"errors"
	"io"
	"os"
	"sync"
)

// logFile is the part of *os.File the writer uses
type logFile interface {
	io.WriterAt
	Truncate(size int64) error
	Sync() error
	Close() error
}

// LogWriter handles append-only writes to the active log file
type LogWriter struct {
	file   logFile
	sync   bool
	mutex  sync.Mutex
	offset int64 // End of the last complete frame
}

// NewLogWriter opens path for appending, creating it if needed
func NewLogWriter(path string, fsync bool) (*LogWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &LogWriter{file: file, sync: fsync, offset: offset}, nil
}

// Append writes a frame at the end of the log and returns its offset. A
// failed append leaves the log ending at the previous frame.
func (w *LogWriter) Append(f frame) (int64, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	data := f.encode()
	if _, err := w.file.WriteAt(data, w.offset); err != nil {
		return 0, w.rollback(err)
	}

	if w.sync {
		if err := w.file.Sync(); err != nil {
			return 0, w.rollback(err)
		}
	}

	recordOffset := w.offset
	w.offset += int64(len(data))
	return recordOffset, nil
}

// rollback cuts off any bytes a failed append left behind
func (w *LogWriter) rollback(cause error) error {
	if err := w.file.Truncate(w.offset); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// Size returns the current size of the log file
func (w *LogWriter) Size() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.offset
}

// Close syncs and closes the log file
func (w *LogWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
