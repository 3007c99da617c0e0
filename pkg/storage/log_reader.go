package storage

import (
	"bufio"
	"io"
	"os"
)

// LogReader provides random and sequential access to frames in a log file
type LogReader struct {
	file *os.File
}

// NewLogReader opens path for reading
func NewLogReader(path string) (*LogReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &LogReader{file: file}, nil
}

// ReadAt reads and validates the frame of the given size at offset.
// Safe for concurrent use.
func (r *LogReader) ReadAt(offset int64, size int) (frame, error) {
	data := make([]byte, size)
	if _, err := r.file.ReadAt(data, offset); err != nil {
		if err == io.EOF {
			return frame{}, ErrCorruption
		}
		return frame{}, err
	}
	return decodeFrame(data)
}

// Scan walks every frame from the start of the file, calling fn with each
// frame and its offset. It stops at the first damaged frame and returns the
// offset just past the last good one together with the error.
func (r *LogReader) Scan(fn func(offset int64, f frame)) (int64, error) {
	reader := bufio.NewReaderSize(io.NewSectionReader(r.file, 0, 1<<62), 64*1024)

	var offset int64
	for {
		f, err := readFrame(reader)
		if err == io.EOF {
			return offset, nil
		}
		if err != nil {
			return offset, err
		}
		fn(offset, f)
		offset += int64(f.size())
	}
}

// Close closes the log reader
func (r *LogReader) Close() error {
	return r.file.Close()
}
