package storage

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

// Frame layout in the log file (little-endian):
//
//	[CRC32(4)][Kind(1)][KeySize(4)][ValueSize(4)][Timestamp(8)][Key][Value]
//
// The CRC covers every byte after the CRC field.
const frameHeaderSize = 21

// maxFrameBody bounds the key and value sizes a header may claim, so a
// damaged header cannot trigger a huge allocation during recovery.
const maxFrameBody = 1 << 30

const (
	kindPut       byte = 1
	kindTombstone byte = 2
)

// frame is one entry of the append-only log
type frame struct {
	kind      byte
	timestamp uint64
	key       []byte
	value     []byte
}

func newPutFrame(key, value []byte) frame {
	return frame{kind: kindPut, timestamp: uint64(time.Now().UnixNano()), key: key, value: value}
}

func newTombstoneFrame(key []byte) frame {
	return frame{kind: kindTombstone, timestamp: uint64(time.Now().UnixNano()), key: key}
}

// size returns the encoded size of the frame
func (f frame) size() int {
	return frameHeaderSize + len(f.key) + len(f.value)
}

func (f frame) encode() []byte {
	buf := make([]byte, f.size())

	buf[4] = f.kind
	binary.LittleEndian.PutUint32(buf[5:], uint32(len(f.key)))
	binary.LittleEndian.PutUint32(buf[9:], uint32(len(f.value)))
	binary.LittleEndian.PutUint64(buf[13:], f.timestamp)
	copy(buf[frameHeaderSize:], f.key)
	copy(buf[frameHeaderSize+len(f.key):], f.value)

	binary.LittleEndian.PutUint32(buf[0:], crc32.ChecksumIEEE(buf[4:]))
	return buf
}

// frameSizes reads the key and value sizes out of a header
func frameSizes(header []byte) (int, int) {
	keySize := binary.LittleEndian.Uint32(header[5:9])
	valueSize := binary.LittleEndian.Uint32(header[9:13])
	return int(keySize), int(valueSize)
}

// decodeFrame validates and decodes a complete encoded frame
func decodeFrame(data []byte) (frame, error) {
	if len(data) < frameHeaderSize {
		return frame{}, fmt.Errorf("%w: frame too short for header", ErrCorruption)
	}

	keySize, valueSize := frameSizes(data)
	if len(data) != frameHeaderSize+keySize+valueSize {
		return frame{}, fmt.Errorf("%w: frame size mismatch: %d != %d",
			ErrCorruption, len(data), frameHeaderSize+keySize+valueSize)
	}

	want := binary.LittleEndian.Uint32(data[0:4])
	if got := crc32.ChecksumIEEE(data[4:]); got != want {
		return frame{}, fmt.Errorf("%w: CRC32 mismatch: %d != %d", ErrCorruption, got, want)
	}

	f := frame{
		kind:      data[4],
		timestamp: binary.LittleEndian.Uint64(data[13:21]),
		key:       data[frameHeaderSize : frameHeaderSize+keySize],
		value:     data[frameHeaderSize+keySize:],
	}
	if f.kind != kindPut && f.kind != kindTombstone {
		return frame{}, fmt.Errorf("%w: unknown frame kind %d", ErrCorruption, f.kind)
	}
	return f, nil
}

// readFrame reads the next frame from r. A clean end of input returns
// io.EOF; a torn or damaged frame returns ErrCorruption.
func readFrame(r io.Reader) (frame, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return frame{}, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return frame{}, fmt.Errorf("%w: torn frame header", ErrCorruption)
		}
		return frame{}, err
	}

	keySize, valueSize := frameSizes(header)
	if keySize+valueSize > maxFrameBody {
		return frame{}, fmt.Errorf("%w: frame claims %d bytes", ErrCorruption, keySize+valueSize)
	}
	data := make([]byte, frameHeaderSize+keySize+valueSize)
	copy(data, header)
	if _, err := io.ReadFull(r, data[frameHeaderSize:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return frame{}, fmt.Errorf("%w: torn frame body", ErrCorruption)
		}
		return frame{}, err
	}

	return decodeFrame(data)
}
