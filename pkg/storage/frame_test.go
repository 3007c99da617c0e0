package storage

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_EncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		f    frame
	}{
		{"put", newPutFrame([]byte("usertable-user1"), []byte(`{"f":"v"}`))},
		{"tombstone", newTombstoneFrame([]byte("usertable-user1"))},
		{"binary", newPutFrame([]byte{0x00, 0x01}, []byte{0xFF, 0xFE})},
		{"large value", newPutFrame([]byte("k"), bytes.Repeat([]byte("v"), 10240))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := tc.f.encode()
			assert.Len(t, encoded, tc.f.size())

			decoded, err := decodeFrame(encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.f.kind, decoded.kind)
			assert.Equal(t, tc.f.timestamp, decoded.timestamp)
			assert.Equal(t, tc.f.key, decoded.key)
			assert.Equal(t, len(tc.f.value), len(decoded.value))
		})
	}
}

func TestFrame_CorruptionDetected(t *testing.T) {
	encoded := newPutFrame([]byte("key"), []byte("value")).encode()

	for _, pos := range []int{0, 4, 13, frameHeaderSize, len(encoded) - 1} {
		damaged := append([]byte(nil), encoded...)
		damaged[pos] ^= 0xFF

		_, err := decodeFrame(damaged)
		assert.True(t, errors.Is(err, ErrCorruption), "byte %d: got %v", pos, err)
	}

	_, err := decodeFrame(encoded[:10])
	assert.True(t, errors.Is(err, ErrCorruption))
}

func TestReadFrame_Stream(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(newPutFrame([]byte("a"), []byte("1")).encode())
	buf.Write(newTombstoneFrame([]byte("a")).encode())

	f, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, kindPut, f.kind)

	f, err = readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, kindTombstone, f.kind)

	_, err = readFrame(&buf)
	assert.Equal(t, io.EOF, err)
}

func TestReadFrame_Torn(t *testing.T) {
	encoded := newPutFrame([]byte("key"), []byte("value")).encode()

	_, err := readFrame(bytes.NewReader(encoded[:5]))
	assert.True(t, errors.Is(err, ErrCorruption), "torn header: %v", err)

	_, err = readFrame(bytes.NewReader(encoded[:len(encoded)-2]))
	assert.True(t, errors.Is(err, ErrCorruption), "torn body: %v", err)
}
