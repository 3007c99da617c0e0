package workload

import (
	"encoding/binary"
	"math/rand"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const (
	keyPrefix   = "user"
	fieldPrefix = "field"
)

// KeyName returns the record key for keynum. Unless ordered is set the
// number is hashed so inserts spread over the key space.
func KeyName(keynum int64, ordered bool) string {
	if ordered {
		return keyPrefix + strconv.FormatInt(keynum, 10)
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(keynum))
	return keyPrefix + strconv.FormatUint(xxhash.Sum64(buf[:]), 10)
}

// FieldName returns the name of field i
func FieldName(i int) string {
	return fieldPrefix + strconv.Itoa(i)
}

// FieldNames returns field0 through field(count-1)
func FieldNames(count int) []string {
	names := make([]string, count)
	for i := range names {
		names[i] = FieldName(i)
	}
	return names
}

// BuildValues fills every field with length random printable characters
func BuildValues(rng *rand.Rand, fieldCount, length int) map[string]string {
	values := make(map[string]string, fieldCount)
	buf := make([]byte, length)
	for i := 0; i < fieldCount; i++ {
		for j := range buf {
			buf[j] = byte(' ' + rng.Intn('~'-' '+1))
		}
		values[FieldName(i)] = string(buf)
	}
	return values
}
