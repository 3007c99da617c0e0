// Package keys builds the flat storage keys that let many logical tables
// share a single ordered key space.
//
// A storage key is the table name, a separator and the record key:
//
//	usertable-user1
//
// The table component is escaped so that a separator inside a table name can
// never be confused with the one that ends it. Backslash becomes "\\" and the
// separator becomes "\" followed by the separator. The record key is appended
// verbatim after the first unescaped separator, so it needs no escaping. Table
// names without a backslash or separator encode exactly as "table-key".
package keys

import (
	"errors"
	"fmt"
)

const (
	// DefaultSeparator joins the table and record key.
	DefaultSeparator byte = '-'

	escape byte = '\\'
)

// ErrMalformedKey is returned when a storage key cannot be split back into a
// table and record key.
var ErrMalformedKey = errors.New("malformed storage key")

// Encoder turns logical (table, key) pairs into storage keys
type Encoder struct {
	Separator byte
}

// Default is the encoder used unless configuration says otherwise
var Default = NewEncoder(DefaultSeparator)

// NewEncoder creates an encoder using sep between table and key.
// The backslash is reserved for escaping and cannot be a separator.
func NewEncoder(sep byte) Encoder {
	if sep == escape {
		panic("keys: backslash cannot be used as a separator")
	}
	return Encoder{Separator: sep}
}

// Encode returns the storage key for (table, key). It is deterministic and
// distinct logical keys always produce distinct storage keys.
func (e Encoder) Encode(table, key string) []byte {
	buf := make([]byte, 0, len(table)+len(key)+1)
	buf = e.appendTable(buf, table)
	buf = append(buf, e.Separator)
	return append(buf, key...)
}

// Prefix returns the key prefix shared by every record in table
func (e Encoder) Prefix(table string) []byte {
	buf := e.appendTable(make([]byte, 0, len(table)+1), table)
	return append(buf, e.Separator)
}

// Decode splits a storage key produced by Encode back into table and key
func (e Encoder) Decode(storageKey []byte) (string, string, error) {
	table := make([]byte, 0, len(storageKey))
	for i := 0; i < len(storageKey); i++ {
		c := storageKey[i]
		switch c {
		case escape:
			i++
			if i == len(storageKey) {
				return "", "", fmt.Errorf("%w: dangling escape in %q", ErrMalformedKey, storageKey)
			}
			table = append(table, storageKey[i])
		case e.Separator:
			return string(table), string(storageKey[i+1:]), nil
		default:
			table = append(table, c)
		}
	}
	return "", "", fmt.Errorf("%w: no separator in %q", ErrMalformedKey, storageKey)
}

func (e Encoder) appendTable(buf []byte, table string) []byte {
	for i := 0; i < len(table); i++ {
		c := table[i]
		if c == escape || c == e.Separator {
			buf = append(buf, escape)
		}
		buf = append(buf, c)
	}
	return buf
}

// Encode builds a storage key with the default encoder
func Encode(table, key string) []byte {
	return Default.Encode(table, key)
}
