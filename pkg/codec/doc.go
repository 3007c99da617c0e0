// Package codec serializes benchmark records for storage.
//
// A record is a flat mapping of field names to string values. Records carry
// no schema: two records in the same table may have entirely different field
// sets. Each record is stored as a single value in the key-value store.
//
// # Document Format
//
// Records are encoded as a JSON object whose members are the record's fields
// and whose values are JSON strings:
//
//	{"field0":"value0","field1":"value1"}
//
// Member order carries no meaning. Encode emits members sorted by name, but
// Decode accepts any order and callers must not rely on it. Every write
// replaces the whole document; there are no partial updates.
//
// # Decoding
//
// Decode is lenient about values written by other tools:
//   - null members are dropped from the result
//   - numbers and booleans are returned as their text form
//   - nested objects and arrays are returned as raw JSON text
//
// A payload that is not a JSON object fails with ErrMalformedPayload.
//
// # Field Filters
//
// Decode takes an optional list of field names. An empty list returns every
// field. A non-empty list is applied according to the codec's FilterMode:
//
//   - FilterExclude (the default) drops the named fields and returns the rest.
//     This matches the behavior of the LMDB binding the stored data was first
//     written by, and existing result comparisons depend on it.
//   - FilterProject returns only the named fields.
//
// # Usage
//
//	c := codec.NewRecordCodec()
//
//	payload, err := c.Encode(map[string]string{"f1": "v1", "f2": "v2"})
//	if err != nil {
//	    return err
//	}
//
//	fields, err := c.Decode(payload, nil)
//	if errors.Is(err, codec.ErrMalformedPayload) {
//	    return err // stored bytes are not a record
//	}
//
// # Thread Safety
//
// RecordCodec holds only its filter mode and is safe for concurrent use.
package codec
