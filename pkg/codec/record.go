package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

var (
	// ErrMalformedPayload means stored bytes do not parse as a record document
	ErrMalformedPayload = errors.New("malformed record payload")
	// ErrUnencodable means a field mapping could not be serialized
	ErrUnencodable = errors.New("record cannot be encoded")
)

// FilterMode controls how Decode applies a requested field list
type FilterMode int

const (
	// FilterExclude drops the requested fields and keeps everything else
	FilterExclude FilterMode = iota
	// FilterProject keeps only the requested fields
	FilterProject
)

// String returns the configuration name of the mode
func (m FilterMode) String() string {
	switch m {
	case FilterExclude:
		return "exclude"
	case FilterProject:
		return "project"
	default:
		return fmt.Sprintf("FilterMode(%d)", int(m))
	}
}

// ParseFilterMode parses a configuration value into a FilterMode
func ParseFilterMode(s string) (FilterMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exclude":
		return FilterExclude, nil
	case "project":
		return FilterProject, nil
	default:
		return FilterExclude, fmt.Errorf("unknown field filter %q (want exclude or project)", s)
	}
}

// RecordCodec handles serialization and deserialization of records
type RecordCodec struct {
	Filter FilterMode
}

// NewRecordCodec creates a codec with the default exclude filter
func NewRecordCodec() *RecordCodec {
	return &RecordCodec{Filter: FilterExclude}
}

// Encode serializes a field mapping into a JSON document. Names and values
// must be valid UTF-8; encoding/json would otherwise rewrite them.
func (c *RecordCodec) Encode(fields map[string]string) ([]byte, error) {
	if fields == nil {
		fields = map[string]string{}
	}

	for name, value := range fields {
		if !utf8.ValidString(name) {
			return nil, fmt.Errorf("%w: field name %q is not valid UTF-8", ErrUnencodable, name)
		}
		if !utf8.ValidString(value) {
			return nil, fmt.Errorf("%w: value of field %q is not valid UTF-8", ErrUnencodable, name)
		}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
	}

	return data, nil
}

// Decode parses a JSON document back into a field mapping, applying the
// requested field list according to the codec's filter mode.
func (c *RecordCodec) Decode(payload []byte, requested []string) (map[string]string, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%w: invalid JSON (%d bytes)", ErrMalformedPayload, len(payload))
	}

	doc := gjson.ParseBytes(payload)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: document is %s, not an object", ErrMalformedPayload, doc.Type)
	}

	var named map[string]struct{}
	if len(requested) > 0 {
		named = make(map[string]struct{}, len(requested))
		for _, f := range requested {
			named[f] = struct{}{}
		}
	}

	result := make(map[string]string)
	doc.ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		if !c.keep(name, named) {
			return true
		}
		switch {
		case v.Type == gjson.Null:
		case v.IsObject(), v.IsArray():
			result[name] = v.Raw
		default:
			result[name] = v.String()
		}
		return true
	})

	return result, nil
}

func (c *RecordCodec) keep(name string, named map[string]struct{}) bool {
	if named == nil {
		return true
	}
	_, listed := named[name]
	if c.Filter == FilterProject {
		return listed
	}
	return !listed
}
