package binding

import (
	"errors"

	"github.com/ssargent/freyjabench/pkg/codec"
	"github.com/ssargent/freyjabench/pkg/storage"
)

// Errors
var (
	ErrStoreFailure   = errors.New("store failure")
	ErrNotImplemented = errors.New("operation not implemented")
)

// Status is the coarse outcome reported to a benchmark harness
type Status int

const (
	StatusOK Status = iota
	StatusError
	StatusNotImplemented
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusNotImplemented:
		return "NOT_IMPLEMENTED"
	default:
		return "UNKNOWN"
	}
}

// Error kinds as reported by Kind
const (
	KindNone             = "none"
	KindNotFound         = "not_found"
	KindMalformedPayload = "malformed_payload"
	KindUnencodable      = "unencodable"
	KindStoreFailure     = "store_failure"
	KindNotImplemented   = "not_implemented"
	KindUnknown          = "unknown"
)

// Kind names the error kind behind err. It keeps the detail StatusOf drops.
func Kind(err error) string {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotImplemented):
		return KindNotImplemented
	case errors.Is(err, storage.ErrNotFound):
		return KindNotFound
	case errors.Is(err, codec.ErrMalformedPayload):
		return KindMalformedPayload
	case errors.Is(err, codec.ErrUnencodable):
		return KindUnencodable
	case errors.Is(err, ErrStoreFailure):
		return KindStoreFailure
	default:
		return KindUnknown
	}
}

// StatusOf maps an operation error to a harness status. A missing key and a
// corrupt payload both come out as StatusError.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotImplemented):
		return StatusNotImplemented
	default:
		return StatusError
	}
}
