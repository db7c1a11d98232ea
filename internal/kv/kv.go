// Package kv provides the string-keyed storage substrates the visit log
// persists into. A substrate holds whole values: there are no partial
// updates, so callers read, modify and write back.
package kv

import "errors"

var (
	// ErrUnavailable is returned when the substrate cannot be read or written.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrQuotaExceeded is returned when a write would exceed the substrate's size limit.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Substrate is a key-value store of opaque values.
type Substrate interface {
	// Get returns the value for key and whether it was present.
	Get(key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
}
