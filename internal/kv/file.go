package kv

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File stores all keys in one JSON object file. Every Set rewrites the
// whole file through a temp file and rename. A value that is compact JSON
// is embedded as is; any other value is stored base64 encoded, so arbitrary
// bytes survive a round trip.
type File struct {
	path string
	// MaxBytes limits the encoded file size. Zero means unlimited.
	MaxBytes int

	mu sync.Mutex
}

// NewFile returns a file substrate at path. The file is created on first write.
func NewFile(path string, maxBytes int) *File {
	return &File{path: path, MaxBytes: maxBytes}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Get implements Substrate.
func (f *File) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.read()
	if err != nil {
		return nil, false, err
	}
	v, ok := items[key]
	if !ok {
		return nil, false, nil
	}
	return v.value(), true, nil
}

// Set implements Substrate.
func (f *File) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.read()
	if err != nil {
		return err
	}
	items[key] = newFileValue(value)

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", f.path, err)
	}
	if f.MaxBytes > 0 && len(data) > f.MaxBytes {
		return fmt.Errorf("writing %s (%d bytes, limit %d): %w", key, len(data), f.MaxBytes, ErrQuotaExceeded)
	}
	return f.write(data)
}

func (f *File) read() (map[string]fileValue, error) {
	items := make(map[string]fileValue)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %v: %w", f.path, err, ErrUnavailable)
	}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding %s: %v: %w", f.path, err, ErrUnavailable)
	}
	return items, nil
}

// fileValue is one stored value. At most one of JSON and Base64 is set;
// neither means an empty value.
type fileValue struct {
	JSON   json.RawMessage `json:"json,omitempty"`
	Base64 []byte          `json:"base64,omitempty"`
}

func newFileValue(b []byte) fileValue {
	var compact bytes.Buffer
	if json.Compact(&compact, b) == nil && bytes.Equal(compact.Bytes(), b) && string(b) != "null" {
		return fileValue{JSON: append(json.RawMessage(nil), b...)}
	}
	return fileValue{Base64: append([]byte(nil), b...)}
}

func (v fileValue) value() []byte {
	if v.JSON != nil {
		return append([]byte(nil), v.JSON...)
	}
	return append([]byte{}, v.Base64...)
}

// UnmarshalJSON accepts the wrapped form and the plain string values of
// files written before values were wrapped.
func (v *fileValue) UnmarshalJSON(data []byte) error {
	if t := bytes.TrimSpace(data); len(t) > 0 && t[0] == '"' {
		var text string
		if err := json.Unmarshal(t, &text); err != nil {
			return err
		}
		*v = newFileValue([]byte(text))
		return nil
	}
	type wrapped fileValue
	var w wrapped
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = fileValue(w)
	return nil
}

func (f *File) write(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %v: %w", f.path, err, ErrUnavailable)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %v: %w", tmp, err, ErrUnavailable)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing %s: %v: %w", f.path, err, ErrUnavailable)
	}
	return nil
}
