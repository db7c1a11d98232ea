package kv

import "sync"

// Memory is an in-process substrate. It is lost on restart.
type Memory struct {
	mu    sync.Mutex
	items map[string][]byte

	getErr error
	setErr error
}

// NewMemory returns an empty memory substrate.
func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

// Get implements Substrate.
func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements Substrate.
func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.setErr != nil {
		return m.setErr
	}
	m.items[key] = append([]byte(nil), value...)
	return nil
}

// FailReads makes every Get return err until called again with nil.
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	m.getErr = err
	m.mu.Unlock()
}

// FailWrites makes every Set return err until called again with nil.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	m.setErr = err
	m.mu.Unlock()
}
