// Package resultcache memoizes per-unit scan results in a pluggable
// key/value backend.
//
// Entries are write-once: a key's first value is authoritative and later
// writes of the same key are ignored. A key that cannot be read back right
// after it was written means the backend is too small (ErrUndersized).
package resultcache

import (
	"container/list"
	"errors"
	"sync"
)

// ErrUndersized is returned when a freshly written entry is missing on replay.
var ErrUndersized = errors.New("result cache is not big enough to hold all results; increase the cache size or disable the cache")

// Backend is a key/value store for encoded scan results.
type Backend interface {
	// Acquire opens a connection scoped to one lookup or store pass.
	Acquire() (Conn, error)
	// Close releases the backend.
	Close() error
}

// Conn is a scoped backend connection.
type Conn interface {
	Get(key string) ([]byte, bool, error)
	// Set stores value unless key already exists.
	Set(key string, value []byte) error
	Close() error
}

// DefaultMaxEntries is the default capacity of a Memory backend.
const DefaultMaxEntries = 1_000_000

// Memory is a bounded in-process backend with FIFO eviction.
type Memory struct {
	mu      sync.Mutex
	cap     int
	order   *list.List
	entries map[string]*list.Element
}

type memEntry struct {
	key   string
	value []byte
}

// NewMemory creates a memory backend holding at most maxEntries entries.
// If maxEntries is 0, DefaultMaxEntries is used.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		cap:     maxEntries,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Acquire returns the backend itself; memory connections need no setup.
func (m *Memory) Acquire() (Conn, error) {
	return memConn{m}, nil
}

// Close drops every entry.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order.Init()
	m.entries = make(map[string]*list.Element)
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type memConn struct{ m *Memory }

func (c memConn) Get(key string) ([]byte, bool, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	e, ok := c.m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return e.Value.(*memEntry).value, true, nil
}

func (c memConn) Set(key string, value []byte) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if _, ok := c.m.entries[key]; ok {
		return nil
	}
	v := make([]byte, len(value))
	copy(v, value)
	c.m.entries[key] = c.m.order.PushBack(&memEntry{key: key, value: v})
	if c.m.order.Len() > c.m.cap {
		oldest := c.m.order.Front()
		c.m.order.Remove(oldest)
		delete(c.m.entries, oldest.Value.(*memEntry).key)
	}
	return nil
}

func (c memConn) Close() error { return nil }
