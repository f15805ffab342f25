// Package attr provides typed per-channel attributes keyed by process-wide unique names.
package attr

import (
	"sync"

	"github.com/mohitkumar/mnet/errs"
)

var names sync.Map

// Key identifies an attribute of type T. Names are unique for the life of the process.
type Key[T any] struct {
	name string
}

func NewKey[T any](name string) (Key[T], error) {
	if name == "" {
		return Key[T]{}, errs.ErrInvalidArgumentf("attribute key name is empty")
	}
	if _, loaded := names.LoadOrStore(name, struct{}{}); loaded {
		return Key[T]{}, errs.ErrDuplicateKeyf(name)
	}
	return Key[T]{name: name}, nil
}

// MustKey is NewKey for package-level key declarations. It panics on a duplicate name.
func MustKey[T any](name string) Key[T] {
	k, err := NewKey[T](name)
	if err != nil {
		panic(err)
	}
	return k
}

func (k Key[T]) Name() string { return k.name }

func (k Key[T]) String() string { return k.name }

// Map holds one channel's attribute values.
type Map struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

func Get[T any](m *Map, k Key[T]) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[k.name]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

func Set[T any](m *Map, k Key[T], v T) {
	m.mu.Lock()
	m.values[k.name] = v
	m.mu.Unlock()
}

// SetIfAbsent stores v unless a value is already present, and returns the value now stored.
func SetIfAbsent[T any](m *Map, k Key[T], v T) T {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.values[k.name]; ok {
		return cur.(T)
	}
	m.values[k.name] = v
	return v
}

func Delete[T any](m *Map, k Key[T]) {
	m.mu.Lock()
	delete(m.values, k.name)
	m.mu.Unlock()
}

func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
