// Package syncmap provides a generic concurrent map with lazy per-key initialization.
package syncmap

import (
	"sync"
)

type SyncMap[K comparable, V any] struct {
	lock *sync.Mutex
	data map[K]*V
	init func(K) *V
}

func New[K comparable, V any](init func(K) *V) *SyncMap[K, V] {
	return &SyncMap[K, V]{
		lock: &sync.Mutex{},
		data: make(map[K]*V),
		init: init,
	}
}

// GetOrInit returns the value for the key.
// The init callback runs at most once per key.
func (m *SyncMap[K, V]) GetOrInit(key K) *V {
	m.lock.Lock()
	defer m.lock.Unlock()
	value, found := m.data[key]
	if !found {
		value = m.init(key)
		m.data[key] = value
	}
	return value
}

func (m *SyncMap[K, V]) Get(key K) (*V, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	value, found := m.data[key]
	return value, found
}

func (m *SyncMap[K, V]) Delete(key K) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.data, key)
}

func (m *SyncMap[K, V]) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.data)
}

func (m *SyncMap[K, V]) Keys() []K {
	m.lock.Lock()
	defer m.lock.Unlock()
	out := make([]K, 0, len(m.data))
	for key := range m.data {
		out = append(out, key)
	}
	return out
}
