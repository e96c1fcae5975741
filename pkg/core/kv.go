// Package core provides the in-memory data structures underneath the graph
// engine.
//
// KVStore is a thread-safe map from string keys to immutable byte values.
// The engine stores every graph record in it, and point-in-time views are
// taken with Clone.
package core

import (
	"sort"
	"strings"
	"sync"
)

// KVStore is a thread-safe, in-memory key-value store.
// Values are treated as immutable: callers replace them with Set rather than
// mutating the returned slice, which is what makes Clone a shallow copy.
type KVStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// KVPair is one entry yielded by Range.
type KVPair struct {
	Key   string
	Value []byte
}

// NewKVStore creates and returns a new, empty KVStore instance.
func NewKVStore() *KVStore {
	return &KVStore{
		data: make(map[string][]byte),
	}
}

// Set adds or updates a value for a given key.
func (s *KVStore) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
}

// Get retrieves the value for a given key.
func (s *KVStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, found := s.data[key]
	return value, found
}

// Delete removes a key and its associated value from the store.
func (s *KVStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
}

// Len returns the number of keys.
func (s *KVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Range calls fn for every key with the given prefix, in key order, until fn
// returns false. An empty prefix visits everything. The store is read-locked
// for the duration, so fn must not write to it.
func (s *KVStore) Range(prefix string, fn func(KVPair) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn(KVPair{Key: k, Value: s.data[k]}) {
			return
		}
	}
}

// Clone returns an independent store holding the same entries. Values are
// shared, not copied.
func (s *KVStore) Clone() *KVStore {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		data[k] = v
	}
	return &KVStore{data: data}
}
