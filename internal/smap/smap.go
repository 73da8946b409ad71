// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package smap implements the abstract sharded concurrent map the design
// calls for: an address-keyed associative map supporting point get/set,
// in-place mutable iteration, borrow-sharded (splitting into N
// non-overlapping mutably-owned subsets for parallel workers), and
// borrow-sync (a read-shareable handle for concurrent point lookups).
// Keys are not kept in address order: iteration order is not defined.
//
// Map is not itself lock-free; it follows the phase discipline the
// collector imposes instead: single-writer during intake, borrow-sync
// (shared reads) during mark, borrow-sharded (exclusive per-shard
// mutation) during sweep and merge, never two phases overlapping. The
// locking here only guards the transition between those phases.
package smap

import "sync"

// Map is an unordered map of uintptr keys to values of V.
type Map[V any] struct {
	mu sync.RWMutex
	m  map[uintptr]V
}

// New creates an empty Map.
func New[V any]() *Map[V] {
	return &Map[V]{m: make(map[uintptr]V)}
}

// Set inserts or overwrites the value at key.
func (m *Map[V]) Set(key uintptr, value V) {
	m.mu.Lock()
	m.m[key] = value
	m.mu.Unlock()
}

// Get returns the value at key and whether it was present.
func (m *Map[V]) Get(key uintptr) (V, bool) {
	m.mu.RLock()
	v, ok := m.m[key]
	m.mu.RUnlock()
	return v, ok
}

// GetOrInsert returns the existing value at key, or calls create and
// inserts its result if absent.
func (m *Map[V]) GetOrInsert(key uintptr, create func() V) V {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.m[key]; ok {
		return v
	}
	v := create()
	m.m[key] = v
	return v
}

// Delete removes the entry at key, if any.
func (m *Map[V]) Delete(key uintptr) {
	m.mu.Lock()
	delete(m.m, key)
	m.mu.Unlock()
}

// Len returns the number of entries.
func (m *Map[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}

// Iter performs in-place mutable iteration. The callback may mutate the
// value (if V is a pointer type) but must not retain the map reference.
func (m *Map[V]) Iter(fn func(key uintptr, value V)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.m {
		fn(k, v)
	}
}

// Shard is a disjoint subset of a Map's entries handed to one worker
// for exclusive mutation. It is produced by BorrowSharded and must be
// folded back with MergeSharded once every shard is done.
type Shard[V any] struct {
	entries map[uintptr]V
}

// RetainIf keeps only the entries for which keep returns true, deleting
// the rest. Exclusive to the shard's owning worker.
func (s *Shard[V]) RetainIf(keep func(key uintptr, value V) bool) {
	for k, v := range s.entries {
		if !keep(k, v) {
			delete(s.entries, k)
		}
	}
}

// All ranges over the shard's entries.
func (s *Shard[V]) All(yield func(uintptr, V) bool) {
	for k, v := range s.entries {
		if !yield(k, v) {
			return
		}
	}
}

// BorrowSharded splits the map into n disjoint shards for parallel
// exclusive mutation. The shards hold copies of the entries, so the map
// itself stays readable (e.g. through BorrowSync), but it must not be
// written by anyone else until the shards are folded back with
// MergeSharded, which replaces its contents.
func (m *Map[V]) BorrowSharded(n int) []*Shard[V] {
	if n < 1 {
		n = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	shards := make([]*Shard[V], n)
	for i := range shards {
		shards[i] = &Shard[V]{entries: make(map[uintptr]V, len(m.m)/n+1)}
	}
	i := 0
	for k, v := range m.m {
		shards[i%n].entries[k] = v
		i++
	}
	return shards
}

// MergeSharded folds a set of shards produced by BorrowSharded back into
// the map, replacing its contents.
func (m *Map[V]) MergeSharded(shards []*Shard[V]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.m)
	for _, s := range shards {
		for k, v := range s.entries {
			m.m[k] = v
		}
	}
}

// SyncView is a read-shareable handle over a Map's current contents,
// safe for concurrent point lookups across workers during marking.
type SyncView[V any] struct {
	m map[uintptr]V
}

// BorrowSync produces a SyncView for concurrent read-only lookups. The
// caller must not mutate the map (directly or via BorrowSharded) while
// any SyncView derived from it is in use.
func (m *Map[V]) BorrowSync() *SyncView[V] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &SyncView[V]{m: m.m}
}

// Get performs a concurrent point lookup against the underlying map.
func (v *SyncView[V]) Get(key uintptr) (V, bool) {
	val, ok := v.m[key]
	return val, ok
}
