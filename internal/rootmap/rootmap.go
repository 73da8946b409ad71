// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rootmap holds the collector's single authoritative map of
// every object a mutator has ever rooted, keyed by object address.
//
// A Meta entry doubles as the young generation's live set: a NEW entry
// with a zero reference count is a freshly allocated object that has
// not yet been rooted and is a minor-collection candidate; a NEW entry
// with a positive count, or any non-NEW entry, is a stack root and a
// trace starting point. Once a NEW entry survives a major collection
// its payload moves into the mature heap and its New flag is cleared,
// leaving Meta to track nothing but the root reference count.
package rootmap

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/gogc/trace"
)

// Meta is one root map entry.
type Meta struct {
	RefCount atomix.Uint64
	Tag      trace.Tag

	traversible bool
	new         atomix.Bool
	marked      atomix.Bool
}

// NewMeta builds a Meta with the given initial reference count.
func NewMeta(refCount uint64, tag trace.Tag, traversible, isNew bool) *Meta {
	m := &Meta{Tag: tag, traversible: traversible}
	m.RefCount.StoreRelaxed(refCount)
	m.new.StoreRelaxed(isNew)
	return m
}

// Inc increments the reference count by one.
func (m *Meta) Inc() {
	m.RefCount.AddAcqRel(1)
}

// Dec decrements the reference count by one.
func (m *Meta) Dec() {
	m.RefCount.AddAcqRel(^uint64(0))
}

// Count reads the current reference count.
func (m *Meta) Count() uint64 {
	return m.RefCount.LoadAcquire()
}

// IsNew reports whether this entry still lives in the young
// generation, i.e. has not yet survived a major collection.
func (m *Meta) IsNew() bool {
	return m.new.LoadAcquire()
}

// SetNotNew clears the New flag once an entry's payload has been
// promoted into the mature heap.
func (m *Meta) SetNotNew() {
	m.new.StoreRelease(false)
}

// IsUnrooted reports whether this entry has no surviving stack root:
// zero reference count and not a not-yet-rooted NEW allocation.
func (m *Meta) IsUnrooted() bool {
	return m.Count() == 0 && !m.IsNew()
}

// Traversible reports whether the underlying type can hold outgoing
// managed references.
func (m *Meta) Traversible() bool {
	return m.traversible
}

// MarkAndNeedsTrace atomically marks the entry and reports whether the
// caller is the one that performed the transition and the object is
// traversible, i.e. whether the caller should push its outgoing
// references for further tracing. Safe to call concurrently from
// multiple mark workers that reach the same entry by different paths;
// exactly one of them sees true.
func (m *Meta) MarkAndNeedsTrace() bool {
	transitioned := m.marked.CompareAndSwapAcqRel(false, true)
	return transitioned && m.traversible
}

// IsMarked reports the current mark bit without changing it.
func (m *Meta) IsMarked() bool {
	return m.marked.LoadAcquire()
}

// Unmark clears the mark bit, preparing the entry for the next cycle.
func (m *Meta) Unmark() {
	m.marked.StoreRelease(false)
}

// IsNewAndUnmarked reports whether this is an unrooted-implying,
// unmarked NEW entry that a minor sweep should discard.
func (m *Meta) IsNewAndUnmarked() bool {
	return m.IsNew() && !m.IsMarked()
}
