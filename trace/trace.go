// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package trace is the contract by which user objects expose their
// outgoing managed references to the collector.
//
// Rather than punning a language vtable pointer the way the original
// relied on, types register once (via Register or RegisterType) and get
// back a Tag: an index into a process-wide table of
// (trace function, drop function, traversible bit). The two journal and
// heap metadata words that would otherwise carry a raw vtable pointer
// carry this Tag instead.
package trace

import (
	"reflect"
	"sync"
	"unsafe"

	"code.hybscloud.com/gogc/internal/gcerrs"
)

// Tag identifies a registered type's trace/drop functions.
type Tag uint32

// Traceable must be implemented, with a pointer receiver, by every type
// that can be managed by the collector.
type Traceable interface {
	// Traversible reports whether this type can hold managed references.
	// Evaluated once per type at registration, and once per allocation
	// to set the journal record's TRAVERSE bit.
	Traversible() bool

	// Trace pushes every outgoing managed reference onto stack. Must be
	// safe to call concurrently with mutator updates to the object:
	// implementations must publish a consistent snapshot, typically by
	// reading atomic or persistent fields.
	Trace(stack *Stack)
}

// Destroyable is implemented by types that need to run cleanup when the
// collector drops their underlying object. It is optional: types that
// don't implement it are simply forgotten (left for the runtime's own
// GC to reclaim once untracked).
type Destroyable interface {
	OnDrop()
}

type typeInfo struct {
	trace       func(p unsafe.Pointer, stack *Stack)
	drop        func(p unsafe.Pointer)
	traversible bool
}

var registry struct {
	mu    sync.RWMutex
	types []typeInfo
}

// Register adds a type's trace/drop functions to the registry and
// returns its Tag. Most callers should use RegisterType instead; this
// exists for callers that need to bypass the generic pointer-receiver
// constraint.
func Register(traceFn func(p unsafe.Pointer, stack *Stack), dropFn func(p unsafe.Pointer), traversible bool) Tag {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	tag := Tag(len(registry.types))
	registry.types = append(registry.types, typeInfo{trace: traceFn, drop: dropFn, traversible: traversible})
	return tag
}

// tagCache memoizes RegisterType so that a type is only registered once
// regardless of how many Rooted/Interior values of that type get built.
var tagCache sync.Map // reflect.Type -> Tag

// RegisterType registers T (whose pointer type PT implements Traceable)
// and returns its Tag, registering it on first use and reusing the same
// Tag for every later call with the same T.
func RegisterType[T any, PT interface {
	*T
	Traceable
}]() Tag {
	rt := reflect.TypeFor[T]()
	if v, ok := tagCache.Load(rt); ok {
		return v.(Tag)
	}

	var zero T
	traversible := PT(&zero).Traversible()

	tag := Register(
		func(p unsafe.Pointer, stack *Stack) {
			PT((*T)(p)).Trace(stack)
		},
		func(p unsafe.Pointer) {
			if d, ok := any(PT((*T)(p))).(Destroyable); ok {
				d.OnDrop()
			}
		},
		traversible,
	)

	actual, _ := tagCache.LoadOrStore(rt, tag)
	return actual.(Tag)
}

func lookup(tag Tag) typeInfo {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	if int(tag) >= len(registry.types) {
		// Receipt of an unknown tag is impossible by construction; if
		// observed, it indicates corruption of the journal or heap
		// metadata word that carried it.
		panic(gcerrs.Protocol.New("unregistered type tag %d", tag))
	}
	return registry.types[tag]
}

// TraceObject invokes the registered trace function for tag against the
// object at addr.
func TraceObject(tag Tag, addr uintptr, stack *Stack) {
	lookup(tag).trace(unsafe.Pointer(addr), stack)
}

// DropObject invokes the registered drop function for tag against the
// object at addr, if one was registered.
func DropObject(tag Tag, addr uintptr) {
	if drop := lookup(tag).drop; drop != nil {
		drop(unsafe.Pointer(addr))
	}
}

// Traversible reports whether tag's type can contain managed references.
func Traversible(tag Tag) bool {
	return lookup(tag).traversible
}

// Stack is an ordered LIFO of outgoing references used during a single
// worker's marking walk. Not shared across workers.
type Stack struct {
	items []entry
}

type entry struct {
	addr uintptr
	tag  Tag
}

// Push records one outgoing managed reference. A zero addr (a null
// reference) is silently dropped.
func (s *Stack) Push(addr uintptr, tag Tag) {
	if addr == 0 {
		return
	}
	s.items = append(s.items, entry{addr: addr, tag: tag})
}

// Pop removes and returns the most recently pushed reference.
func (s *Stack) Pop() (addr uintptr, tag Tag, ok bool) {
	if len(s.items) == 0 {
		return 0, 0, false
	}
	last := len(s.items) - 1
	e := s.items[last]
	s.items = s.items[:last]
	return e.addr, e.tag, true
}

// Value is a trivial Traceable wrapper for primitive, non-pointer
// payloads (ints, strings, byte slices, ...): it never contains managed
// references, matching the leaf-type default the trace protocol
// describes.
type Value[T any] struct {
	V T
}

// Traversible always reports false for a leaf Value.
func (*Value[T]) Traversible() bool { return false }

// Trace is a no-op for a leaf Value.
func (*Value[T]) Trace(*Stack) {}
