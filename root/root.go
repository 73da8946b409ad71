// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package root provides the smart-pointer types a mutator uses to
// build and navigate managed object graphs: Rooted (a stack root that
// reports an INC on creation and a DEC on Drop), Interior (a plain
// unsynchronized managed reference for use inside an already-rooted
// object) and AtomicInterior (its concurrency-safe counterpart).
//
// A goroutine spawned by the collector receives a *Scope, the
// capability that lets it post journal records. Scope stands in for
// the thread-local journal handle the original relied on: Go has no
// per-goroutine storage, so the capability is passed explicitly
// instead of reached for implicitly.
package root

import (
	"fmt"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/gogc/internal/wire"
	"code.hybscloud.com/gogc/journal"
	"code.hybscloud.com/gogc/trace"
)

// Scope is the capability a mutator goroutine holds to report root
// changes. Exactly one Scope exists per journal Sender; it must not be
// shared across goroutines.
type Scope struct {
	tx *journal.Sender
}

// NewScope wraps a journal Sender as a mutator-facing Scope.
func NewScope(tx *journal.Sender) *Scope {
	return &Scope{tx: tx}
}

// Close reports that this scope will send no further records. Call
// when the owning goroutine is about to exit.
func (s *Scope) Close() {
	s.tx.Close()
}

func (s *Scope) post(addr uintptr, f wire.Flags, tag trace.Tag, traversible bool) {
	s.tx.Send(wire.Object{
		Ptr:    wire.PackPtr(addr, f),
		VTable: wire.PackVTable(uint32(tag), traversible),
	})
}

// box is the allocation every managed object lives in: the payload
// first, so the box's address is also the payload's address that the
// registered trace and drop functions receive, followed by its tag.
type box[T any] struct {
	value T
	tag   trace.Tag
}

func tagFor[T any, PT interface {
	*T
	trace.Traceable
}]() trace.Tag {
	return trace.RegisterType[T, PT]()
}

// Rooted is a stack root: a managed reference that the collector must
// always treat as reachable. Creating one posts an INC (or NEW_INC for
// a brand new object); Drop posts the matching DEC. A Rooted must not
// be copied; pass it by pointer or call Clone to mint a second root
// over the same object.
type Rooted[T any] struct {
	scope *Scope
	addr  uintptr
	tag   trace.Tag
}

// New allocates value on the managed heap and returns a root over it,
// reporting NEW_INC to scope's journal.
func New[T any, PT interface {
	*T
	trace.Traceable
}](scope *Scope, value T) Rooted[T] {
	tag := tagFor[T, PT]()
	b := &box[T]{tag: tag, value: value}
	addr := uintptr(unsafe.Pointer(b))

	traversible := PT(&b.value).Traversible()
	scope.post(addr, wire.NewInc, tag, traversible)

	return Rooted[T]{scope: scope, addr: addr, tag: tag}
}

// Clone mints a second root over the same object, reporting INC.
func (r Rooted[T]) Clone() Rooted[T] {
	r.scope.post(r.addr, wire.Inc, r.tag, false)
	return Rooted[T]{scope: r.scope, addr: r.addr, tag: r.tag}
}

// Drop releases this root, reporting DEC. A Rooted must not be used
// after Drop; Go has no destructors, so callers are responsible for
// calling Drop exactly once, typically via defer.
func (r Rooted[T]) Drop() {
	r.scope.post(r.addr, wire.Dec, r.tag, false)
}

// Value returns a pointer to the underlying payload.
func (r Rooted[T]) Value() *T {
	return &r.box().value
}

// AsInterior downgrades this root to a plain Interior reference,
// suitable for storing inside another managed object's fields. It does
// not report a journal record: ownership of the INC this Rooted holds
// transfers conceptually to whatever field stores the Interior, which
// is responsible for being traced so the collector can still find the
// object.
func (r Rooted[T]) AsInterior() Interior[T] {
	return Interior[T]{addr: r.addr, tag: r.tag}
}

func (r Rooted[T]) box() *box[T] {
	return (*box[T])(unsafe.Pointer(r.addr))
}

// Interior is a plain, unsynchronized managed reference meant to live
// inside the fields of another managed object that is itself reachable
// from a root. It carries no reference-count discipline of its own:
// reachability flows from whichever root or interior chain leads to
// it, which is why its owning type's Trace method must push it.
type Interior[T any] struct {
	addr uintptr
	tag  trace.Tag
}

// NewInterior allocates value on the managed heap without rooting it.
// The caller must store the result somewhere reachable (directly or
// transitively) from a Rooted before the next collection, or it may be
// swept; scope reports a NEW record so the collector's nursery can
// track it from the moment of allocation.
func NewInterior[T any, PT interface {
	*T
	trace.Traceable
}](scope *Scope, value T) Interior[T] {
	tag := tagFor[T, PT]()
	b := &box[T]{tag: tag, value: value}
	addr := uintptr(unsafe.Pointer(b))

	traversible := PT(&b.value).Traversible()
	scope.post(addr, wire.New, tag, traversible)

	return Interior[T]{addr: addr, tag: tag}
}

// IsNull reports whether this reference is the zero value.
func (i Interior[T]) IsNull() bool {
	return i.addr == 0
}

// Is reports whether i and other reference the same underlying object.
func (i Interior[T]) Is(other Interior[T]) bool {
	return i.addr == other.addr
}

// Value returns a pointer to the underlying payload, or nil if IsNull.
func (i Interior[T]) Value() *T {
	if i.IsNull() {
		return nil
	}
	return &i.box().value
}

// Trace pushes this reference onto stack, if non-null. Call this from
// a container type's Trace method for every Interior field it holds.
func (i Interior[T]) Trace(stack *trace.Stack) {
	if i.IsNull() {
		return
	}
	stack.Push(i.addr, i.tag)
}

// Root promotes this interior reference back into a stack root,
// reporting INC. Used when a mutator pulls a value out of a managed
// container and wants to hold it across further allocations.
func (i Interior[T]) Root(scope *Scope) Rooted[T] {
	if !i.IsNull() {
		scope.post(i.addr, wire.Inc, i.tag, false)
	}
	return Rooted[T]{scope: scope, addr: i.addr, tag: i.tag}
}

func (i Interior[T]) box() *box[T] {
	return (*box[T])(unsafe.Pointer(i.addr))
}

// Ordering selects the memory ordering of an AtomicInterior access,
// mirroring the explicit ordering parameter the original's AtomicPtr
// API took.
type Ordering int

const (
	// Relaxed imposes no ordering beyond atomicity.
	Relaxed Ordering = iota
	// Acquire is valid for loads only.
	Acquire
	// Release is valid for stores only.
	Release
)

// AtomicInterior is the concurrency-safe counterpart to Interior, for
// fields of managed objects that may be read or replaced from more
// than one goroutine. Load, Store and Trace generate no journal
// records (only LoadRooted posts one, an INC); whoever replaces the
// stored reference is responsible for rooting the new value and
// dropping the old one through the ordinary Rooted discipline before
// and after the swap.
type AtomicInterior[T any] struct {
	addr atomix.Uintptr
	tag  trace.Tag
}

// NewAtomicInterior wraps an already-allocated Interior for atomic access.
func NewAtomicInterior[T any](initial Interior[T]) *AtomicInterior[T] {
	a := &AtomicInterior[T]{tag: initial.tag}
	a.addr.StoreRelaxed(initial.addr)
	return a
}

// Load reads the current reference with the given ordering. Panics if
// order is Release, mirroring the original's panic on an invalid
// ordering for a load.
func (a *AtomicInterior[T]) Load(order Ordering) Interior[T] {
	var addr uintptr
	switch order {
	case Relaxed:
		addr = a.addr.LoadRelaxed()
	case Acquire:
		addr = a.addr.LoadAcquire()
	default:
		panic(fmt.Sprintf("root: invalid ordering %d for AtomicInterior.Load", order))
	}
	return Interior[T]{addr: addr, tag: a.tag}
}

// Store replaces the current reference with the given ordering. Panics
// if order is Acquire.
func (a *AtomicInterior[T]) Store(v Interior[T], order Ordering) {
	switch order {
	case Relaxed:
		a.addr.StoreRelaxed(v.addr)
	case Release:
		a.addr.StoreRelease(v.addr)
	default:
		panic(fmt.Sprintf("root: invalid ordering %d for AtomicInterior.Store", order))
	}
}

// Trace pushes the currently stored reference onto stack, using
// acquire ordering so a concurrent mark pass observes a consistent
// pointer.
func (a *AtomicInterior[T]) Trace(stack *trace.Stack) {
	a.Load(Acquire).Trace(stack)
}

// LoadRooted reads the currently stored reference with the given
// ordering and promotes it to a stack root, reporting INC. Used when a
// mutator wants to pull a value out of a concurrently-updated field
// and hold it across further allocations, the atomic counterpart to
// Interior.Root.
func (a *AtomicInterior[T]) LoadRooted(scope *Scope, order Ordering) Rooted[T] {
	return a.Load(order).Root(scope)
}
