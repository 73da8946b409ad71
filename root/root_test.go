// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package root_test

import (
	"testing"

	"code.hybscloud.com/gogc/internal/wire"
	"code.hybscloud.com/gogc/journal"
	"code.hybscloud.com/gogc/root"
	"code.hybscloud.com/gogc/trace"
)

type leaf struct {
	v int
}

func (*leaf) Traversible() bool  { return false }
func (*leaf) Trace(*trace.Stack) {}

type node struct {
	next root.Interior[node]
}

func (*node) Traversible() bool { return true }
func (n *node) Trace(stack *trace.Stack) {
	n.next.Trace(stack)
}

func newScope(t *testing.T) (*root.Scope, *journal.Receiver) {
	t.Helper()
	tx, rx := journal.NewWithCapacity(8)
	return root.NewScope(tx), rx
}

func TestNewPostsNewInc(t *testing.T) {
	scope, rx := newScope(t)

	r := root.New[leaf](scope, leaf{v: 1})
	if r.Value().v != 1 {
		t.Fatalf("Value: got %d, want 1", r.Value().v)
	}

	obj, status := rx.TryRecv()
	if status != journal.StatusValue {
		t.Fatalf("TryRecv: got status %v", status)
	}
	if wire.UnpackFlags(obj.Ptr) != wire.NewInc {
		t.Fatalf("flags: got %v, want NewInc", wire.UnpackFlags(obj.Ptr))
	}
}

func TestClonePostsIncAndDropPostsDec(t *testing.T) {
	scope, rx := newScope(t)

	r := root.New[leaf](scope, leaf{v: 1})
	rx.TryRecv() // consume NEW_INC

	clone := r.Clone()
	obj, status := rx.TryRecv()
	if status != journal.StatusValue || wire.UnpackFlags(obj.Ptr) != wire.Inc {
		t.Fatalf("Clone: got status=%v flags=%v, want StatusValue/Inc", status, wire.UnpackFlags(obj.Ptr))
	}

	clone.Drop()
	obj, status = rx.TryRecv()
	if status != journal.StatusValue || wire.UnpackFlags(obj.Ptr) != wire.Dec {
		t.Fatalf("Drop: got status=%v flags=%v, want StatusValue/Dec", status, wire.UnpackFlags(obj.Ptr))
	}
}

func TestNewInteriorPostsNewWithoutInc(t *testing.T) {
	scope, rx := newScope(t)

	i := root.NewInterior[leaf](scope, leaf{v: 2})
	if i.Value().v != 2 {
		t.Fatalf("Value: got %d, want 2", i.Value().v)
	}

	obj, status := rx.TryRecv()
	if status != journal.StatusValue || wire.UnpackFlags(obj.Ptr) != wire.New {
		t.Fatalf("NewInterior: got status=%v flags=%v, want StatusValue/New", status, wire.UnpackFlags(obj.Ptr))
	}
}

func TestInteriorIsNullForZeroValue(t *testing.T) {
	var i root.Interior[leaf]
	if !i.IsNull() {
		t.Fatalf("zero-value Interior: IsNull() got false, want true")
	}
	if i.Value() != nil {
		t.Fatalf("zero-value Interior: Value() got non-nil")
	}
}

func TestInteriorTracePushesNonNull(t *testing.T) {
	scope, _ := newScope(t)

	child := root.NewInterior[leaf](scope, leaf{v: 9})
	n := node{next: child}

	var stack trace.Stack
	n.Trace(&stack)

	addr, _, ok := stack.Pop()
	if !ok {
		t.Fatalf("expected Trace to push the child reference")
	}
	if addr == 0 {
		t.Fatalf("pushed address should not be null")
	}
}

func TestInteriorRootPromotesAndPostsInc(t *testing.T) {
	scope, rx := newScope(t)

	i := root.NewInterior[leaf](scope, leaf{v: 3})
	rx.TryRecv() // consume NEW

	r := i.Root(scope)
	if r.Value().v != 3 {
		t.Fatalf("Root: got %d, want 3", r.Value().v)
	}

	obj, status := rx.TryRecv()
	if status != journal.StatusValue || wire.UnpackFlags(obj.Ptr) != wire.Inc {
		t.Fatalf("Root: got status=%v flags=%v, want StatusValue/Inc", status, wire.UnpackFlags(obj.Ptr))
	}
}

func TestAtomicInteriorLoadStore(t *testing.T) {
	scope, _ := newScope(t)

	a := root.NewAtomicInterior(root.NewInterior[leaf](scope, leaf{v: 1}))
	b := root.NewInterior[leaf](scope, leaf{v: 2})

	a.Store(b, root.Release)
	got := a.Load(root.Acquire)
	if got.Value().v != 2 {
		t.Fatalf("Load after Store: got %d, want 2", got.Value().v)
	}
}

func TestAtomicInteriorLoadRootedPostsInc(t *testing.T) {
	scope, rx := newScope(t)

	a := root.NewAtomicInterior(root.NewInterior[leaf](scope, leaf{v: 5}))
	rx.TryRecv() // consume NEW

	r := a.LoadRooted(scope, root.Acquire)
	if r.Value().v != 5 {
		t.Fatalf("LoadRooted: got %d, want 5", r.Value().v)
	}

	obj, status := rx.TryRecv()
	if status != journal.StatusValue || wire.UnpackFlags(obj.Ptr) != wire.Inc {
		t.Fatalf("LoadRooted: got status=%v flags=%v, want StatusValue/Inc", status, wire.UnpackFlags(obj.Ptr))
	}
}

func TestAtomicInteriorInvalidOrderingPanics(t *testing.T) {
	scope, _ := newScope(t)
	a := root.NewAtomicInterior(root.NewInterior[leaf](scope, leaf{}))

	t.Run("LoadRelease", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatalf("Load(Release): expected panic")
			}
		}()
		a.Load(root.Release)
	})

	t.Run("StoreAcquire", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatalf("Store(Acquire): expected panic")
			}
		}()
		a.Store(root.Interior[leaf]{}, root.Acquire)
	})
}
