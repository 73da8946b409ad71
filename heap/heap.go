// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package heap implements the mature generation: the set of objects
// that have survived at least one major collection and now live
// outside the root map, reachable only by tracing from the root set.
package heap

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/gogc/internal/rootmap"
	"code.hybscloud.com/gogc/internal/smap"
	"code.hybscloud.com/gogc/internal/workerpool"
	"code.hybscloud.com/gogc/trace"
)

// ObjectMeta is the mature heap's per-object record: a type tag with
// its traversible bit, plus a mark bit flipped during tracing.
//
// Unlike the teacher's lock-free counters, the mark bit here is a real
// atomic rather than an unsynchronized cell: multiple mark workers can
// reach the same mature object from different roots concurrently, and
// only a CAS guarantees exactly one of them queues it for further
// tracing.
type ObjectMeta struct {
	tag         trace.Tag
	traversible bool
	marked      atomix.Bool
}

// NewObjectMeta builds metadata for an object freshly promoted into
// the mature heap.
func NewObjectMeta(tag trace.Tag, traversible bool) *ObjectMeta {
	return &ObjectMeta{tag: tag, traversible: traversible}
}

// Tag returns the object's registered trace tag.
func (m *ObjectMeta) Tag() trace.Tag { return m.tag }

// MarkAndNeedsTrace atomically marks the object and reports whether
// the caller should trace its outgoing references.
func (m *ObjectMeta) MarkAndNeedsTrace() bool {
	return m.marked.CompareAndSwapAcqRel(false, true) && m.traversible
}

// IsMarked reports the current mark bit.
func (m *ObjectMeta) IsMarked() bool { return m.marked.LoadAcquire() }

// Unmark clears the mark bit for the next cycle.
func (m *ObjectMeta) Unmark() { m.marked.StoreRelease(false) }

// Mature is the mature generation's object set and the parallel
// mark/sweep collector over it. All known mature objects live in
// objects, keyed by address; there is no separate young/mature split
// within this type, since promotion from the root map happens before
// Collect is called.
type Mature struct {
	numWorkers int
	objects    *smap.Map[*ObjectMeta]
}

// New creates an empty mature heap that shards its collection work
// across numWorkers goroutines.
func New(numWorkers int) *Mature {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Mature{numWorkers: numWorkers, objects: smap.New[*ObjectMeta]()}
}

// AddObject records a newly promoted object.
func (h *Mature) AddObject(addr uintptr, meta *ObjectMeta) {
	h.objects.Set(addr, meta)
}

// Len returns the number of objects currently tracked.
func (h *Mature) Len() int { return h.objects.Len() }

// Collect runs one full mark/sweep pass over the mature heap, using
// roots as the starting point for tracing. It returns the heap size
// after sweeping, the number of objects dropped, and the first error
// observed from either phase's worker pool, if any.
func (h *Mature) Collect(roots *smap.Map[*rootmap.Meta]) (heapSize, dropped int, err error) {
	markErr := h.mark(roots)
	heapSize, dropped, sweepErr := h.sweep()
	if markErr != nil {
		return heapSize, dropped, markErr
	}
	return heapSize, dropped, sweepErr
}

// mark traces from every rooted, non-unrooted entry in roots, through
// the mature object graph, marking every object reached.
func (h *Mature) mark(roots *smap.Map[*rootmap.Meta]) error {
	shards := roots.BorrowSharded(h.numWorkers)
	objects := h.objects.BorrowSync()

	err := workerpool.Run(shards, func(_ int, shard *smap.Shard[*rootmap.Meta]) error {
		var stack trace.Stack
		shard.All(func(addr uintptr, meta *rootmap.Meta) bool {
			if meta.IsUnrooted() {
				return true
			}
			if obj, found := objects.Get(addr); found {
				if !obj.MarkAndNeedsTrace() {
					return true
				}
			} else if !meta.Traversible() {
				return true
			}
			trace.TraceObject(meta.Tag, addr, &stack)
			h.drainStack(&stack, objects)
			return true
		})
		return nil
	})
	roots.MergeSharded(shards)
	return err
}

func (h *Mature) drainStack(stack *trace.Stack, objects *smap.SyncView[*ObjectMeta]) {
	for {
		addr, _, ok := stack.Pop()
		if !ok {
			return
		}
		meta, found := objects.Get(addr)
		if !found {
			continue
		}
		if meta.MarkAndNeedsTrace() {
			trace.TraceObject(meta.Tag(), addr, stack)
		}
	}
}

// sweep discards every unmarked object and unmarks every survivor,
// running across the same number of shards as mark.
func (h *Mature) sweep() (heapSize, dropped int, err error) {
	shards := h.objects.BorrowSharded(h.numWorkers)

	counts := make([]struct{ size, dropped int }, len(shards))
	err = workerpool.Run(shards, func(i int, shard *smap.Shard[*ObjectMeta]) error {
		var size, drop int
		shard.RetainIf(func(addr uintptr, meta *ObjectMeta) bool {
			size++
			if !meta.IsMarked() {
				drop++
				trace.DropObject(meta.Tag(), addr)
				return false
			}
			meta.Unmark()
			return true
		})
		counts[i] = struct{ size, dropped int }{size - drop, drop}
		return nil
	})
	h.objects.MergeSharded(shards)

	for _, c := range counts {
		heapSize += c.size
		dropped += c.dropped
	}
	return heapSize, dropped, err
}
