// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rootmap_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/gogc/internal/rootmap"
)

func TestIncDecRefCount(t *testing.T) {
	m := rootmap.NewMeta(1, 0, false, false)

	m.Inc()
	if m.Count() != 2 {
		t.Fatalf("Count after Inc: got %d, want 2", m.Count())
	}
	m.Dec()
	m.Dec()
	if m.Count() != 0 {
		t.Fatalf("Count after two Dec: got %d, want 0", m.Count())
	}
}

func TestIsUnrooted(t *testing.T) {
	rooted := rootmap.NewMeta(1, 0, false, false)
	if rooted.IsUnrooted() {
		t.Fatalf("positive refcount entry reported unrooted")
	}

	unrootedOld := rootmap.NewMeta(0, 0, false, false)
	if !unrootedOld.IsUnrooted() {
		t.Fatalf("zero refcount, non-NEW entry should be unrooted")
	}

	unrootedNew := rootmap.NewMeta(0, 0, false, true)
	if unrootedNew.IsUnrooted() {
		t.Fatalf("zero refcount NEW entry should not be considered unrooted")
	}
}

func TestSetNotNewClearsFlag(t *testing.T) {
	m := rootmap.NewMeta(1, 0, false, true)
	if !m.IsNew() {
		t.Fatalf("expected IsNew true before SetNotNew")
	}
	m.SetNotNew()
	if m.IsNew() {
		t.Fatalf("expected IsNew false after SetNotNew")
	}
}

func TestMarkAndNeedsTraceIsExactlyOnce(t *testing.T) {
	m := rootmap.NewMeta(1, 0, true, false)

	const workers = 16
	var wg sync.WaitGroup
	wins := make([]bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wins[i] = m.MarkAndNeedsTrace()
		}(i)
	}
	wg.Wait()

	count := 0
	for _, w := range wins {
		if w {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("MarkAndNeedsTrace: %d goroutines won the race, want exactly 1", count)
	}
	if !m.IsMarked() {
		t.Fatalf("expected IsMarked true after a winning MarkAndNeedsTrace")
	}
}

func TestMarkAndNeedsTraceFalseForNonTraversible(t *testing.T) {
	m := rootmap.NewMeta(1, 0, false, false)
	if m.MarkAndNeedsTrace() {
		t.Fatalf("non-traversible entry should never need tracing")
	}
	if !m.IsMarked() {
		t.Fatalf("entry should still be marked even though it doesn't need tracing")
	}
}

func TestIsNewAndUnmarked(t *testing.T) {
	m := rootmap.NewMeta(0, 0, true, true)
	if !m.IsNewAndUnmarked() {
		t.Fatalf("fresh NEW entry should be new-and-unmarked")
	}
	m.MarkAndNeedsTrace()
	if m.IsNewAndUnmarked() {
		t.Fatalf("marked NEW entry should not be new-and-unmarked")
	}
}

func TestUnmark(t *testing.T) {
	m := rootmap.NewMeta(1, 0, true, false)
	m.MarkAndNeedsTrace()
	if !m.IsMarked() {
		t.Fatalf("expected marked after MarkAndNeedsTrace")
	}
	m.Unmark()
	if m.IsMarked() {
		t.Fatalf("expected unmarked after Unmark")
	}
}
