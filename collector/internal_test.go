// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package collector

import (
	"testing"

	"code.hybscloud.com/gogc/internal/gcerrs"
	"code.hybscloud.com/gogc/internal/wire"
)

// TestMergeDeferredPanicsOnUnknownAddress exercises the protocol-abort
// path mergeDeferred takes when a DEC refers to an address the root
// map has never seen: by construction this only happens under
// journal/heap metadata corruption, so it panics with a gcerrs.Protocol
// error instead of silently ignoring the record.
func TestMergeDeferredPanicsOnUnknownAddress(t *testing.T) {
	c := New(1)
	c.deferred = append(c.deferred, wire.Object{Ptr: wire.PackPtr(0xdead, wire.Dec)})

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("mergeDeferred: expected panic for DEC of unknown address")
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("mergeDeferred: panic value %v is not an error", r)
		}
		if !gcerrs.Protocol.Has(err) {
			t.Fatalf("mergeDeferred: panic error %v is not a gcerrs.Protocol error", err)
		}
	}()

	c.mergeDeferred()
}
