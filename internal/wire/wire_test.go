// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire_test

import (
	"testing"

	"code.hybscloud.com/gogc/internal/wire"
)

func TestPackUnpackPtrRoundTrip(t *testing.T) {
	for _, f := range []wire.Flags{wire.Dec, wire.Inc, wire.New, wire.NewInc} {
		const addr = uintptr(0x1000)
		packed := wire.PackPtr(addr, f)
		if got := wire.UnpackAddr(packed); got != addr {
			t.Fatalf("UnpackAddr: got %#x, want %#x", got, addr)
		}
		if got := wire.UnpackFlags(packed); got != f {
			t.Fatalf("UnpackFlags: got %v, want %v", got, f)
		}
	}
}

func TestPackPtrPanicsOnMisalignment(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("PackPtr(0x1001, ...): expected panic on misaligned address")
		}
	}()
	wire.PackPtr(0x1001, wire.Dec)
}

func TestPackUnpackVTableRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		tag         uint32
		traversible bool
	}{
		{0, false}, {0, true}, {12345, false}, {12345, true},
	} {
		v := wire.PackVTable(tc.tag, tc.traversible)
		if got := wire.UnpackTag(v); got != tc.tag {
			t.Fatalf("UnpackTag: got %d, want %d", got, tc.tag)
		}
		if got := wire.Traversible(v); got != tc.traversible {
			t.Fatalf("Traversible: got %v, want %v", got, tc.traversible)
		}
	}
}
