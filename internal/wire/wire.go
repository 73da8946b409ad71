// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire defines the on-the-wire journal record shared by the
// journal, trace, root and collector packages.
//
// An Object is two machine words: Ptr is an object address with its low
// 2 bits reused as a Flags value, and VTable is a trace-capability tag
// with its low bit reused as the TRAVERSE bit. Addresses handed to
// PackPtr must be word-aligned; the low 2 bits of a real address are
// always zero before masking.
package wire

// Flags selects the action a journal record represents against the root
// map. The two low bits of Object.Ptr carry one of these values.
type Flags uintptr

const (
	// Dec means a root reference was dropped.
	Dec Flags = 0
	// Inc means an existing object gained a new root reference.
	Inc Flags = 1
	// New means a fresh allocation that is not itself stack-rooted.
	New Flags = 2
	// NewInc means a fresh allocation with a rooted reference created.
	NewInc Flags = 3

	// FlagsMask isolates the low 2 bits carrying Flags.
	FlagsMask uintptr = 3
)

// TraverseBit is set in VTable exactly when the object's declared trace
// protocol reports that it can contain managed references.
const TraverseBit uint64 = 1

// Object is a single journal record: two words, no padding.
type Object struct {
	Ptr    uintptr
	VTable uint64
}

// PackPtr combines a word-aligned address with a Flags value.
// Panics if addr is not word-aligned, since that would corrupt the flags.
func PackPtr(addr uintptr, f Flags) uintptr {
	if addr&FlagsMask != 0 {
		panic("wire: object address is not word-aligned")
	}
	return addr | uintptr(f)
}

// UnpackFlags extracts the Flags value from a packed Ptr.
func UnpackFlags(ptr uintptr) Flags {
	return Flags(ptr & FlagsMask)
}

// UnpackAddr extracts the real address from a packed Ptr.
func UnpackAddr(ptr uintptr) uintptr {
	return ptr &^ FlagsMask
}

// PackVTable combines a type tag with the TRAVERSE bit.
func PackVTable(tag uint32, traversible bool) uint64 {
	v := uint64(tag) << 1
	if traversible {
		v |= TraverseBit
	}
	return v
}

// UnpackTag extracts the type tag from a packed VTable word.
func UnpackTag(v uint64) uint32 {
	return uint32(v >> 1)
}

// Traversible reports whether the TRAVERSE bit is set.
func Traversible(v uint64) bool {
	return v&TraverseBit != 0
}
