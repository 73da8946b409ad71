// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package gcerrs classes the error conditions the collector and its
// supporting packages can raise, distinct from the ordinary control
// flow signals (iox.ErrWouldBlock and friends) used by the journal.
package gcerrs

import "github.com/zeebo/errs"

// Class is the module-wide error class. The subsystem classes below are
// independent errs.Class values: an error built from one of them is not
// a member of Class, so callers test membership per subsystem class.
var Class = errs.Class("gogc")

// Journal classes errors from the journal package: allocation failures
// while growing the buffer chain.
var Journal = errs.Class("gogc: journal")

// Collector classes errors raised while running a collection cycle,
// including worker pool failures surfaced by a shard's mark or sweep
// function.
var Collector = errs.Class("gogc: collector")

// Trace classes errors raised by the type registry, such as a request
// to register a tag twice with conflicting trace functions.
var Trace = errs.Class("gogc: trace")

// Protocol classes the invariant violations that can only mean journal
// or heap metadata corruption: an unknown journal flag, a DEC referring
// to an address absent from the root map at merge time, or an
// unregistered trace tag. Callers wrap with Protocol.New and then
// panic; these never represent recoverable conditions.
var Protocol = errs.Class("gogc: protocol violation")

// Misuse classes contract violations by mutator code, such as a Trace
// implementation that is not safe to call concurrently with mutator
// updates, as the trace protocol requires.
var Misuse = errs.Class("gogc: misuse")
