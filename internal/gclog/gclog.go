// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package gclog is the collector's structured logging facade. It wraps
// go.uber.org/zap rather than defining a bespoke logging interface,
// so the collector's logs compose with whatever zap configuration the
// embedding application already runs.
package gclog

import "go.uber.org/zap"

// New wraps an existing zap logger, naming the collector subsystem so
// its entries are easy to filter out of application logs.
func New(base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return base.Named("gc")
}

// Discard returns a logger that drops every entry, for callers that
// don't want collector logging (e.g. benchmarks and most tests).
func Discard() *zap.Logger {
	return zap.NewNop()
}
