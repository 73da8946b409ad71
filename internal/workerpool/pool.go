// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package workerpool runs a fixed number of workers over a slice of
// shards and waits for all of them, the shape the collector's parallel
// mark and sweep phases share: split shared state into N disjoint
// pieces up front, hand one to each worker, block until every worker
// returns, then fold the pieces back together.
//
// Built on golang.org/x/sync/errgroup rather than a bespoke pool: the
// phase is inherently an all-or-nothing barrier (mark must finish
// before sweep starts), which is exactly errgroup.Group's contract,
// and the group's first non-nil error is enough context to abort a
// degraded collection cycle.
package workerpool

import "golang.org/x/sync/errgroup"

// Run launches one goroutine per shard, invoking fn(i, shards[i]) for
// each shard index, and blocks until every goroutine returns. If any
// fn call returns an error, Run returns the first one observed; the
// others still run to completion since a shard is exclusively owned
// by its worker and can't be abandoned mid-mutation.
func Run[S any](shards []S, fn func(index int, shard S) error) error {
	var g errgroup.Group
	for i, shard := range shards {
		i, shard := i, shard
		g.Go(func() error {
			return fn(i, shard)
		})
	}
	return g.Wait()
}

// RunLimited is Run with a cap on the number of shards processed
// concurrently, for phases where the shard count is chosen for
// cache-locality rather than for matching GOMAXPROCS.
func RunLimited[S any](shards []S, limit int, fn func(index int, shard S) error) error {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, shard := range shards {
		i, shard := i, shard
		g.Go(func() error {
			return fn(i, shard)
		})
	}
	return g.Wait()
}
