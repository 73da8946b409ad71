// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package collector runs the pauseless garbage collection loop: it
// owns the root map, drains every connected journal into it, and
// periodically runs a minor collection over the young generation and,
// once the young generation grows past a threshold, a major collection
// that promotes survivors into the mature heap.
//
// Exactly one goroutine may call Run. Every other exported method is
// safe to call from any goroutine.
package collector

import (
	"context"
	"runtime"
	"sync"
	"time"

	"code.hybscloud.com/gogc/heap"
	"code.hybscloud.com/gogc/internal/gcerrs"
	"code.hybscloud.com/gogc/internal/gclog"
	"code.hybscloud.com/gogc/internal/rootmap"
	"code.hybscloud.com/gogc/internal/smap"
	"code.hybscloud.com/gogc/internal/wire"
	"code.hybscloud.com/gogc/internal/workerpool"
	"code.hybscloud.com/gogc/journal"
	"code.hybscloud.com/gogc/root"
	"code.hybscloud.com/gogc/stats"
	"code.hybscloud.com/gogc/trace"

	"code.hybscloud.com/iox"
	"go.uber.org/zap"
)

const (
	// journalRun is how many passes the drain step makes over every
	// connected journal before returning control to the main loop.
	journalRun = 32
	// bufferRun caps how many records are pulled from a single journal
	// in one pass, so one very busy mutator can't starve the others.
	bufferRun = 1024
	// majorCollectThreshold is the young generation size, in live
	// entries, that triggers a major collection.
	majorCollectThreshold = 1 << 20

	// minSleepDur and maxSleepDur bound the main loop's exponential
	// back-off when drains come up empty. Tracked locally alongside
	// iox.Backoff so the major-collection trigger can tell whether the
	// collector is currently idle-bound, the same way
	// sleep_dur != MIN_SLEEP_DUR gates it in the original driver.
	minSleepDur = time.Millisecond
	maxSleepDur = 100 * time.Millisecond
)

// Config configures a Collector.
type Config struct {
	numWorkers     int
	journalCap     int
	majorThreshold int
	log            *zap.Logger
	statsLogger    stats.Logger
}

// Option configures a Collector at construction time.
type Option func(*Config)

// WithWorkers sets the number of goroutines used for parallel mark and
// sweep phases, overriding New's numWorkers argument. A value below 1
// selects runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(c *Config) { c.numWorkers = n }
}

// WithJournalCapacity sets the per-buffer capacity of journals created
// by Spawn.
func WithJournalCapacity(n int) Option {
	return func(c *Config) { c.journalCap = n }
}

// WithMajorThreshold overrides the young generation size that triggers
// a major collection.
func WithMajorThreshold(n int) Option {
	return func(c *Config) { c.majorThreshold = n }
}

// WithLogger sets the structured logger used for diagnostic messages.
func WithLogger(log *zap.Logger) Option {
	return func(c *Config) { c.log = log }
}

// WithStatsLogger overrides the performance counter sink. Defaults to
// a stats.DefaultLogger built from the same logger as WithLogger.
func WithStatsLogger(l stats.Logger) Option {
	return func(c *Config) { c.statsLogger = l }
}

// Collector owns the root map, the mature heap, and the set of
// journals currently being drained.
type Collector struct {
	cfg Config

	mu       sync.Mutex
	journals []*journal.Receiver

	roots    *smap.Map[*rootmap.Meta]
	deferred []wire.Object
	mature   *heap.Mature

	stats stats.Logger
	log   *zap.Logger
}

// New builds a Collector ready to accept Spawn calls and Run. A
// numWorkers below 1 selects runtime.GOMAXPROCS(0).
func New(numWorkers int, opts ...Option) *Collector {
	cfg := Config{
		numWorkers:     numWorkers,
		journalCap:     journal.DefaultBufferCapacity,
		majorThreshold: majorCollectThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.numWorkers < 1 {
		cfg.numWorkers = runtime.GOMAXPROCS(0)
	}
	log := gclog.New(cfg.log)
	statsLogger := cfg.statsLogger
	if statsLogger == nil {
		statsLogger = stats.NewDefaultLogger(log)
	}

	return &Collector{
		cfg:    cfg,
		roots:  smap.New[*rootmap.Meta](),
		mature: heap.New(cfg.numWorkers),
		stats:  statsLogger,
		log:    log,
	}
}

// Spawn starts fn in a new goroutine, handing it a root.Scope backed
// by a freshly created journal whose receiving half the collector
// immediately begins draining. fn's goroutine must call Scope.Close
// before returning.
func (c *Collector) Spawn(fn func(scope *root.Scope)) {
	tx, rx := journal.NewWithCapacity(c.cfg.journalCap)

	c.mu.Lock()
	c.journals = append(c.journals, rx)
	c.mu.Unlock()

	go fn(root.NewScope(tx))
}

// Run drains journals and runs collections until ctx is cancelled and
// every journal has disconnected, then performs one final collection
// to reclaim anything left rooted only by goroutines that have already
// exited, and returns.
func (c *Collector) Run(ctx context.Context) {
	c.stats.MarkStartTime()
	defer c.stats.MarkEndTime()

	backoff := iox.Backoff{}
	sleepDur := minSleepDur
	for {
		select {
		case <-ctx.Done():
			c.removeDisconnected()
			if c.numJournals() == 0 {
				c.minorCollection()
				c.majorCollection()
				return
			}
		default:
		}

		n := c.drain()
		if n == 0 {
			c.removeDisconnected()
			if c.numJournals() == 0 {
				select {
				case <-ctx.Done():
				case <-time.After(time.Millisecond):
				}
				continue
			}
			before := time.Now()
			backoff.Wait()
			c.stats.AddSleep(time.Since(before))
			if sleepDur < maxSleepDur {
				sleepDur *= 2
				if sleepDur > maxSleepDur {
					sleepDur = maxSleepDur
				}
			}
		} else {
			backoff.Reset()
			sleepDur = minSleepDur
		}

		youngCount := c.minorCollection()
		// A major collection only runs once the collector has backed off
		// past the minimum sleep, i.e. drains have been idle for a
		// while: mirrors the original driver's
		// sleep_dur != MIN_SLEEP_DUR && young_count >= MAJOR_COLLECT_THRESHOLD
		// gate, so a busy mutator never has CPU stolen from it to run a
		// major cycle purely because the young generation is large.
		if sleepDur != minSleepDur && youngCount >= c.cfg.majorThreshold {
			c.log.Info("major collection triggered", zap.Int("young_count", youngCount))
			c.majorCollection()
		}
	}
}

func (c *Collector) numJournals() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.journals)
}

func (c *Collector) removeDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	live := c.journals[:0]
	for _, j := range c.journals {
		if !j.IsDisconnected() {
			live = append(live, j)
		}
	}
	c.journals = live
}

// drain applies up to journalRun*bufferRun records from every
// connected journal into the root map, returning the total number of
// records applied. This is single-threaded: it is the only writer of
// the root map outside of mark/sweep/merge, so no locking is needed
// against those phases as long as they don't overlap with drain in
// time, which Run enforces by calling them sequentially.
func (c *Collector) drain() int {
	c.mu.Lock()
	journals := append([]*journal.Receiver(nil), c.journals...)
	c.mu.Unlock()

	total := 0
	for pass := 0; pass < journalRun; pass++ {
		for _, j := range journals {
			for i := 0; i < bufferRun; i++ {
				obj, status := j.TryRecv()
				if status != journal.StatusValue {
					break
				}
				c.apply(obj)
				total++
			}
		}
	}
	return total
}

func (c *Collector) apply(obj wire.Object) {
	addr := wire.UnpackAddr(obj.Ptr)
	flags := wire.UnpackFlags(obj.Ptr)
	tag := trace.Tag(wire.UnpackTag(obj.VTable))
	traversible := wire.Traversible(obj.VTable)

	switch flags {
	case wire.NewInc:
		c.roots.Set(addr, rootmap.NewMeta(1, tag, traversible, true))

	case wire.New:
		c.roots.Set(addr, rootmap.NewMeta(0, tag, traversible, true))

	case wire.Inc:
		meta := c.roots.GetOrInsert(addr, func() *rootmap.Meta {
			return rootmap.NewMeta(0, tag, traversible, false)
		})
		meta.Inc()

	case wire.Dec:
		c.deferred = append(c.deferred, obj)
	}
}

// minorCollection marks and sweeps the root map in place, then merges
// the deferred decrements accumulated since the last call. It returns
// the number of young (NEW, not-yet-promoted) entries that survived.
func (c *Collector) minorCollection() int {
	youngCount, dropped := c.markAndSweepYoung()
	c.mergeDeferred()
	c.stats.AddDropped(dropped)
	return youngCount
}

func (c *Collector) markAndSweepYoung() (youngCount, dropped int) {
	shards := c.roots.BorrowSharded(c.cfg.numWorkers)
	objects := c.roots.BorrowSync()

	if err := workerpool.Run(shards, func(_ int, shard *smap.Shard[*rootmap.Meta]) error {
		var stack trace.Stack
		shard.All(func(addr uintptr, meta *rootmap.Meta) bool {
			if meta.IsNew() && meta.Count() == 0 {
				return true
			}
			if meta.MarkAndNeedsTrace() {
				trace.TraceObject(meta.Tag, addr, &stack)
				drainYoungStack(&stack, objects)
			}
			return true
		})
		return nil
	}); err != nil {
		c.log.Error("minor mark phase failed", zap.Error(err))
	}

	counts := make([]struct{ young, dropped int }, len(shards))
	if err := workerpool.Run(shards, func(i int, shard *smap.Shard[*rootmap.Meta]) error {
		var young, drop int
		shard.RetainIf(func(addr uintptr, meta *rootmap.Meta) bool {
			switch {
			case meta.IsNewAndUnmarked():
				drop++
				trace.DropObject(meta.Tag, addr)
				return false
			case !meta.IsNew() && meta.IsUnrooted():
				return false
			default:
				if meta.IsNew() {
					young++
				}
				meta.Unmark()
				return true
			}
		})
		counts[i] = struct{ young, dropped int }{young, drop}
		return nil
	}); err != nil {
		c.log.Error("minor sweep phase failed", zap.Error(err))
	}
	c.roots.MergeSharded(shards)

	for _, cnt := range counts {
		youngCount += cnt.young
		dropped += cnt.dropped
	}
	return youngCount, dropped
}

func drainYoungStack(stack *trace.Stack, objects *smap.SyncView[*rootmap.Meta]) {
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
			trace.TraceObject(meta.Tag, addr, stack)
		}
	}
}

// mergeDeferred folds every DEC recorded since the last call into the
// root map's reference counts, sharded across workers for the same
// reason mark and sweep are.
func (c *Collector) mergeDeferred() {
	if len(c.deferred) == 0 {
		return
	}
	deferred := c.deferred
	c.deferred = nil

	n := c.cfg.numWorkers
	chunkSize := (len(deferred) + n - 1) / n
	if chunkSize < 1 {
		chunkSize = 1
	}
	var chunks [][]wire.Object
	for i := 0; i < len(deferred); i += chunkSize {
		end := i + chunkSize
		if end > len(deferred) {
			end = len(deferred)
		}
		chunks = append(chunks, deferred[i:end])
	}

	roots := c.roots.BorrowSync()
	err := workerpool.Run(chunks, func(_ int, chunk []wire.Object) error {
		for _, obj := range chunk {
			addr := wire.UnpackAddr(obj.Ptr)
			meta, ok := roots.Get(addr)
			if !ok {
				// A DEC for an address the root map has never seen
				// would mean a journal record was applied out of
				// order; drain applies records strictly in send
				// order per journal, so this is unreachable absent
				// memory corruption. Returned rather than panicked
				// here: this closure runs on a worker goroutine
				// spawned by workerpool.Run, and a panic there would
				// crash the process instead of reaching mergeDeferred's
				// caller.
				return gcerrs.Protocol.New("DEC for address %#x absent from root map", addr)
			}
			meta.Dec()
		}
		return nil
	})
	if err != nil {
		panic(err)
	}
}

// majorCollection promotes every live NEW entry into the mature heap,
// clears its New flag, and runs a full mark/sweep over the mature heap
// using the root map as the trace origin.
func (c *Collector) majorCollection() {
	c.roots.Iter(func(addr uintptr, meta *rootmap.Meta) {
		if meta.IsNew() && !meta.IsUnrooted() {
			c.mature.AddObject(addr, heap.NewObjectMeta(meta.Tag, meta.Traversible()))
			meta.SetNotNew()
		}
	})

	heapSize, dropped, err := c.mature.Collect(c.roots)
	if err != nil {
		c.log.Error("major collection failed", zap.Error(err))
	}
	c.stats.CurrentHeapSize(heapSize)
	c.stats.AddDropped(dropped)
}

// DumpStats logs the collector's accumulated performance counters.
func (c *Collector) DumpStats() {
	c.stats.DumpToLog()
}
