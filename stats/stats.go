// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package stats collects the collector's own performance counters:
// active versus sleeping time, drop rate, and mature heap high-water
// mark, and logs them through go.uber.org/zap rather than printing
// directly, so they land wherever the embedding application's logs do.
package stats

import (
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
	"go.uber.org/zap"
)

// Logger receives the counters a collection cycle produces. Collector
// calls these methods from its own goroutine only, so implementations
// need no internal synchronization of their own beyond what exposing
// their counters to other goroutines (e.g. via Snapshot) requires.
type Logger interface {
	MarkStartTime()
	MarkEndTime()
	AddSleep(d time.Duration)
	AddDropped(count int)
	CurrentHeapSize(size int)
	DumpToLog()
}

// Snapshot is a point-in-time, concurrency-safe read of a DefaultLogger's
// counters, suitable for exposing over a metrics endpoint.
type Snapshot struct {
	MaxHeapSize    int64
	TotalDropped   int64
	DropIterations int64
	SleepNanos     int64
	ActiveNanos    int64
}

// DefaultLogger is the collector's built-in Logger, grounded on the
// counters the original statistics module kept: a running maximum
// heap size, a running drop total, and a sleep-vs-active time split.
type DefaultLogger struct {
	log *zap.Logger

	maxHeapSize    atomix.Int64
	totalDropped   atomix.Int64
	dropIterations atomix.Int64
	sleepNanos     atomix.Int64

	startTime time.Time
	stopTime  time.Time
}

// NewDefaultLogger builds a DefaultLogger that writes its periodic dump
// through log.
func NewDefaultLogger(log *zap.Logger) *DefaultLogger {
	return &DefaultLogger{log: log}
}

func (l *DefaultLogger) MarkStartTime() { l.startTime = time.Now() }
func (l *DefaultLogger) MarkEndTime()   { l.stopTime = time.Now() }

func (l *DefaultLogger) AddSleep(d time.Duration) {
	l.sleepNanos.AddAcqRel(int64(d))
}

func (l *DefaultLogger) AddDropped(count int) {
	l.totalDropped.AddAcqRel(int64(count))
	l.dropIterations.AddAcqRel(1)
}

func (l *DefaultLogger) CurrentHeapSize(size int) {
	sw := spin.Wait{}
	for {
		cur := l.maxHeapSize.LoadAcquire()
		if int64(size) <= cur {
			return
		}
		if l.maxHeapSize.CompareAndSwapAcqRel(cur, int64(size)) {
			return
		}
		sw.Once()
	}
}

// Snapshot reads the current counters without resetting them.
func (l *DefaultLogger) Snapshot() Snapshot {
	totalTime := l.stopTime.Sub(l.startTime)
	if totalTime <= 0 {
		totalTime = time.Millisecond
	}
	sleep := l.sleepNanos.LoadAcquire()
	active := int64(totalTime) - sleep
	if active < 0 {
		active = 0
	}
	return Snapshot{
		MaxHeapSize:    l.maxHeapSize.LoadAcquire(),
		TotalDropped:   l.totalDropped.LoadAcquire(),
		DropIterations: l.dropIterations.LoadAcquire(),
		SleepNanos:     sleep,
		ActiveNanos:    active,
	}
}

// DumpToLog emits one structured log entry summarizing the run so far.
func (l *DefaultLogger) DumpToLog() {
	s := l.Snapshot()
	total := s.ActiveNanos + s.SleepNanos
	var percentActive int64
	if total > 0 {
		percentActive = s.ActiveNanos * 100 / total
	}
	var droppedPerSecond int64
	if s.ActiveNanos > 0 {
		droppedPerSecond = s.TotalDropped * int64(time.Second) / s.ActiveNanos
	}

	l.log.Info("collection summary",
		zap.Int64("max_heap_size", s.MaxHeapSize),
		zap.Int64("total_dropped", s.TotalDropped),
		zap.Int64("dropped_per_second", droppedPerSecond),
		zap.Duration("active_time", time.Duration(s.ActiveNanos)),
		zap.Duration("total_time", time.Duration(total)),
		zap.Int64("percent_active", percentActive),
	)
}
