// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"code.hybscloud.com/gogc/stats"
)

func TestSnapshotTracksCounters(t *testing.T) {
	l := stats.NewDefaultLogger(zap.NewNop())

	l.MarkStartTime()
	l.CurrentHeapSize(10)
	l.CurrentHeapSize(5)
	l.CurrentHeapSize(20)
	l.AddDropped(3)
	l.AddDropped(4)
	l.AddSleep(50 * time.Millisecond)
	l.MarkEndTime()

	snap := l.Snapshot()
	require.EqualValues(t, 20, snap.MaxHeapSize, "running max heap size")
	require.EqualValues(t, 7, snap.TotalDropped)
	require.EqualValues(t, 2, snap.DropIterations)
	require.EqualValues(t, 50*time.Millisecond, snap.SleepNanos)
}

func TestDumpToLogDoesNotPanic(t *testing.T) {
	l := stats.NewDefaultLogger(zap.NewNop())
	l.MarkStartTime()
	l.MarkEndTime()
	require.NotPanics(t, l.DumpToLog)
}
