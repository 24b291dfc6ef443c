package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParallelizeCoversEveryItemOnce(t *testing.T) {
	for _, items := range []int{0, 1, 7, 1000, 4097} {
		seen := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, n := range seen {
			require.Equal(t, int32(1), n, "item %d of %d", i, items)
		}
	}
}

func TestParallelizeNSingleWorkerIsSequential(t *testing.T) {
	var calls int
	ParallelizeN(10, 1, func(start, end int) {
		calls++
		require.Equal(t, 0, start)
		require.Equal(t, 10, end)
	})
	require.Equal(t, 1, calls)
}

func TestParallelizeWithThreshold(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(5, 10, func(start, end int) {
		atomic.AddInt32(&calls, 1)
	})
	require.Equal(t, int32(1), calls, "below threshold runs one range")
}

func TestForEach(t *testing.T) {
	out := make([]int, 50)
	ForEach(len(out), 0, func(i int) { out[i] = i * i })
	for i, v := range out {
		require.Equal(t, i*i, v)
	}
}
