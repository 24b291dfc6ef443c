// Package performance provides pooled scratch buffers for the hot loops of
// correlation evaluation, where a value table is needed per configuration.
package performance

import (
	"sync"
	"sync/atomic"
)

// BufferPool recycles float64 scratch slices to reduce GC pressure.
type BufferPool struct {
	pool     sync.Pool
	inUse    int64
	created  int64
	recycled int64
	peak     int64
}

// PoolStats tracks pool performance metrics
type PoolStats struct {
	TotalAllocated   int64
	TotalRecycled    int64
	CurrentInUse     int64
	PeakUsage        int64
	AverageReuseRate float64
}

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	bp := &BufferPool{}
	bp.pool = sync.Pool{
		New: func() interface{} {
			atomic.AddInt64(&bp.created, 1)
			return &Buffer{pool: bp}
		},
	}
	return bp
}

// Get returns a zeroed buffer of length n.
func (bp *BufferPool) Get(n int) *Buffer {
	current := atomic.AddInt64(&bp.inUse, 1)
	for {
		peak := atomic.LoadInt64(&bp.peak)
		if current <= peak || atomic.CompareAndSwapInt64(&bp.peak, peak, current) {
			break
		}
	}

	b := bp.pool.Get().(*Buffer)
	if cap(b.Data) < n {
		b.Data = make([]float64, n)
	} else {
		b.Data = b.Data[:n]
		clear(b.Data)
	}
	b.released = false
	return b
}

// Put returns a buffer to the pool. Releasing twice is a no-op.
func (bp *BufferPool) Put(b *Buffer) {
	if b.released {
		return
	}
	b.released = true
	atomic.AddInt64(&bp.inUse, -1)
	atomic.AddInt64(&bp.recycled, 1)
	bp.pool.Put(b)
}

// GetStats returns current pool statistics
func (bp *BufferPool) GetStats() PoolStats {
	total := atomic.LoadInt64(&bp.created)
	recycled := atomic.LoadInt64(&bp.recycled)

	reuseRate := float64(0)
	if total > 0 {
		reuseRate = float64(recycled) / float64(total)
	}
	return PoolStats{
		TotalAllocated:   total,
		TotalRecycled:    recycled,
		CurrentInUse:     atomic.LoadInt64(&bp.inUse),
		PeakUsage:        atomic.LoadInt64(&bp.peak),
		AverageReuseRate: reuseRate,
	}
}

// Buffer is a scratch slice owned by a pool.
type Buffer struct {
	Data     []float64
	pool     *BufferPool
	released bool
}

// Release returns the buffer to its pool.
func (b *Buffer) Release() {
	b.pool.Put(b)
}
