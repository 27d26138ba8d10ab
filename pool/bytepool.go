// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-fwd/api"
)

// Stats aggregates buffer allocation/reuse counters.
type Stats struct {
	TotalAlloc int64 // buffers allocated from the heap
	InUse      int64 // buffers acquired and not yet released
}

// BytePool hands out buffers of a fixed class size. Requests larger than the
// class are served from the heap and dropped on release.
type BytePool struct {
	size  int
	pool  sync.Pool
	alloc atomic.Int64
	inUse atomic.Int64
}

// NewBytePool creates a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		size = 1024
	}
	bp := &BytePool{size: size}
	bp.pool.New = func() any {
		bp.alloc.Add(1)
		b := make([]byte, size)
		return &b
	}
	return bp
}

// Size returns the class size.
func (p *BytePool) Size() int { return p.size }

// Acquire returns a slice of exactly n bytes.
func (p *BytePool) Acquire(n int) []byte {
	p.inUse.Add(1)
	if n > p.size {
		p.alloc.Add(1)
		return make([]byte, n)
	}
	bp := p.pool.Get().(*[]byte)
	return (*bp)[:n]
}

// Release returns buf to the pool. buf must not be used afterwards.
func (p *BytePool) Release(buf []byte) {
	if buf == nil {
		return
	}
	p.inUse.Add(-1)
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}

// Stats returns a snapshot of the counters.
func (p *BytePool) Stats() Stats {
	return Stats{TotalAlloc: p.alloc.Load(), InUse: p.inUse.Load()}
}

var _ api.BytePool = (*BytePool)(nil)
